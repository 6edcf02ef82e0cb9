// Package cli provides output helpers for the iasistente command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hyperjump/iasistente/internal/models"
	"github.com/hyperjump/iasistente/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const maxErrorLen = 120

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

type ingestReport struct {
	Results []*models.IngestionResult `json:"results"`
	Summary models.IngestionSummary   `json:"summary"`
}

// WriteIngestReport writes one line per ingested file followed by a summary.
func WriteIngestReport(w io.Writer, results []*models.IngestionResult, format OutputFormat) error {
	summary := models.Summarize(results)
	if format == OutputJSON {
		if results == nil {
			results = []*models.IngestionResult{}
		}
		return writeJSON(w, ingestReport{Results: results, Summary: summary})
	}
	for _, r := range results {
		if r.Succeeded() {
			fmt.Fprintf(w, "ok      %s -> %s (%d pages, %d chunks, %s)\n",
				r.Source, r.IndexPath, r.Pages, r.Chunks, r.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "FAILED  %s [%s] %s\n", r.Source, r.ErrorKind, utils.Truncate(r.Error, maxErrorLen))
	}
	fmt.Fprintf(w, "\n%d ingested, %d failed, %d chunks\n", summary.Succeeded, summary.Failed, summary.Chunks)
	for _, kind := range summary.Kinds() {
		fmt.Fprintf(w, "  %s: %d\n", kind, summary.ByKind[kind])
	}
	return nil
}

// WriteDomains writes the knowledge domains found under the index root.
func WriteDomains(w io.Writer, domains []models.DomainInfo, format OutputFormat) error {
	if format == OutputJSON {
		if domains == nil {
			domains = []models.DomainInfo{}
		}
		return writeJSON(w, map[string]interface{}{"domains": domains})
	}
	if len(domains) == 0 {
		fmt.Fprintln(w, "No knowledge domains found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tCHUNKS\tMODEL\tSOURCE\tCREATED\tINGESTED\tSIZE")
	for _, d := range domains {
		model := d.EmbeddingModel
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n", d.Name, d.Chunks, model, orDash(d.Source), orDash(d.CreatedAt),
			orDash(d.LastIngestedAt), formatBytes(d.DiskUsageBytes))
	}
	return tw.Flush()
}

// WriteHistory writes ingestion ledger entries, newest first.
func WriteHistory(w io.Writer, results []*models.IngestionResult, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []*models.IngestionResult{}
		}
		return writeJSON(w, map[string]interface{}{"ingestions": results})
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No ingestions recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDOMAIN\tSTATUS\tCHUNKS\tDETAIL")
	for _, r := range results {
		detail := r.IndexPath
		if !r.Succeeded() {
			detail = "[" + r.ErrorKind + "] " + utils.Truncate(r.Error, maxErrorLen)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.StartedAt.Local().Format(time.DateTime), r.Name, r.Status, r.Chunks, detail)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
