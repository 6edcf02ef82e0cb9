package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/iasistente/internal/models"
)

func sampleResults() []*models.IngestionResult {
	return []*models.IngestionResult{
		{ID: "1", Source: "docs/algebra_intro.pdf", Name: "algebra_intro", IndexPath: "/idx/faiss_index_algebra_intro",
			Status: models.IngestionSucceeded, Pages: 2, Chunks: 5, Duration: 1500 * time.Millisecond, StartedAt: time.Now()},
		{ID: "2", Source: "docs/blank.pdf", Name: "blank", Status: models.IngestionFailed,
			ErrorKind: "empty", Error: "load document: document has no extractable text: docs/blank.pdf", StartedAt: time.Now()},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteIngestReport_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteIngestReport(&buf, sampleResults(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"ok      docs/algebra_intro.pdf -> /idx/faiss_index_algebra_intro (2 pages, 5 chunks, 1.5s)",
		"FAILED  docs/blank.pdf [empty]",
		"1 ingested, 1 failed, 5 chunks",
		"  empty: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteIngestReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteIngestReport(&buf, sampleResults(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Results []models.IngestionResult `json:"results"`
		Summary models.IngestionSummary  `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded.Results) != 2 || decoded.Summary.Failed != 1 || decoded.Summary.ByKind["empty"] != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteDomains(t *testing.T) {
	domains := []models.DomainInfo{
		{Name: "algebra_intro", Chunks: 5, EmbeddingModel: "models/embedding-001", Source: "algebra_intro.pdf", DiskUsageBytes: 2048,
			LastIngestedAt: "2026-03-01T11:00:00Z"},
		{Name: "legacy", Chunks: 3},
	}
	var buf bytes.Buffer
	if err := WriteDomains(&buf, domains, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "algebra_intro") || !strings.Contains(out, "2.0 KiB") || !strings.Contains(out, "2026-03-01T11:00:00Z") || !strings.Contains(out, "legacy") {
		t.Errorf("unexpected output:\n%s", out)
	}

	buf.Reset()
	if err := WriteDomains(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No knowledge domains") {
		t.Errorf("empty listing: %q", buf.String())
	}

	buf.Reset()
	if err := WriteDomains(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "{\n  \"domains\": []\n}" {
		t.Errorf("empty JSON listing: %q", buf.String())
	}
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHistory(&buf, sampleResults(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "succeeded") || !strings.Contains(out, "[empty]") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
