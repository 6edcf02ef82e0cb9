package models

import (
	"sort"
	"time"
)

// IngestionStatus is the outcome of ingesting one file.
type IngestionStatus string

const (
	IngestionSucceeded IngestionStatus = "succeeded"
	IngestionFailed    IngestionStatus = "failed"
)

// IngestionResult is the typed outcome of ingesting one file. On failure ErrorKind names the
// failing step (see KindName) and Error carries the message.
type IngestionResult struct {
	ID             string          `json:"id"`
	Source         string          `json:"source"`
	Name           string          `json:"name"`
	IndexPath      string          `json:"index_path,omitempty"`
	Status         IngestionStatus `json:"status"`
	ErrorKind      string          `json:"error_kind,omitempty"`
	Error          string          `json:"error,omitempty"`
	Pages          int             `json:"pages"`
	Chunks         int             `json:"chunks"`
	EmbeddingModel string          `json:"embedding_model,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	Duration       time.Duration   `json:"duration_ns"`
}

// Succeeded reports whether the index was written.
func (r *IngestionResult) Succeeded() bool {
	return r != nil && r.Status == IngestionSucceeded
}

// Fail marks the result failed with the kind and message of err.
func (r *IngestionResult) Fail(err error) {
	r.Status = IngestionFailed
	r.ErrorKind = KindName(err)
	r.Error = err.Error()
}

// IngestionSummary aggregates a batch of results.
type IngestionSummary struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Chunks    int            `json:"chunks"`
	ByKind    map[string]int `json:"failures_by_kind,omitempty"`
}

// Summarize counts successes and failures (by kind) in results.
func Summarize(results []*IngestionResult) IngestionSummary {
	s := IngestionSummary{Total: len(results)}
	for _, r := range results {
		if r.Succeeded() {
			s.Succeeded++
			s.Chunks += r.Chunks
			continue
		}
		s.Failed++
		if s.ByKind == nil {
			s.ByKind = make(map[string]int)
		}
		s.ByKind[r.ErrorKind]++
	}
	return s
}

// Kinds returns the failure kinds in s sorted by name.
func (s IngestionSummary) Kinds() []string {
	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// ManifestFormatVersion is written to every new index manifest.
const ManifestFormatVersion = 1

// Manifest is stored next to a persisted index and records how it was built.
type Manifest struct {
	FormatVersion  int       `yaml:"format_version" json:"format_version"`
	EmbeddingModel string    `yaml:"embedding_model" json:"embedding_model"`
	Dimensions     int       `yaml:"dimensions" json:"dimensions"`
	Chunks         int       `yaml:"chunks" json:"chunks"`
	Source         string    `yaml:"source" json:"source"`
	CreatedAt      time.Time `yaml:"created_at" json:"created_at"`
}
