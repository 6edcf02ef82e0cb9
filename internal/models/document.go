// Package models defines core data structures for documents, chunks, chat requests, and ingestion results.
package models

import (
	"path/filepath"
	"strings"
)

// Document is a single source file queued for ingestion.
type Document struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Pages []Page `json:"pages,omitempty"`
}

// NewDocument returns a Document for path with its name derived from the file name.
func NewDocument(path string) *Document {
	return &Document{Path: path, Name: DocumentName(path)}
}

// DocumentName returns the file base name without its extension ("notes/algebra_intro.pdf" -> "algebra_intro").
// The name doubles as the knowledge domain of the index built from the file.
func DocumentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasText reports whether any page carries non-whitespace text.
func (d *Document) HasText() bool {
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// Page is the text extracted from one page (or sheet) of a source file. Number is 1-based.
type Page struct {
	Source string `json:"source"`
	Number int    `json:"page"`
	Text   string `json:"text"`
}

// Chunk is a bounded, overlapping slice of a document's text together with the metadata
// carried through the index. Source, Page and Index are never interpreted by retrieval.
type Chunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
	Page    int    `json:"page,omitempty"`
	Index   int    `json:"chunk_index"`
}
