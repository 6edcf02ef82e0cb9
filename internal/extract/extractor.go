// Package extract loads source files as a sequence of per-page text extracts.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/iasistente/internal/models"
)

// Extractor loads pages from PDF, spreadsheet and plain text files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Load reads the file at path and returns its pages in order.
// PDFs yield one page per PDF page, spreadsheets one page per sheet, and plain text a single page.
// Pages are returned even when their text is blank; deciding whether a document is empty is up
// to the caller.
func (e *Extractor) Load(path string) ([]models.Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.LoadBytes(content, ext, path)
}

// LoadBytes extracts pages from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"); source is recorded on every page.
func (e *Extractor) LoadBytes(content []byte, ext, source string) ([]models.Page, error) {
	var (
		texts []string
		err   error
	)
	switch ext {
	case ".pdf":
		texts, err = extractPDF(content)
	case ".xlsx":
		texts, err = extractExcel(content)
	case ".txt", ".md", ".rst":
		texts, err = extractPlain(content)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}
	pages := make([]models.Page, len(texts))
	for i, text := range texts {
		pages[i] = models.Page{Source: source, Number: i + 1, Text: text}
	}
	return pages, nil
}

// Supported reports whether ext (with leading dot, any case) can be loaded.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".xlsx", ".txt", ".md", ".rst":
		return true
	}
	return false
}
