// Package fixtures builds source documents for tests.
package fixtures

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
)

// PDF returns a PDF with one page per element of pages. An empty string produces a page
// without any text object. Text must be plain ASCII (core fonts use WinAnsi).
func PDF(pages ...string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	for _, text := range pages {
		pdf.AddPage()
		if text == "" {
			continue
		}
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, text, "", "L", false)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePDF writes PDF(pages...) to path, creating parent directories.
func WritePDF(path string, pages ...string) error {
	data, err := PDF(pages...)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// AlgebraPages is a two-page algebra primer used across ingestion and chat tests.
var AlgebraPages = []string{
	"Introduction to algebra. A variable is a symbol, usually a letter such as x, that stands for an unknown number. " +
		"Variables let us write general rules that hold for many numbers at once.",
	"An equation states that two expressions are equal. Solving an equation means finding the values of the variable " +
		"that make the statement true. For example, x + 2 = 5 is solved by x = 3.",
}
