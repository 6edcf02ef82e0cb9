package e2e

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/iasistente/test/fixtures"
	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions is the list of file extensions used in E2E file-based tests.
var SupportedFileExtensions = []string{".pdf", ".xlsx", ".txt", ".md"}

// WriteMinimalFile returns the bytes of a minimal file of the given extension holding text.
// PDFs get one page per paragraph (blank-line separated); workbooks one row per paragraph.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	paragraphs := strings.Split(text, "\n\n")
	switch ext {
	case ".pdf":
		return fixtures.PDF(paragraphs...)
	case ".xlsx":
		return minimalXlsx(paragraphs)
	case ".txt", ".md", ".rst":
		return []byte(text), nil
	default:
		return nil, fmt.Errorf("no fixture for extension %q", ext)
	}
}

// WriteCorpus writes every corpus document into dir and returns their paths in corpus order.
func WriteCorpus(dir string, c *Corpus) ([]string, error) {
	paths := make([]string, 0, len(c.Documents))
	for _, d := range c.Documents {
		data, err := WriteMinimalFile(d.Ext, d.Content)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, d.FileName())
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func minimalXlsx(rows []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue("Sheet1", cell, row); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
