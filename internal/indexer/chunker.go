package indexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hyperjump/iasistente/internal/models"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker splits text recursively on a list of separators, then merges the pieces back into
// chunks of at most chunkSize characters, carrying chunkOverlap characters of trailing context
// into the next chunk. Lengths are counted in runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}
}

// ChunkPages splits every page and returns the chunks in document order. Each chunk keeps the
// source and page number of the page it came from; Index runs across the whole document.
func (c *Chunker) ChunkPages(docName string, pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		for _, text := range c.Split(page.Text) {
			chunks = append(chunks, models.Chunk{
				ID:      fmt.Sprintf("%s-%d-%s", docName, len(chunks), uuid.New().String()[:8]),
				Content: text,
				Source:  page.Source,
				Page:    page.Number,
				Index:   len(chunks),
			})
		}
	}
	return chunks
}

// Split returns the chunks of text. Blank text yields no chunks.
func (c *Chunker) Split(text string) []string {
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	var chunks, good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < c.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, c.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, c.merge(good)...)
	}
	return chunks
}

// merge joins consecutive pieces while they fit in chunkSize. When a chunk is emitted, pieces
// are dropped from the front until at most chunkOverlap characters remain for the next one.
// Pieces already carry their separator, so they are joined without one.
func (c *Chunker) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > c.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				out = append(out, doc)
			}
			for total > c.chunkOverlap || (total+n > c.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		out = append(out, doc)
	}
	return out
}

// splitKeepSeparator splits text on sep and re-attaches sep to the start of each following
// piece. An empty sep splits into single characters. Empty pieces are dropped.
func splitKeepSeparator(text, sep string) []string {
	var parts []string
	if sep == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	raw := strings.Split(text, sep)
	parts = make([]string, 0, len(raw))
	if raw[0] != "" {
		parts = append(parts, raw[0])
	}
	for _, p := range raw[1:] {
		parts = append(parts, sep+p)
	}
	return parts
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
