// Package embedding turns text into vectors for indexing and retrieval.
package embedding

import "context"

// Embedder produces vector embeddings for text. Documents and queries are embedded
// separately because providers tune the vectors for each side of retrieval.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Model is the tag persisted with an index; indexes only load under the same model.
	Model() string
	Close() error
}
