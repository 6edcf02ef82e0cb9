package rag

import (
	"context"

	"github.com/hyperjump/iasistente/internal/embedding"
	"github.com/hyperjump/iasistente/internal/models"
	"github.com/hyperjump/iasistente/internal/vector"
)

// Retriever finds the chunks of one index closest to a question.
type Retriever struct {
	embedder embedding.Embedder
	index    *vector.FlatIndex
	topK     int
}

// NewRetriever binds embedder and index. topK below 1 means 4.
func NewRetriever(embedder embedding.Embedder, index *vector.FlatIndex, topK int) *Retriever {
	if topK < 1 {
		topK = 4
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}
}

// Retrieve returns up to topK chunks in descending similarity.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.Chunk, error) {
	q, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		if models.IsKind(err, models.ErrProvider) {
			return nil, err
		}
		return nil, models.WrapError(models.ErrProvider, "embed query", err)
	}
	hits, err := r.index.Search(ctx, q, r.topK)
	if err != nil {
		return nil, models.WrapError(models.ErrIndexLoad, "search", err)
	}
	chunks := make([]models.Chunk, len(hits))
	for i, h := range hits {
		chunks[i] = h.Chunk
	}
	return chunks, nil
}
