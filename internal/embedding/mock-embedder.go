package embedding

import (
	"context"
	"math"

	"github.com/hyperjump/iasistente/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It returns a fixed-dimension
// vector derived from the text hash so that the same text always gets the same embedding.
// Documents and queries share one space.
type MockEmbedder struct {
	dimensions int
	model      string
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &MockEmbedder{dimensions: dimensions, model: "mock-embedding"}
}

// WithModel returns a copy reporting model as its tag.
func (e *MockEmbedder) WithModel(model string) *MockEmbedder {
	return &MockEmbedder{dimensions: e.dimensions, model: model}
}

// EmbedQuery returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	h := hashString(text)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedDocuments calls EmbedQuery for each text.
func (e *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *MockEmbedder) Model() string {
	return e.model
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
