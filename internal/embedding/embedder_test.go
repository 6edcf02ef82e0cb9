package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/iasistente/internal/models"
)

func TestMockEmbedder_deterministicUnitVectors(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	docs, err := e.EmbedDocuments(ctx, []string{"álgebra", "geometría"})
	if err != nil {
		t.Fatal(err)
	}
	q, _ := e.EmbedQuery(ctx, "álgebra")
	if len(docs) != 2 || len(q) != 16 {
		t.Fatalf("unexpected shapes: %d docs, query dim %d", len(docs), len(q))
	}
	for i := range q {
		if q[i] != docs[0][i] {
			t.Fatal("same text should embed identically")
		}
	}
	var sum float64
	for _, v := range docs[1] {
		sum += float64(v * v)
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("expected unit vector, norm^2 = %v", sum)
	}
}

func TestMockEmbedder_WithModel(t *testing.T) {
	e := NewMockEmbedder(0).WithModel("models/embedding-001")
	if e.Model() != "models/embedding-001" || e.Dimensions() != 64 {
		t.Errorf("got model %q dims %d", e.Model(), e.Dimensions())
	}
}

func TestNewGeminiEmbedder_requiresAPIKey(t *testing.T) {
	_, err := NewGeminiEmbedder(context.Background(), "", "models/embedding-001")
	if !models.IsKind(err, models.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestNewGeminiEmbedder_options(t *testing.T) {
	e, err := NewGeminiEmbedder(context.Background(), "test-key", "models/embedding-001", WithBatchSize(10))
	if err != nil {
		t.Fatalf("NewGeminiEmbedder: %v", err)
	}
	if e.Model() != "models/embedding-001" || e.batchSize != 10 {
		t.Errorf("got model %q batch %d", e.Model(), e.batchSize)
	}
}
