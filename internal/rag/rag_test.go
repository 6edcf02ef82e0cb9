package rag

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/iasistente/internal/embedding"
	"github.com/hyperjump/iasistente/internal/knowledge"
	"github.com/hyperjump/iasistente/internal/llm"
	"github.com/hyperjump/iasistente/internal/models"
	"github.com/hyperjump/iasistente/internal/vector"
)

const testModel = "models/embedding-001"

var algebraChunks = []string{
	"Una variable es un símbolo que representa un número desconocido.",
	"Una ecuación afirma que dos expresiones son iguales.",
	"Para resolver x + 2 = 5 se resta 2 en ambos lados.",
	"Un polinomio es una suma de términos con exponentes enteros.",
	"La factorización descompone un polinomio en factores.",
}

func writeIndex(t *testing.T, store *knowledge.Store, domain string, texts []string) {
	t.Helper()
	e := embedding.NewMockEmbedder(16).WithModel(testModel)
	vecs, err := e.EmbedDocuments(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := vector.NewFlatIndex(16)
	if err != nil {
		t.Fatal(err)
	}
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{ID: domain + "-" + string(rune('a'+i)), Content: text, Source: domain + ".pdf", Page: 1, Index: i}
	}
	if err := idx.Add(context.Background(), chunks, vecs); err != nil {
		t.Fatal(err)
	}
	_, err = store.Write(domain, idx, models.Manifest{
		FormatVersion:  models.ManifestFormatVersion,
		EmbeddingModel: testModel,
		Dimensions:     16,
		Chunks:         len(texts),
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func echoModel(captured *[]llm.Message) llm.ChatModel {
	return llm.ModelFunc(func(_ context.Context, msgs []llm.Message) (string, error) {
		if captured != nil {
			*captured = msgs
		}
		return "Respuesta: " + msgs[len(msgs)-1].Content, nil
	})
}

func TestPrompt_ComposeDefault(t *testing.T) {
	msgs := NewPrompt("").Compose("álgebra", "¿Qué es una variable?", []models.Chunk{
		{Content: "primer fragmento"}, {Content: "segundo fragmento"},
	})
	if len(msgs) != 2 || msgs[0].Role != llm.RoleSystem || msgs[1].Role != llm.RoleUser {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	sys := msgs[0].Content
	for _, want := range []string{
		`"IAsistente de álgebra"`,
		"Lo siento, mi especialidad es álgebra. No puedo responder preguntas sobre otros temas.",
		"Contexto:\nprimer fragmento\n\nsegundo fragmento",
	} {
		if !strings.Contains(sys, want) {
			t.Errorf("system message missing %q", want)
		}
	}
	if strings.Contains(sys, "{knowledge_domain}") || strings.Contains(sys, "{context}") {
		t.Error("placeholders left in system message")
	}
	if msgs[1].Content != "¿Qué es una variable?" {
		t.Errorf("user message = %q", msgs[1].Content)
	}
}

func TestPrompt_customTemplateGetsContext(t *testing.T) {
	msgs := NewPrompt("Tutor de {knowledge_domain}.").Compose("física", "q", []models.Chunk{{Content: "ctx"}})
	if msgs[0].Content != "Tutor de física.\n\nContexto:\nctx" {
		t.Errorf("system = %q", msgs[0].Content)
	}
}

func TestRetriever_verbatimChunkRanksFirst(t *testing.T) {
	store := knowledge.NewStore(t.TempDir())
	writeIndex(t, store, "algebra", algebraChunks)
	idx, _, err := store.Open("algebra", testModel)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRetriever(embedding.NewMockEmbedder(16).WithModel(testModel), idx, 0)
	for _, text := range algebraChunks {
		chunks, err := r.Retrieve(context.Background(), text)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunks) != 4 {
			t.Fatalf("expected default top 4, got %d", len(chunks))
		}
		if chunks[0].Content != text {
			t.Errorf("query %q ranked %q first", text, chunks[0].Content)
		}
	}
}

func TestBuilder_BuildAndInvoke(t *testing.T) {
	store := knowledge.NewStore(t.TempDir())
	writeIndex(t, store, "algebra", algebraChunks)
	var captured []llm.Message
	b := NewBuilder(store, embedding.NewMockEmbedder(16).WithModel(testModel), echoModel(&captured), WithTopK(2))

	chain, err := b.Build(context.Background(), "algebra")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	answer, err := chain.Invoke(context.Background(), algebraChunks[1])
	if err != nil {
		t.Fatal(err)
	}
	if answer == "" || !strings.HasPrefix(answer, "Respuesta: ") {
		t.Errorf("answer = %q", answer)
	}
	if !strings.Contains(captured[0].Content, "IAsistente de algebra") || !strings.Contains(captured[0].Content, algebraChunks[1]) {
		t.Errorf("system message missing domain or context: %q", captured[0].Content)
	}
}

func TestBuilder_BuildErrors(t *testing.T) {
	store := knowledge.NewStore(t.TempDir())
	writeIndex(t, store, "algebra", algebraChunks)
	tests := []struct {
		name    string
		builder *Builder
		domain  string
		kind    error
	}{
		{"missing domain", NewBuilder(store, embedding.NewMockEmbedder(16).WithModel(testModel), echoModel(nil)), "nonexistent_domain", models.ErrIndexNotFound},
		{"model mismatch", NewBuilder(store, embedding.NewMockEmbedder(16).WithModel("other-model"), echoModel(nil)), "algebra", models.ErrIndexLoad},
		{"no base path", NewBuilder(knowledge.NewStore(""), embedding.NewMockEmbedder(16), echoModel(nil)), "algebra", models.ErrConfig},
		{"traversal", NewBuilder(store, embedding.NewMockEmbedder(16), echoModel(nil)), "../algebra", models.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.builder.Build(context.Background(), tt.domain); !models.IsKind(err, tt.kind) {
				t.Errorf("Build(%q) = %v, want kind %v", tt.domain, err, tt.kind)
			}
		})
	}
}

func TestChain_emptyAnswerIsProviderError(t *testing.T) {
	store := knowledge.NewStore(t.TempDir())
	writeIndex(t, store, "algebra", algebraChunks)
	silent := llm.ModelFunc(func(context.Context, []llm.Message) (string, error) { return "  ", nil })
	failing := llm.ModelFunc(func(context.Context, []llm.Message) (string, error) { return "", errors.New("boom") })
	for _, model := range []llm.ChatModel{silent, failing} {
		chain, err := NewBuilder(store, embedding.NewMockEmbedder(16).WithModel(testModel), model).Build(context.Background(), "algebra")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := chain.Invoke(context.Background(), "hola"); !models.IsKind(err, models.ErrProvider) {
			t.Errorf("expected provider error, got %v", err)
		}
	}
}

type countingBuilder struct {
	*Builder
	builds atomic.Int32
}

func (c *countingBuilder) Build(ctx context.Context, domain string) (*Chain, error) {
	c.builds.Add(1)
	return c.Builder.Build(ctx, domain)
}

func newCountingBuilder(store *knowledge.Store) *countingBuilder {
	return &countingBuilder{Builder: NewBuilder(store, embedding.NewMockEmbedder(16).WithModel(testModel), echoModel(nil))}
}

func TestChainCache_hitAndInvalidation(t *testing.T) {
	store := knowledge.NewStore(t.TempDir())
	writeIndex(t, store, "algebra", algebraChunks[:2])
	b := newCountingBuilder(store)
	cache := NewChainCache(b, 4)
	ctx := context.Background()

	first, err := cache.Get(ctx, "algebra")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := cache.Get(ctx, "algebra")
	if first != again || b.builds.Load() != 1 {
		t.Fatalf("expected a cache hit, builds=%d", b.builds.Load())
	}

	writeIndex(t, store, "algebra", algebraChunks)
	rebuilt, err := cache.Get(ctx, "algebra")
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt == first || b.builds.Load() != 2 {
		t.Errorf("expected rebuild after re-ingestion, builds=%d", b.builds.Load())
	}
	if rebuilt.retriever.index.Size() != len(algebraChunks) {
		t.Errorf("rebuilt chain sees %d chunks", rebuilt.retriever.index.Size())
	}

	cache.Evict("algebra")
	if cache.Len() != 0 {
		t.Errorf("Len after Evict = %d", cache.Len())
	}
}

func TestChainCache_boundedLRU(t *testing.T) {
	store := knowledge.NewStore(t.TempDir())
	for _, d := range []string{"a", "b", "c"} {
		writeIndex(t, store, d, algebraChunks[:1])
	}
	b := newCountingBuilder(store)
	cache := NewChainCache(b, 2)
	ctx := context.Background()
	for _, d := range []string{"a", "b", "a", "c"} {
		if _, err := cache.Get(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	if cache.Len() != 2 {
		t.Errorf("Len = %d, want 2", cache.Len())
	}
	builds := b.builds.Load()
	_, _ = cache.Get(ctx, "a")
	if b.builds.Load() != builds {
		t.Error("recently used entry should still be cached")
	}
	_, _ = cache.Get(ctx, "b")
	if b.builds.Load() != builds+1 {
		t.Error("least recently used entry should have been evicted")
	}
}

func TestChainCache_zeroCapacityAlwaysBuilds(t *testing.T) {
	store := knowledge.NewStore(t.TempDir())
	writeIndex(t, store, "algebra", algebraChunks)
	b := newCountingBuilder(store)
	cache := NewChainCache(b, 0)
	for range 3 {
		if _, err := cache.Answer(context.Background(), "algebra", "hola"); err != nil {
			t.Fatal(err)
		}
	}
	if b.builds.Load() != 3 || cache.Len() != 0 {
		t.Errorf("builds=%d len=%d", b.builds.Load(), cache.Len())
	}
}

func TestChainCache_missingDomainNotCached(t *testing.T) {
	cache := NewChainCache(newCountingBuilder(knowledge.NewStore(t.TempDir())), 4)
	_, err := cache.Answer(context.Background(), "nonexistent_domain", "hola")
	if !models.IsKind(err, models.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
	if cache.Len() != 0 {
		t.Error("failed builds must not be cached")
	}
}
