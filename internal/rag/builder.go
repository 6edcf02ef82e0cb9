package rag

import (
	"context"

	"github.com/hyperjump/iasistente/internal/embedding"
	"github.com/hyperjump/iasistente/internal/knowledge"
	"github.com/hyperjump/iasistente/internal/llm"
	"go.uber.org/zap"
)

// Builder loads a domain's index and binds it into a Chain.
type Builder struct {
	store    *knowledge.Store
	embedder embedding.Embedder
	model    llm.ChatModel
	prompt   *Prompt
	topK     int
	logger   *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for chain builds.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithPrompt overrides the default tutor prompt.
func WithPrompt(p *Prompt) BuilderOption {
	return func(b *Builder) { b.prompt = p }
}

// WithTopK sets how many chunks are retrieved per question.
func WithTopK(k int) BuilderOption {
	return func(b *Builder) { b.topK = k }
}

// NewBuilder returns a builder. Indexes are only accepted when built with embedder's model.
func NewBuilder(store *knowledge.Store, embedder embedding.Embedder, model llm.ChatModel, opts ...BuilderOption) *Builder {
	b := &Builder{
		store:    store,
		embedder: embedder,
		model:    model,
		prompt:   NewPrompt(""),
		topK:     4,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build loads the index for domain and returns a ready chain. Errors keep the kinds of
// knowledge.Store.Open.
func (b *Builder) Build(_ context.Context, domain string) (*Chain, error) {
	version, verr := b.store.Version(domain)
	index, _, err := b.store.Open(domain, b.embedder.Model())
	if err != nil {
		return nil, err
	}
	if verr != nil {
		return nil, verr
	}
	chain := NewChain(domain, NewRetriever(b.embedder, index, b.topK), b.prompt, b.model)
	chain.version = version
	b.logger.Info("knowledge chain built",
		zap.String("domain", domain),
		zap.Int("chunks", index.Size()),
		zap.Int("top_k", b.topK),
	)
	return chain, nil
}

// Version reports the on-disk version of domain's index.
func (b *Builder) Version(domain string) (knowledge.Version, error) {
	return b.store.Version(domain)
}
