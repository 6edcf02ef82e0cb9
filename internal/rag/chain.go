// Package rag answers questions about a knowledge domain from its vector index.
package rag

import (
	"context"
	"strings"

	"github.com/hyperjump/iasistente/internal/knowledge"
	"github.com/hyperjump/iasistente/internal/llm"
	"github.com/hyperjump/iasistente/internal/models"
)

// Chain runs retrieve, compose and generate for one domain. It is immutable after Build and
// safe for concurrent use.
type Chain struct {
	domain    string
	retriever *Retriever
	prompt    *Prompt
	model     llm.ChatModel
	version   knowledge.Version
}

// NewChain assembles a chain from its parts.
func NewChain(domain string, retriever *Retriever, prompt *Prompt, model llm.ChatModel) *Chain {
	return &Chain{domain: domain, retriever: retriever, prompt: prompt, model: model}
}

// Invoke answers question using the domain's index. An empty answer is a provider error.
func (c *Chain) Invoke(ctx context.Context, question string) (string, error) {
	chunks, err := c.retriever.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	answer, err := c.model.Generate(ctx, c.prompt.Compose(c.domain, question, chunks))
	if err != nil {
		if models.IsKind(err, models.ErrProvider) {
			return "", err
		}
		return "", models.WrapError(models.ErrProvider, "generate", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", models.NewError(models.ErrProvider, "generate", "model returned no text")
	}
	return answer, nil
}
