// Package llm wraps the chat model that answers questions from retrieved context.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn sent to a chat model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatModel generates a reply to a conversation.
type ChatModel interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// ModelFunc adapts a function to ChatModel.
type ModelFunc func(ctx context.Context, messages []Message) (string, error)

func (f ModelFunc) Generate(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
