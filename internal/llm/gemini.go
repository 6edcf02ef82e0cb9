package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/iasistente/internal/metrics"
	"github.com/hyperjump/iasistente/internal/models"
	"github.com/hyperjump/iasistente/internal/resilience"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiChat generates answers with a Gemini chat model.
type GeminiChat struct {
	client      *genai.Client
	model       string
	temperature float64
	executor    *resilience.Executor
	logger      *zap.Logger
}

// Option configures a GeminiChat.
type Option func(*GeminiChat)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(g *GeminiChat) { g.logger = l }
}

// WithExecutor sets the retry and circuit breaker policy for provider calls.
func WithExecutor(x *resilience.Executor) Option {
	return func(g *GeminiChat) { g.executor = x }
}

// NewGeminiChat creates a chat model client. Returns a configuration error when apiKey is empty.
func NewGeminiChat(ctx context.Context, apiKey, model string, temperature float64, opts ...Option) (*GeminiChat, error) {
	if apiKey == "" {
		return nil, models.NewError(models.ErrConfig, "llm", "GOOGLE_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, models.WrapError(models.ErrConfig, "llm", fmt.Errorf("create genai client: %w", err))
	}
	g := &GeminiChat{
		client:      client,
		model:       model,
		temperature: temperature,
		executor:    resilience.NewExecutor(resilience.DefaultConfig()),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Model returns the model name.
func (g *GeminiChat) Model() string {
	return g.model
}

// Generate sends messages and returns the model's text. System messages become the system
// instruction. An empty reply is a provider error.
func (g *GeminiChat) Generate(ctx context.Context, messages []Message) (string, error) {
	contents, system, err := toGeminiContents(messages)
	if err != nil {
		return "", models.WrapError(models.ErrInvalidInput, "generate", err)
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.temperature)),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	var resp *genai.GenerateContentResponse
	start := time.Now()
	err = g.executor.Execute(ctx, "generate", func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
		return callErr
	}, resilience.ClassifyProviderError)
	metrics.ObserveProvider("generate", g.model, time.Since(start).Seconds(), err)
	if err != nil {
		return "", models.WrapError(models.ErrProvider, "generate", err)
	}

	text := ""
	if resp != nil {
		text = resp.Text()
	}
	if strings.TrimSpace(text) == "" {
		return "", models.NewError(models.ErrProvider, "generate", "model returned no text")
	}
	g.logger.Debug("generated answer", zap.String("model", g.model), zap.Int("chars", len(text)))
	return text, nil
}

// toGeminiContents splits messages into conversation contents and the system instruction.
// Multiple system messages are joined with a blank line.
func toGeminiContents(messages []Message) ([]*genai.Content, string, error) {
	var (
		contents []*genai.Content
		system   []string
	)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
			continue
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{genai.NewPartFromText(m.Content)}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{genai.NewPartFromText(m.Content)}})
		}
	}
	if len(contents) == 0 {
		return nil, "", fmt.Errorf("no user message")
	}
	return contents, strings.Join(system, "\n\n"), nil
}
