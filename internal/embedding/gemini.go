package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/iasistente/internal/metrics"
	"github.com/hyperjump/iasistente/internal/models"
	"github.com/hyperjump/iasistente/internal/resilience"
	"github.com/hyperjump/iasistente/pkg/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	defaultBatchSize      = 100
)

// GeminiEmbedder embeds text with a Google Generative AI embedding model.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	batchSize int
	executor  *resilience.Executor
	logger    *zap.Logger
}

// GeminiOption configures a GeminiEmbedder.
type GeminiOption func(*GeminiEmbedder)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) GeminiOption {
	return func(e *GeminiEmbedder) { e.logger = l }
}

// WithExecutor sets the retry and circuit breaker policy for provider calls.
func WithExecutor(x *resilience.Executor) GeminiOption {
	return func(e *GeminiEmbedder) { e.executor = x }
}

// WithBatchSize caps the number of texts sent per embedding request.
func WithBatchSize(n int) GeminiOption {
	return func(e *GeminiEmbedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// NewGeminiEmbedder creates an embedder for model using apiKey.
// Returns a configuration error when apiKey is empty.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, models.NewError(models.ErrConfig, "embedding", "GOOGLE_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, models.WrapError(models.ErrConfig, "embedding", fmt.Errorf("create genai client: %w", err))
	}
	e := &GeminiEmbedder{
		client:    client,
		model:     model,
		batchSize: defaultBatchSize,
		executor:  resilience.NewExecutor(resilience.DefaultConfig()),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EmbedDocuments embeds texts in batches and returns one unit vector per text, in order.
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embed(ctx, "embed_documents", texts[start:end], taskRetrievalDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
		e.logger.Debug("embedded batch", zap.Int("from", start), zap.Int("to", end), zap.Int("total", len(texts)))
	}
	return out, nil
}

// EmbedQuery embeds a single retrieval query.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, "embed_query", []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *GeminiEmbedder) Model() string {
	return e.model
}

// Close is a no-op; the genai client holds no resources that need releasing.
func (e *GeminiEmbedder) Close() error {
	return nil
}

func (e *GeminiEmbedder) embed(ctx context.Context, op string, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	var resp *genai.EmbedContentResponse
	start := time.Now()
	err := e.executor.Execute(ctx, op, func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{TaskType: task})
		return callErr
	}, resilience.ClassifyProviderError)
	metrics.ObserveProvider(op, e.model, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, models.WrapError(models.ErrProvider, op, err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, models.NewError(models.ErrProvider, op, fmt.Sprintf("expected %d embeddings, got %d", len(texts), got))
	}

	vecs := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, models.NewError(models.ErrProvider, op, fmt.Sprintf("empty embedding at position %d", i))
		}
		utils.NormalizeL2(emb.Values)
		vecs[i] = emb.Values
	}
	return vecs, nil
}
