package main

import (
	"context"
	"path/filepath"

	"github.com/hyperjump/iasistente/internal/config"
	"github.com/hyperjump/iasistente/internal/embedding"
	"github.com/hyperjump/iasistente/internal/indexer"
	"github.com/hyperjump/iasistente/internal/knowledge"
	"github.com/hyperjump/iasistente/internal/llm"
	"github.com/hyperjump/iasistente/internal/rag"
	"github.com/hyperjump/iasistente/internal/resilience"
	"github.com/hyperjump/iasistente/internal/storage"
	"github.com/hyperjump/iasistente/internal/watcher"
	"go.uber.org/zap"
)

// Components holds the services shared by the server and the CLI commands.
type Components struct {
	Store    *knowledge.Store
	Ledger   storage.IngestionLog
	Executor *resilience.Executor
	Indexer  *indexer.Indexer
}

func (c *Components) Close() {
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
}

// initializeComponents wires the index store, the ingestion ledger and the indexer. A ledger
// that cannot be opened is logged and skipped; ingestion and chat do not depend on it.
func initializeComponents(cfg *config.Config, logger *zap.Logger) *Components {
	c := &Components{
		Store:    knowledge.NewStore(cfg.Storage.FAISSBasePath, knowledge.WithLogger(logger)),
		Executor: resilience.NewExecutor(resilienceConfig(&cfg.Resilience), resilience.WithLogger(logger)),
	}
	if cfg.Storage.DatabasePath != "" {
		ledger, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			logger.Warn("ingestion ledger disabled", zap.String("path", cfg.Storage.DatabasePath), zap.Error(err))
		} else {
			c.Ledger = ledger
		}
	}
	idxOpts := []indexer.IndexerOption{indexer.WithLogger(logger)}
	if c.Ledger != nil {
		idxOpts = append(idxOpts, indexer.WithLedger(c.Ledger))
	}
	c.Indexer = indexer.NewIndexer(&cfg.Ingest, embedderFactory(cfg, c.Executor, logger), idxOpts...)
	return c
}

func resilienceConfig(rc *config.ResilienceConfig) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = rc.RetryMaxAttempts
	out.RetryInitialBackoff = rc.RetryInitialBackoff
	out.RetryMaxBackoff = rc.RetryMaxBackoff
	out.BreakerEnabled = rc.BreakerEnabled
	return out
}

func embedderFactory(cfg *config.Config, exec *resilience.Executor, logger *zap.Logger) indexer.EmbedderFactory {
	return func(ctx context.Context, apiKey string) (embedding.Embedder, error) {
		return embedding.NewGeminiEmbedder(ctx, apiKey, cfg.Embedding.Model,
			embedding.WithLogger(logger),
			embedding.WithExecutor(exec),
			embedding.WithBatchSize(cfg.Embedding.BatchSize),
		)
	}
}

// newChainCache builds the chat side: query embedder with its cache, the chat model and the
// per-domain chain cache.
func newChainCache(ctx context.Context, cfg *config.Config, c *Components, logger *zap.Logger) (*rag.ChainCache, error) {
	queryEmbedder, err := embedderFactory(cfg, c.Executor, logger)(ctx, cfg.LLM.APIKey)
	if err != nil {
		return nil, err
	}
	chat, err := llm.NewGeminiChat(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.TemperatureOrDefault(),
		llm.WithLogger(logger),
		llm.WithExecutor(c.Executor),
	)
	if err != nil {
		return nil, err
	}
	builder := rag.NewBuilder(c.Store, embedding.NewCachedEmbedder(queryEmbedder, cfg.Embedding.CacheSize), chat,
		rag.WithLogger(logger),
		rag.WithPrompt(rag.NewPrompt(cfg.Prompt.SystemTemplate)),
		rag.WithTopK(cfg.Retrieval.TopK),
	)
	return rag.NewChainCache(builder, cfg.Retrieval.CacheSizeOrDefault(), rag.WithCacheLogger(logger)), nil
}

// newIndexWatcher evicts cached chains when an index directory under base is replaced or removed.
func newIndexWatcher(base string, cache *rag.ChainCache, logger *zap.Logger) *watcher.Watcher {
	evict := func(path string) {
		if domain, ok := knowledge.DomainFromDir(filepath.Base(path)); ok {
			logger.Info("knowledge index changed", zap.String("domain", domain), zap.String("path", path))
			cache.Evict(domain)
		}
	}
	isIndex := watcher.NameMatcher(func(name string) bool {
		_, ok := knowledge.DomainFromDir(name)
		return ok
	})
	return watcher.NewWatcher([]string{base}, isIndex, false, evict, evict,
		watcher.WithDirectoryEntries(),
		watcher.WithLogger(logger),
	)
}
