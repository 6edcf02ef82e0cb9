package config

import "time"

const (
	defaultTemperature    = 0.7
	defaultChainCacheSize = 32
	defaultChunkOverlap   = 200
)

// ApplyDefaults sets default values for any zero values in cfg.
// Storage.FAISSBasePath and LLM.APIKey have no default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/iasistente/data/db/ingestions.db"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.0-flash"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "models/embedding-001"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".pdf"}
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 1
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Resilience.RetryMaxAttempts == 0 {
		cfg.Resilience.RetryMaxAttempts = 1
	}
	if cfg.Resilience.RetryInitialBackoff == 0 {
		cfg.Resilience.RetryInitialBackoff = 500 * time.Millisecond
	}
	if cfg.Resilience.RetryMaxBackoff == 0 {
		cfg.Resilience.RetryMaxBackoff = 8 * time.Second
	}
}
