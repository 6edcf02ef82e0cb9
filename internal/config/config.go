// Package config provides configuration loading and structs for the iasistente service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/iasistente/internal/models"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. It is built once at process start
// and passed by pointer to every component that needs it.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RequestTimeout bounds each request; zero disables the timeout middleware.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds the index root and the ingestion ledger path.
type StorageConfig struct {
	// FAISSBasePath is the directory holding faiss_index_<domain> directories. There is no
	// default: requests fail with a configuration error while it is empty.
	FAISSBasePath string `yaml:"faiss_base_path"`
	DatabasePath  string `yaml:"database_path"`
}

// LLMConfig holds the chat model settings.
type LLMConfig struct {
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
}

// TemperatureOrDefault returns the sampling temperature; defaults to 0.7 when unset.
func (l *LLMConfig) TemperatureOrDefault() float64 {
	if l.Temperature != nil {
		return *l.Temperature
	}
	return defaultTemperature
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	CacheSize int    `yaml:"cache_size"`
	BatchSize int    `yaml:"batch_size"`
}

// IngestConfig holds text splitting and batch ingestion settings.
type IngestConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap *int     `yaml:"chunk_overlap"`
	Extensions   []string `yaml:"extensions"`
	Workers      int      `yaml:"workers"`
	// Inbox is a directory watched by "ingest --watch"; files dropped there are ingested.
	Inbox string `yaml:"inbox"`
}

// ChunkOverlapOrDefault returns the overlap between consecutive chunks; defaults to 200 when
// unset. An explicit zero disables overlap.
func (i *IngestConfig) ChunkOverlapOrDefault() int {
	if i.ChunkOverlap != nil {
		return *i.ChunkOverlap
	}
	return defaultChunkOverlap
}

// RetrievalConfig holds retriever and chain cache settings.
type RetrievalConfig struct {
	TopK         int   `yaml:"top_k"`
	CacheSize    *int  `yaml:"cache_size"`
	WatchIndexes *bool `yaml:"watch_indexes"`
}

// CacheSizeOrDefault returns the chain cache capacity. Zero disables caching, so every
// request loads its index again.
func (r *RetrievalConfig) CacheSizeOrDefault() int {
	if r.CacheSize != nil {
		return *r.CacheSize
	}
	return defaultChainCacheSize
}

// WatchIndexesOrDefault returns whether the index root is watched for re-ingestion; defaults to true.
func (r *RetrievalConfig) WatchIndexesOrDefault() bool {
	if r.WatchIndexes != nil {
		return *r.WatchIndexes
	}
	return true
}

// PromptConfig holds the persona template. An empty template selects the built-in tutor persona.
type PromptConfig struct {
	SystemTemplate string `yaml:"system_template"`
}

// ResilienceConfig controls retries and the circuit breaker around provider calls.
type ResilienceConfig struct {
	RetryMaxAttempts    int           `yaml:"retry_max_attempts"`
	RetryInitialBackoff time.Duration `yaml:"retry_initial_backoff"`
	RetryMaxBackoff     time.Duration `yaml:"retry_max_backoff"`
	BreakerEnabled      bool          `yaml:"breaker_enabled"`
}

// Default returns a config with every default applied and no file or environment input.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.FAISSBasePath = expandPath(cfg.Storage.FAISSBasePath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Ingest.Inbox = expandPath(cfg.Ingest.Inbox, configDir)

	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return models.NewError(models.ErrConfig, "config", "GOOGLE_API_KEY is not set")
	}
	if overlap := c.Ingest.ChunkOverlapOrDefault(); overlap < 0 || overlap >= c.Ingest.ChunkSize {
		return models.NewError(models.ErrConfig, "config",
			fmt.Sprintf("chunk_overlap (%d) must be in [0, chunk_size (%d))", overlap, c.Ingest.ChunkSize))
	}
	if c.Retrieval.TopK <= 0 {
		return models.NewError(models.ErrConfig, "config", "retrieval.top_k must be positive")
	}
	if c.Retrieval.CacheSizeOrDefault() < 0 {
		return models.NewError(models.ErrConfig, "config", "retrieval.cache_size must not be negative")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
