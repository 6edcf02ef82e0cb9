package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/iasistente/internal/models"
)

// Environment variables that override the config file.
const (
	EnvAPIKey         = "GOOGLE_API_KEY"
	EnvFAISSBasePath  = "FAISS_BASE_PATH"
	EnvLanguageModel  = "LANGUAGE_MODEL"
	EnvTemperature    = "TEMPERATURE"
	EnvEmbeddingModel = "EMBEDDING_MODEL"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with the environment values returned by lookup. Empty values are
// ignored so an exported-but-blank variable does not wipe a file setting.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get(EnvAPIKey); ok {
		cfg.LLM.APIKey = v
	}
	if v, ok := get(EnvFAISSBasePath); ok {
		cfg.Storage.FAISSBasePath = v
	}
	if v, ok := get(EnvLanguageModel); ok {
		cfg.LLM.Model = v
	}
	if v, ok := get(EnvEmbeddingModel); ok {
		cfg.Embedding.Model = v
	}
	if v, ok := get(EnvTemperature); ok {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return models.WrapError(models.ErrConfig, "config", fmt.Errorf("invalid %s %q: %w", EnvTemperature, v, err))
		}
		cfg.LLM.Temperature = &t
	}
	return nil
}
