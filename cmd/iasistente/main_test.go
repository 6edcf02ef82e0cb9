package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/iasistente/internal/config"
	"github.com/hyperjump/iasistente/internal/models"
)

func envLookup(env map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadConfig_envOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "storage:\n  faiss_base_path: ./indexes\nllm:\n  model: gemini-1.5-pro\n  temperature: 0.2\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(path, envLookup(map[string]string{
		"GOOGLE_API_KEY":  "key",
		"LANGUAGE_MODEL":  "gemini-2.0-flash",
		"EMBEDDING_MODEL": "models/text-embedding-004",
	}))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.LLM.APIKey != "key" || cfg.LLM.Model != "gemini-2.0-flash" || cfg.Embedding.Model != "models/text-embedding-004" {
		t.Errorf("env not applied: %+v %+v", cfg.LLM, cfg.Embedding)
	}
	if cfg.LLM.TemperatureOrDefault() != 0.2 {
		t.Errorf("temperature = %v, want file value 0.2", cfg.LLM.TemperatureOrDefault())
	}
	if cfg.Storage.FAISSBasePath != filepath.Join(dir, "indexes") {
		t.Errorf("base path = %q", cfg.Storage.FAISSBasePath)
	}
}

func TestLoadConfig_errors(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), envLookup(nil)); err == nil {
		t.Error("expected error for explicit missing config file")
	}
	_, _, err := loadConfig(defaultConfigPath, envLookup(map[string]string{"TEMPERATURE": "warm"}))
	if !models.IsKind(err, models.ErrConfig) {
		t.Errorf("expected config error for bad TEMPERATURE, got %v", err)
	}
}

func TestLoadConfig_defaultsWithoutFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists")
	}
	cfg, resolved, err := loadConfig(defaultConfigPath, envLookup(map[string]string{"FAISS_BASE_PATH": "/srv/indexes"}))
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" || cfg.Storage.FAISSBasePath != "/srv/indexes" || cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("resolved=%q cfg=%+v", resolved, cfg.Storage)
	}
}

func TestAskViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req models.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.KnowledgeDomain != "algebra" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(models.ErrorResponse{Detail: "knowledge index not found: " + req.KnowledgeDomain})
			return
		}
		_ = json.NewEncoder(w).Encode(models.ChatResponse{Response: "Una variable es " + req.UserMessage})
	}))
	defer ts.Close()

	got, err := askViaHTTP(ts.URL+"/", "algebra", "x")
	if err != nil || got != "Una variable es x" {
		t.Errorf("askViaHTTP = %q, %v", got, err)
	}
	_, err = askViaHTTP(ts.URL, "nonexistent_domain", "x")
	if err == nil || !strings.Contains(err.Error(), "404: knowledge index not found: nonexistent_domain") {
		t.Errorf("expected 404 detail, got %v", err)
	}
}

func TestWatchRoots(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name  string
		args  []string
		inbox string
		want  []string
	}{
		{"directories from args", []string{dir, file}, "/inbox", []string{dir}},
		{"inbox when no args", nil, "/inbox", []string{"/inbox"}},
		{"files only", []string{file}, "/inbox", nil},
		{"nothing", nil, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := watchRoots(tt.args, tt.inbox); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("watchRoots() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResilienceConfig(t *testing.T) {
	rc := resilienceConfig(&config.ResilienceConfig{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Second,
		RetryMaxBackoff:     4 * time.Second,
		BreakerEnabled:      true,
	})
	if rc.RetryMaxAttempts != 3 || rc.RetryInitialBackoff != time.Second || !rc.BreakerEnabled || rc.RetryMultiplier != 2 {
		t.Errorf("resilienceConfig = %+v", rc)
	}
}
