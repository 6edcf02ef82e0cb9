package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/iasistente/internal/config"
	"github.com/hyperjump/iasistente/internal/models"
	"github.com/hyperjump/iasistente/internal/storage"
	"go.uber.org/zap"
)

type fakeAnswerer struct {
	answers map[string]string
	errs    map[string]error
	calls   int
}

func (f *fakeAnswerer) Answer(_ context.Context, domain, question string) (string, error) {
	f.calls++
	if err, ok := f.errs[domain]; ok {
		return "", err
	}
	if a, ok := f.answers[domain]; ok {
		return a + " " + question, nil
	}
	return "", models.NewError(models.ErrIndexNotFound, "knowledge", domain)
}

type fakeDomains []models.DomainInfo

func (f fakeDomains) List() ([]models.DomainInfo, error) { return f, nil }

func newTestServer(t *testing.T, answerer Answerer, ledger storage.IngestionLog) http.Handler {
	t.Helper()
	domains := fakeDomains{{Name: "algebra", Path: "/idx/faiss_index_algebra", Chunks: 3}}
	return NewServer(answerer, domains, ledger, &config.ServerConfig{Port: 8000}, zap.NewNop()).Handler()
}

func postChat(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, models.ErrorResponse) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	var out models.ErrorResponse
	if w.Code != http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
	}
	return w, out
}

func TestHandleChat_ok(t *testing.T) {
	answerer := &fakeAnswerer{answers: map[string]string{"algebra": "Respuesta:"}}
	h := newTestServer(t, answerer, nil)

	w, _ := postChat(t, h, `{"user_message":"¿Qué es una variable?","knowledge_domain":"algebra"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out models.ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Response != "Respuesta: ¿Qué es una variable?" {
		t.Errorf("response: got %q", out.Response)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: got %q", ct)
	}
}

func TestHandleChat_errors(t *testing.T) {
	answerer := &fakeAnswerer{errs: map[string]error{
		"corrupt":  models.WrapError(models.ErrIndexLoad, "knowledge", errors.New("dimension mismatch: 768 != 8")),
		"provider": models.WrapError(models.ErrProvider, "generate", errors.New("Error 429: RESOURCE_EXHAUSTED")),
		"nobase":   models.NewError(models.ErrConfig, "knowledge", "FAISS base path is not configured"),
	}}
	h := newTestServer(t, answerer, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{"not found", `{"user_message":"hola","knowledge_domain":"nonexistent_domain"}`, http.StatusNotFound, "knowledge index not found: nonexistent_domain"},
		{"index load is generic", `{"user_message":"hola","knowledge_domain":"corrupt"}`, http.StatusInternalServerError, "unexpected error: failed to load knowledge index"},
		{"provider error text included", `{"user_message":"hola","knowledge_domain":"provider"}`, http.StatusInternalServerError, "unexpected error: generate: provider request failed: Error 429: RESOURCE_EXHAUSTED"},
		{"config error", `{"user_message":"hola","knowledge_domain":"nobase"}`, http.StatusInternalServerError, "unexpected error: knowledge: configuration error: FAISS base path is not configured"},
		{"malformed json", `{"user_message":`, http.StatusBadRequest, "invalid request body"},
		{"missing message", `{"knowledge_domain":"algebra"}`, http.StatusBadRequest, "user_message is required"},
		{"missing domain", `{"user_message":"hola"}`, http.StatusBadRequest, "knowledge_domain is required"},
		{"traversal domain", `{"user_message":"hola","knowledge_domain":"../etc"}`, http.StatusBadRequest, "not a valid knowledge domain"},
		{"separator in domain", `{"user_message":"hola","knowledge_domain":"a/b"}`, http.StatusBadRequest, "not a valid knowledge domain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := postChat(t, h, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d (%s)", w.Code, tt.wantStatus, out.Detail)
			}
			if !strings.Contains(out.Detail, tt.wantDetail) {
				t.Errorf("detail: got %q, want it to contain %q", out.Detail, tt.wantDetail)
			}
		})
	}
}

func TestHandleChat_invalidRequestsSkipAnswerer(t *testing.T) {
	answerer := &fakeAnswerer{}
	h := newTestServer(t, answerer, nil)
	postChat(t, h, `{"user_message":"hola","knowledge_domain":".hidden"}`)
	postChat(t, h, `not json`)
	if answerer.calls != 0 {
		t.Errorf("answerer called %d times", answerer.calls)
	}
}

func TestChatError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		outcome string
	}{
		{models.NewError(models.ErrInvalidInput, "domain", "bad"), http.StatusBadRequest, "invalid"},
		{models.NewError(models.ErrIndexNotFound, "knowledge", "x"), http.StatusNotFound, "not_found"},
		{models.WrapError(models.ErrIndexLoad, "knowledge", errors.New("corrupt")), http.StatusInternalServerError, "index_load"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "error"},
	}
	for _, tt := range tests {
		status, _, outcome := chatError(tt.err, "x")
		if status != tt.status || outcome != tt.outcome {
			t.Errorf("chatError(%v) = %d %q, want %d %q", tt.err, status, outcome, tt.status, tt.outcome)
		}
	}
}

func TestHandleDomains(t *testing.T) {
	h := newTestServer(t, &fakeAnswerer{}, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/domains", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Domains []models.DomainInfo `json:"domains"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Domains) != 1 || out.Domains[0].Name != "algebra" {
		t.Errorf("domains: got %+v", out.Domains)
	}
}

func TestHandleDomains_lastIngestion(t *testing.T) {
	ledger, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := ledger.Record(context.Background(), &models.IngestionResult{
		ID: "run-1", Source: "algebra.pdf", Name: "algebra", Status: models.IngestionSucceeded, StartedAt: at,
	}); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, &fakeAnswerer{}, ledger)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/domains", nil))
	var out struct {
		Domains []models.DomainInfo `json:"domains"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Domains) != 1 || out.Domains[0].LastIngestionID != "run-1" || out.Domains[0].LastIngestedAt != "2026-03-01T10:00:00Z" {
		t.Errorf("domains: got %+v", out.Domains)
	}
}

func TestHandleIngestions(t *testing.T) {
	ledger, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()
	ctx := context.Background()
	for i, name := range []string{"algebra", "geometria", "algebra"} {
		r := &models.IngestionResult{
			ID:        fmt.Sprintf("id-%d", i),
			Source:    name + ".pdf",
			Name:      name,
			Status:    models.IngestionSucceeded,
			StartedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := ledger.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	h := newTestServer(t, &fakeAnswerer{}, ledger)

	tests := []struct {
		query      string
		wantStatus int
		wantCount  int
	}{
		{"", http.StatusOK, 3},
		{"?domain=algebra", http.StatusOK, 2},
		{"?limit=1", http.StatusOK, 1},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ingestions"+tt.query, nil))
		if w.Code != tt.wantStatus {
			t.Errorf("%s: status got %d, want %d", tt.query, w.Code, tt.wantStatus)
			continue
		}
		if tt.wantStatus != http.StatusOK {
			continue
		}
		var out struct {
			Ingestions []models.IngestionResult `json:"ingestions"`
		}
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		if len(out.Ingestions) != tt.wantCount {
			t.Errorf("%s: got %d ingestions, want %d", tt.query, len(out.Ingestions), tt.wantCount)
		}
	}
}

func TestHandleIngestions_NotEnabled(t *testing.T) {
	h := newTestServer(t, &fakeAnswerer{}, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ingestions", nil))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, &fakeAnswerer{}, nil)
	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: status got %d", path, w.Code)
		}
		if path == "/health" && w.Header().Get("X-Request-Id") == "" {
			t.Error("expected request ID header")
		}
	}
}
