package server

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hyperjump/iasistente/internal/knowledge"
	"github.com/hyperjump/iasistente/internal/metrics"
	"github.com/hyperjump/iasistente/internal/models"
	"github.com/hyperjump/iasistente/internal/storage"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("domain", func(fl validator.FieldLevel) bool {
		return knowledge.ValidateDomain(fl.Field().String()) == nil
	})
	return v
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("invalid").Inc()
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("invalid").Inc()
		s.respondError(w, http.StatusBadRequest, validationDetail(err))
		return
	}
	s.logger.Debug("chat request", zap.String("domain", req.KnowledgeDomain), zap.Int("message_len", len(req.UserMessage)))

	answer, err := s.answerer.Answer(r.Context(), req.KnowledgeDomain, req.UserMessage)
	if err != nil {
		status, detail, outcome := chatError(err, req.KnowledgeDomain)
		metrics.ChatRequestsTotal.WithLabelValues(outcome).Inc()
		if status >= http.StatusInternalServerError {
			s.logger.Error("chat failed", zap.String("domain", req.KnowledgeDomain), zap.Error(err))
		} else {
			s.logger.Info("chat rejected", zap.String("domain", req.KnowledgeDomain), zap.Error(err))
		}
		s.respondError(w, status, detail)
		return
	}
	metrics.ChatRequestsTotal.WithLabelValues("ok").Inc()
	s.respondJSON(w, http.StatusOK, models.ChatResponse{Response: answer})
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := s.domains.List()
	if err != nil {
		s.logger.Error("list domains failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if domains == nil {
		domains = []models.DomainInfo{}
	}
	if s.ledger != nil {
		if err := storage.AnnotateLastSuccess(r.Context(), s.ledger, domains); err != nil {
			s.logger.Warn("ingestion ledger lookup failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"domains": domains})
}

func (s *Server) handleIngestions(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion history not enabled")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	results, err := s.ledger.List(r.Context(), r.URL.Query().Get("domain"), limit)
	if err != nil {
		s.logger.Error("list ingestions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []*models.IngestionResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ingestions": results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Detail: message})
}
