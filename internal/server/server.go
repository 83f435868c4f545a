// Package server exposes the consolidation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fintora/counsel/internal/domain"
	"github.com/fintora/counsel/internal/engine"
)

// PipelineService is the surface of the pipeline the HTTP layer consumes.
type PipelineService interface {
	Submit(ctx context.Context, threadID, question string) (*engine.SubmitResult, error)
	Trail(ctx context.Context, threadID string) (*domain.ThreadTrail, error)
}

// Server wires the pipeline into HTTP routes.
type Server struct {
	service PipelineService
	router  chi.Router
}

// New builds a server with routing, recovery, and CORS configured.
func New(service PipelineService) *Server {
	s := &Server{service: service}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/api/inquiries", s.handleSubmit)
	r.Get("/api/threads/{threadID}", s.handleTrail)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

type submitRequest struct {
	ThreadID string `json:"thread_id"`
	Question string `json:"question"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.service.Submit(r.Context(), req.ThreadID, req.Question)
	if err != nil {
		s.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrOutOfScope):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrAllProvidersFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		zap.L().Error("submit failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleTrail(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	trail, err := s.service.Trail(r.Context(), threadID)
	if err != nil {
		zap.L().Error("trail retrieval failed",
			zap.String("thread_id", threadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, trail)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
