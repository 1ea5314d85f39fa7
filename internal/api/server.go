// Package api exposes the rule-management surface over HTTP for the
// back-office UI. Every write goes through the engine, so the safety
// guard applies to API callers exactly as it does everywhere else.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backofhouse/tally/internal/engine"
	"github.com/backofhouse/tally/internal/service"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	engine  *engine.Engine
	storage service.Storage
}

// NewServer creates an API server over the given engine and storage.
func NewServer(eng *engine.Engine, storage service.Storage) *Server {
	return &Server{engine: eng, storage: storage}
}

// Router builds the chi router for the API.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.listRules)
			r.Post("/", s.createRule)
			r.Post("/check", s.checkRule)
			r.Get("/{rule_id}", s.getRule)
			r.Put("/{rule_id}", s.updateRule)
			r.Delete("/{rule_id}", s.deleteRule)
			r.Post("/{rule_id}/active", s.setRuleActive)
			r.Post("/{rule_id}/auto-apply", s.setRuleAutoApply)
		})

		r.Post("/apply", s.bulkApply)

		r.Get("/records/{record_id}", s.getRecord)
		r.Get("/records/{record_id}/allocations", s.getRecordAllocations)
	})

	return r
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
