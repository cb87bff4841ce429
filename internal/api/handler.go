// Package api provides the HTTP handlers for the USSD gateway interface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/natnaelb/microloan-ussd/internal/menu"
	"github.com/natnaelb/microloan-ussd/internal/session"
	"github.com/natnaelb/microloan-ussd/internal/store"
)

// Handler holds the dependencies shared by the HTTP endpoints.
type Handler struct {
	sessions *session.Store
	engine   *menu.Engine
	repo     store.Repository
}

// NewHandler creates a new Handler.
func NewHandler(sessions *session.Store, engine *menu.Engine, repo store.Repository) *Handler {
	return &Handler{sessions: sessions, engine: engine, repo: repo}
}

// RegisterRoutes registers the gateway-facing routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/ussd", h.HandleUSSD)
	r.Get("/api/health", h.Health)
}

// Health reports liveness and ledger-store connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "db": err.Error()})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}
