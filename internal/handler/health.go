package handler

import (
	"net/http"

	"github.com/appforge-ai/console-api/internal/assistant"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	conn *assistant.Manager
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(conn *assistant.Manager) *HealthHandler {
	return &HealthHandler{conn: conn}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.conn == nil || h.conn.State() != assistant.StateConnected {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "assistant not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
