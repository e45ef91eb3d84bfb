package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Journal reports the state of the event journal connection.
type Journal interface {
	Connected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db      Pinger
	journal Journal
}

// NewHealthHandler creates a new health handler. journal is nil when the event
// journal is disabled.
func NewHealthHandler(db Pinger, journal Journal) *HealthHandler {
	return &HealthHandler{
		db:      db,
		journal: journal,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database unreachable",
		})
		return
	}

	journal := "disabled"
	if h.journal != nil {
		// The journal is best effort; a lost NATS connection degrades but does not fail readiness.
		journal = "connected"
		if !h.journal.Connected() {
			journal = "disconnected"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"journal": journal,
	})
}
