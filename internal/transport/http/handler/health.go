package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthHandler handles the health-check endpoint.
type HealthHandler struct {
	connections func() int
}

// NewHealthHandler takes a probe reporting the number of open realtime
// connections; it may be nil.
func NewHealthHandler(connections func() int) *HealthHandler {
	return &HealthHandler{connections: connections}
}

type healthEnvelope struct {
	Message     string `json:"message"`
	Connections int    `json:"connections"`
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "status":
		env := healthEnvelope{Message: "ok"}
		if h.connections != nil {
			env.Connections = h.connections()
		}
		writeJSON(w, http.StatusOK, env)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
