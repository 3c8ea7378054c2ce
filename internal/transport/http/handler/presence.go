package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vintage-realtime/internal/domain"
)

type presenceReader interface {
	IsOnline(userID string) bool
	ListOnline() []domain.OnlineIdentity
}

// PresenceHandler exposes who is connected right now.
type PresenceHandler struct {
	presence presenceReader
}

func NewPresenceHandler(presence presenceReader) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

func (h *PresenceHandler) List(w http.ResponseWriter, _ *http.Request) {
	online := h.presence.ListOnline()
	if online == nil {
		online = []domain.OnlineIdentity{}
	}
	writeJSON(w, http.StatusOK, OnlineEnvelope{Data: online})
}

type onlineStatus struct {
	UserID string `json:"id"`
	Online bool   `json:"online"`
}

func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, onlineStatus{UserID: userID, Online: h.presence.IsOnline(userID)})
}
