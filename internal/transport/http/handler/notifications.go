package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vintage-realtime/internal/application/notification"
	"github.com/vintage-realtime/internal/domain"
	"github.com/vintage-realtime/internal/transport/http/middleware"
)

type notificationService interface {
	List(ctx context.Context, userID string, q notification.ListQuery) (*notification.Page, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, notificationID, userID string) error
	DeleteAllRead(ctx context.Context, userID string) (int, error)
}

// readStatePublisher pushes read-state changes made over REST to the
// identity's live connections.
type readStatePublisher interface {
	PublishToTopic(topic domain.Topic, ev domain.Event) int
}

// NotificationHandler handles notification endpoints.
type NotificationHandler struct {
	svc notificationService
	pub readStatePublisher
}

func NewNotificationHandler(svc notificationService, pub readStatePublisher) *NotificationHandler {
	return &NotificationHandler{svc: svc, pub: pub}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	q := notification.ListQuery{Cursor: r.URL.Query().Get("cursor")}
	if v := r.URL.Query().Get("unread_only"); v != "" {
		unread, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unread_only must be a boolean")
			return
		}
		q.UnreadOnly = unread
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		q.Limit = limit
	}
	page, err := h.svc.List(r.Context(), claims.UserID, q)
	if err != nil {
		httpError(w, err)
		return
	}
	items := page.Items
	if items == nil {
		items = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, NotificationPageEnvelope{Data: items, NextCursor: page.NextCursor})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	count, err := h.svc.UnreadCount(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountEnvelope{Count: count})
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	n, err := h.svc.MarkAsRead(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	h.publish(claims.UserID, domain.Event{
		Name: domain.EventNotificationUpdated,
		Data: domain.ReadStatePayload{NotificationID: n.NotificationID, IsRead: n.IsRead},
	})
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	count, err := h.svc.MarkAllAsRead(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	h.publish(claims.UserID, domain.Event{
		Name: domain.EventNotificationAllRead,
		Data: domain.CountPayload{Count: count},
	})
	writeJSON(w, http.StatusOK, CountEnvelope{Count: count})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), claims.UserID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "notification deleted"})
}

func (h *NotificationHandler) DeleteAllRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	count, err := h.svc.DeleteAllRead(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountEnvelope{Count: count})
}

func (h *NotificationHandler) publish(userID string, ev domain.Event) {
	if h.pub == nil {
		return
	}
	h.pub.PublishToTopic(domain.UserTopic(userID), ev)
}
