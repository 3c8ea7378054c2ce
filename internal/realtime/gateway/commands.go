package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vintage-realtime/internal/domain"
	"github.com/vintage-realtime/internal/metrics"
	"go.uber.org/zap"
)

// Inbound command names. The colon-separated forms are accepted for clients
// that address a topic kind directly.
const (
	CmdSubscribe           = "subscribe"
	CmdUnsubscribe         = "unsubscribe"
	CmdMarkRead            = "markRead"
	CmdMarkAllRead         = "markAllRead"
	CmdPresenceList        = "presence:list"
	CmdProductSubscribe    = "product:subscribe"
	CmdProductUnsubscribe  = "product:unsubscribe"
	CmdCategorySubscribe   = "category:subscribe"
	CmdCategoryUnsubscribe = "category:unsubscribe"
	CmdOrderSubscribe      = "order:subscribe"
	CmdOrderUnsubscribe    = "order:unsubscribe"
	CmdNotificationRead    = "notification:read"
	CmdNotificationReadAll = "notification:readAll"
	CmdUsersGetOnline      = "users:getOnline"
)

var errUnknownCommand = errors.New("unknown command")

// Command is one inbound client frame.
type Command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HandleCommand executes one raw inbound frame for c. Failures, including
// panics, are reported to c as an error event and never end the connection.
func (g *Gateway) HandleCommand(ctx context.Context, c *Connection, raw []byte) {
	var cmd Command
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("command panicked", zap.String("command", cmd.Type), zap.Any("panic", r))
			metrics.CommandsHandled.WithLabelValues(metricCommand(cmd.Type), "panic").Inc()
			g.replyError(c, cmd.Type, errors.New("internal error"))
		}
	}()

	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Type == "" {
		metrics.CommandsHandled.WithLabelValues("malformed", "error").Inc()
		g.replyError(c, "", fmt.Errorf("malformed command: %w", domain.ErrBadRequest))
		return
	}

	if err := g.execute(ctx, c, cmd); err != nil {
		metrics.CommandsHandled.WithLabelValues(metricCommand(cmd.Type), "error").Inc()
		c.log.Debug("command rejected", zap.String("command", cmd.Type), zap.Error(err))
		g.replyError(c, cmd.Type, err)
		return
	}
	metrics.CommandsHandled.WithLabelValues(metricCommand(cmd.Type), "ok").Inc()
}

func (g *Gateway) execute(ctx context.Context, c *Connection, cmd Command) error {
	switch cmd.Type {
	case CmdSubscribe, CmdUnsubscribe:
		name, err := decodeString(cmd.Payload, "topic")
		if err != nil {
			return err
		}
		if cmd.Type == CmdSubscribe {
			return g.Subscribe(c, name)
		}
		return g.Unsubscribe(c, name)

	case CmdProductSubscribe, CmdCategorySubscribe, CmdOrderSubscribe,
		CmdProductUnsubscribe, CmdCategoryUnsubscribe, CmdOrderUnsubscribe:
		kind, action, _ := strings.Cut(cmd.Type, ":")
		entityID, err := decodeString(cmd.Payload, "id")
		if err != nil {
			return err
		}
		name := kind + ":" + entityID
		if action == "subscribe" {
			return g.Subscribe(c, name)
		}
		return g.Unsubscribe(c, name)

	case CmdMarkRead, CmdNotificationRead:
		notificationID, err := decodeString(cmd.Payload, "id")
		if err != nil {
			return err
		}
		return g.MarkRead(ctx, c, notificationID)

	case CmdMarkAllRead, CmdNotificationReadAll:
		return g.MarkAllRead(ctx, c)

	case CmdPresenceList, CmdUsersGetOnline:
		c.Send(domain.Event{Name: domain.EventUsersOnline, Data: g.presence.ListOnline()})
		return nil

	default:
		return fmt.Errorf("%w %q", errUnknownCommand, cmd.Type)
	}
}

// Subscribe joins c to the named topic after checking c may see it.
func (g *Gateway) Subscribe(c *Connection, name string) error {
	kind, topicID, err := domain.ParseTopic(name)
	if err != nil {
		return err
	}
	if err := authorize(c.identity, kind, topicID); err != nil {
		return err
	}
	topic := domain.Topic(string(kind) + ":" + topicID)
	if c.closed() {
		return nil
	}
	g.router.Join(c, topic)
	// Disconnect closes c before clearing its topics; a join that lost the
	// race is undone here.
	if c.closed() {
		g.router.Leave(c, topic)
		return nil
	}
	c.Send(domain.Event{Name: domain.EventSubscribed, Data: domain.TopicPayload{Topic: topic}})
	return nil
}

// Unsubscribe removes c from the named topic. Leaving a topic c never joined is not an error.
func (g *Gateway) Unsubscribe(c *Connection, name string) error {
	kind, topicID, err := domain.ParseTopic(name)
	if err != nil {
		return err
	}
	topic := domain.Topic(string(kind) + ":" + topicID)
	g.router.Leave(c, topic)
	c.Send(domain.Event{Name: domain.EventUnsubscribed, Data: domain.TopicPayload{Topic: topic}})
	return nil
}

// MarkRead marks one of the identity's notifications read and tells every
// connection of that identity.
func (g *Gateway) MarkRead(ctx context.Context, c *Connection, notificationID string) error {
	if !c.identity.Authenticated() {
		return fmt.Errorf("authentication required: %w", domain.ErrUnauthorized)
	}
	n, err := g.ledger.MarkAsRead(ctx, notificationID, c.identity.UserID)
	if err != nil {
		return err
	}
	g.PublishToTopic(domain.UserTopic(c.identity.UserID), domain.Event{
		Name: domain.EventNotificationUpdated,
		Data: domain.ReadStatePayload{NotificationID: n.NotificationID, IsRead: n.IsRead},
	})
	return nil
}

func (g *Gateway) MarkAllRead(ctx context.Context, c *Connection) error {
	if !c.identity.Authenticated() {
		return fmt.Errorf("authentication required: %w", domain.ErrUnauthorized)
	}
	count, err := g.ledger.MarkAllAsRead(ctx, c.identity.UserID)
	if err != nil {
		return err
	}
	g.PublishToTopic(domain.UserTopic(c.identity.UserID), domain.Event{
		Name: domain.EventNotificationAllRead,
		Data: domain.CountPayload{Count: count},
	})
	return nil
}

// authorize enforces topic visibility: product and category topics are open
// to everyone, order topics need an authenticated identity, and user and role
// topics only admit the matching identity.
func authorize(identity domain.Identity, kind domain.TopicKind, topicID string) error {
	if kind.Public() {
		return nil
	}
	if !identity.Authenticated() {
		return fmt.Errorf("topic %s requires authentication: %w", kind, domain.ErrForbidden)
	}
	switch kind {
	case domain.TopicUser:
		if topicID != identity.UserID {
			return fmt.Errorf("personal topic of another user: %w", domain.ErrForbidden)
		}
	case domain.TopicRole:
		if topicID != identity.Role {
			return fmt.Errorf("role topic %s: %w", topicID, domain.ErrForbidden)
		}
	}
	return nil
}

func (g *Gateway) replyError(c *Connection, command string, err error) {
	code, message := classify(err)
	c.Send(domain.Event{
		Name: domain.EventError,
		Data: domain.ErrorPayload{Code: code, Message: message, Command: command},
	})
}

// classify maps err to a stable error code and a client-safe message.
func classify(err error) (code, message string) {
	switch {
	case errors.Is(err, errUnknownCommand):
		return "unknown_command", err.Error()
	case errors.Is(err, domain.ErrBadRequest):
		return "bad_request", err.Error()
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "not_found", "notification not found"
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrAuthenticationFailed):
		return "unauthenticated", "authentication required"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage_unavailable", "storage temporarily unavailable"
	default:
		return "internal", "internal error"
	}
}

// decodeString reads a string argument that clients send either bare
// ("product:1") or wrapped in an object ({"topic":"product:1"}).
func decodeString(payload json.RawMessage, field string) (string, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return "", fmt.Errorf("missing %s: %w", field, domain.ErrBadRequest)
	}
	var s string
	if payload[0] == '"' {
		if err := json.Unmarshal(payload, &s); err != nil {
			return "", fmt.Errorf("invalid %s: %w", field, domain.ErrBadRequest)
		}
	} else {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(payload, &obj); err != nil {
			return "", fmt.Errorf("invalid payload: %w", domain.ErrBadRequest)
		}
		return decodeScalar(obj[field], field)
	}
	if s = strings.TrimSpace(s); s == "" {
		return "", fmt.Errorf("missing %s: %w", field, domain.ErrBadRequest)
	}
	return s, nil
}

// decodeScalar accepts a JSON string or number, since entity ids arrive in both forms.
func decodeScalar(raw json.RawMessage, field string) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("missing %s: %w", field, domain.ErrBadRequest)
	}
	if raw[0] == '"' {
		return decodeString(raw, field)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return "", fmt.Errorf("invalid %s: %w", field, domain.ErrBadRequest)
	}
	return num.String(), nil
}

// metricCommand bounds the label set to known command names.
func metricCommand(name string) string {
	switch name {
	case CmdSubscribe, CmdUnsubscribe, CmdMarkRead, CmdMarkAllRead, CmdPresenceList,
		CmdProductSubscribe, CmdProductUnsubscribe, CmdCategorySubscribe, CmdCategoryUnsubscribe,
		CmdOrderSubscribe, CmdOrderUnsubscribe, CmdNotificationRead, CmdNotificationReadAll,
		CmdUsersGetOnline:
		return name
	default:
		return "unknown"
	}
}
