package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vintage-realtime/internal/domain"
	"github.com/vintage-realtime/internal/metrics"
	"github.com/vintage-realtime/internal/realtime/gateway"
	"github.com/vintage-realtime/internal/transport/http/middleware"
	"go.uber.org/zap"
)

type realtimeGateway interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
	Attach(ctx context.Context, t gateway.Transport, identity domain.Identity) *gateway.Connection
	HandleCommand(ctx context.Context, c *gateway.Connection, raw []byte)
	Disconnect(c *gateway.Connection, reason string)
}

type WSOptions struct {
	AllowedOrigins  []string
	MaxMessageBytes int64
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
}

// WSHandler upgrades authenticated requests to websocket connections and
// pumps inbound frames into the gateway.
type WSHandler struct {
	gw       realtimeGateway
	opts     WSOptions
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSHandler(gw realtimeGateway, opts WSOptions, log *zap.Logger) *WSHandler {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 4096
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &WSHandler{gw: gw, opts: opts, log: log.With(zap.String("component", "ws"))}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Serve authenticates before upgrading: a bad token gets a plain 401 and
// never becomes an anonymous connection.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}
	identity, err := h.gw.Authenticate(r.Context(), token)
	if err != nil {
		metrics.ConnectionsRejected.WithLabelValues("authentication").Inc()
		h.log.Debug("websocket authentication failed", zap.Error(err))
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.ConnectionsRejected.WithLabelValues("upgrade").Inc()
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(h.opts.MaxMessageBytes)

	ctx := r.Context()
	c := h.gw.Attach(ctx, &wsTransport{conn: conn, writeTimeout: h.opts.WriteTimeout}, identity)
	go h.keepAlive(conn, c)
	h.readLoop(ctx, conn, c)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, c *gateway.Connection) {
	extend := func() error { return conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout)) }
	_ = extend()
	conn.SetPongHandler(func(string) error { return extend() })

	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			reason := "client closed"
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				reason = "read error"
				h.log.Debug("websocket read", zap.String("connection_id", c.ID()), zap.Error(err))
			}
			h.gw.Disconnect(c, reason)
			return
		}
		_ = extend()
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		h.gw.HandleCommand(ctx, c, raw)
	}
}

// keepAlive pings at 9/10 of the pong timeout so a healthy peer always
// answers before its read deadline passes.
func (h *WSHandler) keepAlive(conn *websocket.Conn, c *gateway.Connection) {
	ticker := time.NewTicker(h.opts.PongTimeout * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-c.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
				h.gw.Disconnect(c, "ping failed")
				return
			}
		}
	}
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients
	}
	for _, allowed := range h.opts.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	h.log.Warn("rejected websocket origin", zap.String("origin", origin))
	return false
}

// wsTransport writes events as JSON text frames. Only the connection's
// writer goroutine calls WriteEvent and Close.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (t *wsTransport) WriteEvent(ctx context.Context, ev domain.Event) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(t.writeTimeout)
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteJSON(ev)
}

func (t *wsTransport) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}
