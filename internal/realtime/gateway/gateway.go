package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vintage-realtime/internal/domain"
	"github.com/vintage-realtime/internal/metrics"
	"github.com/vintage-realtime/internal/pkg/id"
	"github.com/vintage-realtime/internal/realtime/presence"
	"github.com/vintage-realtime/internal/realtime/subscription"
	"go.uber.org/zap"
)

const (
	defaultSendBuffer    = 64
	defaultWriteTimeout  = 10 * time.Second
	defaultUnreadBacklog = 20
)

type identityVerifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

type ledger interface {
	ListUnread(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
}

type Options struct {
	SendBuffer         int
	WriteTimeout       time.Duration
	UnreadBacklogLimit int
}

type Deps struct {
	Identities identityVerifier
	Ledger     ledger
	Presence   *presence.Registry
	Router     *subscription.Router
	Options    Options
	Logger     *zap.Logger
}

// Gateway owns every open connection and wires it into the presence
// registry and the subscription router.
type Gateway struct {
	identities identityVerifier
	ledger     ledger
	presence   *presence.Registry
	router     *subscription.Router
	opts       Options
	log        *zap.Logger

	mu    sync.RWMutex
	conns map[string]*Connection
}

func New(deps Deps) *Gateway {
	opts := deps.Options
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.UnreadBacklogLimit <= 0 {
		opts.UnreadBacklogLimit = defaultUnreadBacklog
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		identities: deps.Identities,
		ledger:     deps.Ledger,
		presence:   deps.Presence,
		router:     deps.Router,
		opts:       opts,
		log:        log.With(zap.String("component", "gateway")),
		conns:      make(map[string]*Connection),
	}
}

// Authenticate resolves token into an identity. An empty token yields the
// anonymous identity; a non-empty token that fails verification is an error.
func (g *Gateway) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Anonymous(), nil
	}
	identity, err := g.identities.Verify(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrAuthenticationFailed) {
			err = fmt.Errorf("%v: %w", err, domain.ErrAuthenticationFailed)
		}
		return domain.Identity{}, err
	}
	return identity, nil
}

// Connect authenticates token and registers a new connection over t. On
// authentication failure t is closed and no connection is created.
func (g *Gateway) Connect(ctx context.Context, t Transport, token string) (*Connection, error) {
	identity, err := g.Authenticate(ctx, token)
	if err != nil {
		metrics.ConnectionsRejected.WithLabelValues("authentication").Inc()
		if cerr := t.Close(); cerr != nil {
			g.log.Debug("transport close", zap.Error(cerr))
		}
		return nil, err
	}
	return g.Attach(ctx, t, identity), nil
}

// Attach registers a connection for an already resolved identity: it joins
// the identity's personal and role topics, marks it online, announces it and
// delivers the unread backlog.
func (g *Gateway) Attach(ctx context.Context, t Transport, identity domain.Identity) *Connection {
	now := time.Now().UTC()
	c := &Connection{
		id:           id.NewAt(now),
		identity:     identity,
		connectedAt:  now,
		transport:    t,
		send:         make(chan domain.Event, g.opts.SendBuffer),
		done:         make(chan struct{}),
		writeTimeout: g.opts.WriteTimeout,
		log:          g.log.With(zap.String("user_id", identity.UserID)),
	}
	c.log = c.log.With(zap.String("connection_id", c.id))
	c.onWriteError = func(conn *Connection, err error) {
		conn.log.Info("write failed", zap.Error(err))
		g.Disconnect(conn, "write failed")
	}

	if !identity.Authenticated() {
		g.publish(c)
		go c.writeLoop()
		c.log.Debug("anonymous connection")
		return c
	}

	// Until publish, nothing else can reach c: it is registered and announced
	// before any Disconnect can see it, and the writer starts last, so peers
	// never get identity:offline ahead of identity:online.
	g.router.Join(c, domain.UserTopic(identity.UserID))
	if identity.Role != "" {
		g.router.Join(c, domain.RoleTopic(identity.Role))
	}
	g.presence.Register(identity, c.id)

	summary := identity.Summary()
	online := domain.Event{
		Name: domain.EventIdentityOnline,
		Data: domain.PresencePayload{UserID: identity.UserID, Summary: &summary},
	}
	c.Send(online)
	g.Broadcast(online)

	g.publish(c)
	go c.writeLoop()
	c.log.Info("connected", zap.String("role", identity.Role))

	g.sendBacklog(ctx, c)
	return c
}

// publish makes c visible to broadcasts, lookups and Close.
func (g *Gateway) publish(c *Connection) {
	g.mu.Lock()
	g.conns[c.id] = c
	g.mu.Unlock()
	metrics.ConnectionsOpen.Inc()
}

func (g *Gateway) sendBacklog(ctx context.Context, c *Connection) {
	unread, err := g.ledger.ListUnread(ctx, c.identity.UserID, g.opts.UnreadBacklogLimit)
	if err != nil {
		c.log.Warn("unread backlog unavailable", zap.Error(err))
		return
	}
	if len(unread) == 0 {
		return
	}
	c.Send(domain.Event{Name: domain.EventNotificationsUnread, Data: unread})
}

// Disconnect releases c. It is safe to call any number of times; only the
// first call has an effect.
func (g *Gateway) Disconnect(c *Connection, reason string) {
	if !c.close() {
		return
	}
	g.mu.Lock()
	delete(g.conns, c.id)
	g.mu.Unlock()
	metrics.ConnectionsOpen.Dec()

	g.router.LeaveAll(c)
	if c.identity.Authenticated() && g.presence.Unregister(c.identity.UserID, c.id) {
		g.Broadcast(domain.Event{
			Name: domain.EventIdentityOffline,
			Data: domain.PresencePayload{UserID: c.identity.UserID},
		})
	}
	c.log.Info("disconnected", zap.String("reason", reason))
}

// DisconnectID disconnects the connection with the given id, if it is still open.
func (g *Gateway) DisconnectID(connID, reason string) {
	g.mu.RLock()
	c, ok := g.conns[connID]
	g.mu.RUnlock()
	if ok {
		g.Disconnect(c, reason)
	}
}

// PublishToTopic queues ev on every member of topic and returns how many
// connections accepted it.
func (g *Gateway) PublishToTopic(topic domain.Topic, ev domain.Event) int {
	delivered := 0
	for _, m := range g.router.MembersOf(topic) {
		if m.Send(ev) {
			delivered++
		}
	}
	return delivered
}

// Broadcast queues ev on every open connection.
func (g *Gateway) Broadcast(ev domain.Event) int {
	g.mu.RLock()
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if c.Send(ev) {
			delivered++
		}
	}
	return delivered
}

func (g *Gateway) IsOnline(userID string) bool {
	return g.presence.IsOnline(userID)
}

func (g *Gateway) ListOnline() []domain.OnlineIdentity {
	return g.presence.ListOnline()
}

// Connections returns the number of open connections.
func (g *Gateway) Connections() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// Close disconnects every open connection.
func (g *Gateway) Close() {
	g.mu.RLock()
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.RUnlock()

	for _, c := range conns {
		g.Disconnect(c, "shutdown")
	}
}
