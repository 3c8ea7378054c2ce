package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/vintage-realtime/internal/domain"
	"github.com/vintage-realtime/internal/metrics"
)

type entry struct {
	identity    domain.Identity
	conns       map[string]struct{}
	connectedAt time.Time
}

// Registry tracks which authenticated identities hold at least one open
// connection. An identity is online from its first Register until the
// Unregister of its last connection.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry), now: time.Now}
}

// Register records connID for identity and reports whether it is the
// identity's first open connection. Anonymous identities are never tracked.
func (r *Registry) Register(identity domain.Identity, connID string) bool {
	if !identity.Authenticated() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[identity.UserID]
	if !ok {
		e = &entry{
			identity:    identity,
			conns:       make(map[string]struct{}),
			connectedAt: r.now().UTC(),
		}
		r.entries[identity.UserID] = e
		metrics.IdentitiesOnline.Set(float64(len(r.entries)))
	}
	e.identity = identity // display fields may have changed since the first connection
	e.conns[connID] = struct{}{}
	return !ok
}

// Unregister removes connID and reports whether it was the identity's last
// open connection. Unknown ids are ignored, so repeated calls are safe.
func (r *Registry) Unregister(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return false
	}
	if _, member := e.conns[connID]; !member {
		return false
	}
	delete(e.conns, connID)
	if len(e.conns) > 0 {
		return false
	}
	delete(r.entries, userID)
	metrics.IdentitiesOnline.Set(float64(len(r.entries)))
	return true
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

// ListOnline returns a snapshot of online identities ordered by when they came online.
func (r *Registry) ListOnline() []domain.OnlineIdentity {
	r.mu.RLock()
	out := make([]domain.OnlineIdentity, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, domain.OnlineIdentity{
			IdentitySummary: e.identity.Summary(),
			Connections:     len(e.conns),
			ConnectedAt:     e.connectedAt,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}
