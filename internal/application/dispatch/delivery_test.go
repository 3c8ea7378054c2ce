package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vintage-realtime/internal/domain"
	"github.com/vintage-realtime/internal/realtime/gateway"
	"github.com/vintage-realtime/internal/realtime/presence"
	"github.com/vintage-realtime/internal/realtime/subscription"
)

// memLedger keeps notifications in memory and serves both the dispatcher's
// writes and the gateway's reads.
type memLedger struct {
	mu    sync.Mutex
	seq   int
	items map[string]*domain.Notification
}

func newMemLedger() *memLedger {
	return &memLedger{items: make(map[string]*domain.Notification)}
}

func (l *memLedger) Create(_ context.Context, in domain.NewNotification) (*domain.Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	n := &domain.Notification{
		NotificationID: fmt.Sprintf("%04d", l.seq),
		UserID:         in.UserID,
		Type:           in.Type,
		Title:          in.Title,
		Message:        in.Message,
		Data:           in.Data,
		Priority:       in.Priority,
	}
	l.items[n.NotificationID] = n
	cp := *n
	return &cp, nil
}

func (l *memLedger) ListUnread(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Notification
	for _, n := range l.items {
		if n.UserID == userID && !n.IsRead {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NotificationID > out[j].NotificationID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) MarkAsRead(_ context.Context, notificationID, userID string) (*domain.Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.items[notificationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if n.UserID != userID {
		return nil, domain.ErrForbidden
	}
	n.IsRead = true
	cp := *n
	return &cp, nil
}

func (l *memLedger) MarkAllAsRead(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, n := range l.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

type tokenTable map[string]domain.Identity

func (t tokenTable) Verify(_ context.Context, token string) (domain.Identity, error) {
	if identity, ok := t[token]; ok {
		return identity, nil
	}
	return domain.Identity{}, domain.ErrAuthenticationFailed
}

type chanTransport struct {
	events chan domain.Event
}

func (c *chanTransport) WriteEvent(_ context.Context, ev domain.Event) error {
	c.events <- ev
	return nil
}

func (c *chanTransport) Close() error { return nil }

func (c *chanTransport) next(t *testing.T, name string) domain.Event {
	t.Helper()
	select {
	case ev := <-c.events:
		require.Equal(t, name, ev.Name, "payload: %+v", ev.Data)
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", name)
		return domain.Event{}
	}
}

func TestOrderCreated_OfflineSellerGetsBacklogOnConnect(t *testing.T) {
	ledger := newMemLedger()
	gw := gateway.New(gateway.Deps{
		Identities: tokenTable{"tok-s1": {UserID: "s1", Role: domain.RoleSeller}},
		Ledger:     ledger,
		Presence:   presence.NewRegistry(),
		Router:     subscription.NewRouter(),
	})
	defer gw.Close()
	d := New(Deps{Ledger: ledger, Publisher: gw})

	d.OrderCreated(context.Background(),
		domain.Order{ID: "o1", OrderNumber: "A-100", BuyerID: "b1", TotalAmount: 40},
		[]domain.Product{{ID: "p1", SellerID: "s1", Title: "Denim jacket"}},
	)

	stored, err := ledger.ListUnread(context.Background(), "s1", 20)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].IsRead)
	assert.Equal(t, domain.NotificationNewOrder, stored[0].Type)

	tr := &chanTransport{events: make(chan domain.Event, 16)}
	c, err := gw.Connect(context.Background(), tr, "tok-s1")
	require.NoError(t, err)

	tr.next(t, domain.EventIdentityOnline)
	backlog := tr.next(t, domain.EventNotificationsUnread).Data.([]domain.Notification)
	require.Len(t, backlog, 1)
	assert.Equal(t, stored[0].NotificationID, backlog[0].NotificationID)

	gw.HandleCommand(context.Background(), c, []byte(`{"type":"markAllRead"}`))
	tr.next(t, domain.EventNotificationAllRead)

	unread, err := ledger.ListUnread(context.Background(), "s1", 20)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
