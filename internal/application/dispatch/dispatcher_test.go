package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vintage-realtime/internal/domain"
)

// --- fakes and mocks ---

// fakeLedger records every request and echoes it back as a stored notification.
type fakeLedger struct {
	mu       sync.Mutex
	created  []domain.NewNotification
	err      error
	noRecord bool
}

func (l *fakeLedger) Create(_ context.Context, in domain.NewNotification) (*domain.Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, in)
	if l.noRecord {
		return nil, l.err
	}
	return &domain.Notification{
		NotificationID: "n-" + in.UserID,
		UserID:         in.UserID,
		Type:           in.Type,
		Title:          in.Title,
		Message:        in.Message,
		Data:           in.Data,
		Priority:       in.Priority,
	}, l.err
}

type mockFavorites struct{ mock.Mock }

func (m *mockFavorites) ListUserIDsByProduct(ctx context.Context, productID string) ([]string, error) {
	args := m.Called(ctx, productID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

type published struct {
	topic domain.Topic // empty for broadcasts
	event domain.Event
}

// recorder captures pushes instead of delivering them.
type recorder struct {
	mu     sync.Mutex
	online map[string]bool
	conns  int
	pushes []published
}

func (r *recorder) PublishToTopic(topic domain.Topic, ev domain.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, published{topic: topic, event: ev})
	return 1
}

func (r *recorder) Broadcast(ev domain.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, published{event: ev})
	return 1
}

func (r *recorder) IsOnline(userID string) bool { return r.online[userID] }
func (r *recorder) Connections() int            { return r.conns }

func (r *recorder) named(name string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, p := range r.pushes {
		if p.event.Name == name {
			out = append(out, p)
		}
	}
	return out
}

func newDispatcher(l *fakeLedger, f *mockFavorites, online ...string) (*Dispatcher, *recorder) {
	rec := &recorder{online: make(map[string]bool)}
	for _, id := range online {
		rec.online[id] = true
	}
	return New(Deps{Ledger: l, Favorites: f, Publisher: rec}), rec
}

// --- pure helpers ---

func TestDiscount(t *testing.T) {
	tests := []struct {
		old, new float64
		want     int
	}{
		{1000, 800, 20},
		{100, 66.6, 33},
		{100, 100, 0},
		{0, 50, 0},
		{-5, 1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Discount(tt.old, tt.new), "%v -> %v", tt.old, tt.new)
	}
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "Your order has been shipped", StatusMessage(domain.OrderShipped))
	assert.Equal(t, "Order status: RETURNED", StatusMessage("RETURNED"))
}

// --- priceDropped ---

func TestPriceDropped_TwoFavoritingUsers(t *testing.T) {
	l := &fakeLedger{}
	fav := &mockFavorites{}
	fav.On("ListUserIDsByProduct", mock.Anything, "p1").Return([]string{"u1", "u2"}, nil).Once()
	d, rec := newDispatcher(l, fav, "u1")

	err := d.PriceDropped(context.Background(), domain.Product{ID: "p1", Title: "Denim jacket"}, 1000, 800)

	require.NoError(t, err)
	require.Len(t, l.created, 2)
	for _, in := range l.created {
		assert.Equal(t, domain.NotificationPriceDrop, in.Type)
		assert.Equal(t, domain.PriorityHigh, in.Priority)
		assert.Equal(t, 20, in.Data["discount"])
		assert.Contains(t, in.Message, "20%")
	}

	pushed := rec.named(domain.EventNotificationNew)
	require.Len(t, pushed, 1, "only the online user gets a live push")
	assert.Equal(t, domain.UserTopic("u1"), pushed[0].topic)

	changed := rec.named(domain.EventProductPriceChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, domain.ProductTopic("p1"), changed[0].topic)
	assert.Equal(t, PriceChangedPayload{ProductID: "p1", OldPrice: 1000, NewPrice: 800}, changed[0].event.Data)
	fav.AssertExpectations(t)
}

func TestPriceDropped_FavoritesLookupFails(t *testing.T) {
	l := &fakeLedger{}
	fav := &mockFavorites{}
	fav.On("ListUserIDsByProduct", mock.Anything, "p1").Return(nil, errors.New("throttled")).Once()
	d, rec := newDispatcher(l, fav)

	err := d.PriceDropped(context.Background(), domain.Product{ID: "p1"}, 10, 5)

	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Empty(t, l.created)
	assert.Len(t, rec.named(domain.EventProductPriceChanged), 1)
}

// --- orders ---

func TestOrderCreated_SellerOffline(t *testing.T) {
	l := &fakeLedger{}
	d, rec := newDispatcher(l, &mockFavorites{})
	order := domain.Order{ID: "o1", OrderNumber: "1001", BuyerID: "b1", TotalAmount: 59.9}
	products := []domain.Product{
		{ID: "p1", Title: "Scarf", SellerID: "s1"},
		{ID: "p2", Title: "Boots", SellerID: "s1"},
	}

	d.OrderCreated(context.Background(), order, products)

	require.Len(t, l.created, 1, "one notification per distinct seller")
	assert.Equal(t, "s1", l.created[0].UserID)
	assert.Equal(t, domain.NotificationNewOrder, l.created[0].Type)
	assert.Empty(t, rec.named(domain.EventNotificationNew), "no live push while the seller is offline")

	sold := rec.named(domain.EventProductSold)
	require.Len(t, sold, 2)
	assert.Equal(t, domain.ProductTopic("p1"), sold[0].topic)
	assert.Len(t, rec.named(domain.EventProductsSold), 2)

	newOrder := rec.named(domain.EventSellerNewOrder)
	require.Len(t, newOrder, 1)
	assert.Equal(t, NewOrderPayload{OrderID: "o1", OrderNumber: "1001", TotalAmount: 59.9}, newOrder[0].event.Data)
}

func TestOrderCreated_SellerOnline(t *testing.T) {
	l := &fakeLedger{}
	d, rec := newDispatcher(l, &mockFavorites{}, "s1")

	d.OrderCreated(context.Background(), domain.Order{ID: "o1"}, []domain.Product{{ID: "p1", SellerID: "s1"}})

	pushed := rec.named(domain.EventNotificationNew)
	require.Len(t, pushed, 1)
	n := pushed[0].event.Data.(domain.Notification)
	assert.Equal(t, "s1", n.UserID)
}

func TestOrderStatusChanged(t *testing.T) {
	tests := []struct {
		status   string
		priority domain.Priority
		message  string
	}{
		{domain.OrderCancelled, domain.PriorityHigh, "Your order has been cancelled"},
		{domain.OrderDelivered, domain.PriorityNormal, "Your order has been delivered"},
		{"ON_HOLD", domain.PriorityNormal, "Order status: ON_HOLD"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			l := &fakeLedger{}
			d, rec := newDispatcher(l, &mockFavorites{})

			d.OrderStatusChanged(context.Background(), domain.Order{ID: "o1", BuyerID: "b1"}, tt.status)

			require.Len(t, l.created, 1)
			assert.Equal(t, "b1", l.created[0].UserID)
			assert.Equal(t, tt.priority, l.created[0].Priority)
			assert.Equal(t, tt.message, l.created[0].Message)

			changed := rec.named(domain.EventOrderStatusChanged)
			require.Len(t, changed, 1)
			assert.Equal(t, domain.OrderTopic("o1"), changed[0].topic)
			assert.Equal(t, OrderStatusPayload{OrderID: "o1", Status: tt.status}, changed[0].event.Data)
		})
	}
}

func TestOrderUpdated_NotPersisted(t *testing.T) {
	l := &fakeLedger{}
	d, rec := newDispatcher(l, &mockFavorites{})

	d.OrderUpdated(domain.Order{ID: "o1", BuyerID: "b1", Status: domain.OrderShipped})

	assert.Empty(t, l.created)
	require.Len(t, rec.named(domain.EventOrderUpdated), 1)
	summary := rec.named(domain.EventUserOrderUpdated)
	require.Len(t, summary, 1)
	assert.Equal(t, domain.UserTopic("b1"), summary[0].topic)
}

// --- ledger failures ---

func TestNotify_LedgerFailureStillPushes(t *testing.T) {
	l := &fakeLedger{err: domain.ErrStorageUnavailable}
	d, rec := newDispatcher(l, &mockFavorites{}, "b1")

	d.OrderStatusChanged(context.Background(), domain.Order{ID: "o1", BuyerID: "b1"}, domain.OrderShipped)

	assert.Len(t, rec.named(domain.EventNotificationNew), 1)
	assert.Len(t, rec.named(domain.EventOrderStatusChanged), 1)
}

func TestNotify_RejectedRequestSkipsPush(t *testing.T) {
	l := &fakeLedger{err: domain.ErrBadRequest, noRecord: true}
	d, rec := newDispatcher(l, &mockFavorites{}, "b1")

	d.OrderStatusChanged(context.Background(), domain.Order{ID: "o1", BuyerID: "b1"}, domain.OrderShipped)

	assert.Empty(t, rec.named(domain.EventNotificationNew))
	assert.Len(t, rec.named(domain.EventOrderStatusChanged), 1)
}

// --- products and reviews ---

func TestProductCreated_CategoryOnly(t *testing.T) {
	l := &fakeLedger{}
	d, rec := newDispatcher(l, &mockFavorites{})

	d.ProductCreated(domain.Product{ID: "p1", Title: "Hat", Price: 12, CategoryID: "c1"})
	d.ProductCreated(domain.Product{ID: "p2"})

	assert.Empty(t, l.created)
	announced := rec.named(domain.EventProductNew)
	require.Len(t, announced, 1)
	assert.Equal(t, domain.CategoryTopic("c1"), announced[0].topic)
	assert.Len(t, rec.pushes, 1)
}

func TestProductUpdatedAndDeleted(t *testing.T) {
	d, rec := newDispatcher(&fakeLedger{}, &mockFavorites{})

	d.ProductUpdated(domain.Product{ID: "p1", CategoryID: "c1", Status: "ACTIVE"})
	d.ProductDeleted("p1", "c1")

	updated := rec.named(domain.EventProductUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, domain.ProductTopic("p1"), updated[0].topic)
	catUpdated := rec.named(domain.EventCategoryProductUpdated)
	require.Len(t, catUpdated, 1)
	assert.Equal(t, domain.CategoryTopic("c1"), catUpdated[0].topic)

	assert.Len(t, rec.named(domain.EventProductDeleted), 1)
	deleted := rec.named(domain.EventCategoryProductDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, ProductRefPayload{ProductID: "p1"}, deleted[0].event.Data)
}

func TestNewReview(t *testing.T) {
	l := &fakeLedger{}
	d, rec := newDispatcher(l, &mockFavorites{}, "s1")
	review := domain.Review{ID: "r1", ProductID: "p1", Rating: 5, Comment: "great"}

	d.NewReview(context.Background(), review, domain.Product{ID: "p1", Title: "Coat", SellerID: "s1"})

	require.Len(t, l.created, 1)
	assert.Equal(t, domain.NotificationNewReview, l.created[0].Type)
	assert.Equal(t, 5, l.created[0].Data["rating"])
	assert.Len(t, rec.named(domain.EventNotificationNew), 1)

	onTopic := rec.named(domain.EventReviewNew)
	require.Len(t, onTopic, 1)
	assert.Equal(t, domain.ProductTopic("p1"), onTopic[0].topic)
	assert.Equal(t, review, onTopic[0].event.Data.(ReviewPayload).Review)
}

// --- notices ---

func TestNotifyAdminsAndBroadcast(t *testing.T) {
	l := &fakeLedger{}
	d, rec := newDispatcher(l, &mockFavorites{})

	d.NotifyAdmins("Disk", "low space", map[string]any{"free": "2%"})
	d.Broadcast("Maintenance", "tonight", nil)

	admin := rec.named(domain.EventNotificationAdmin)
	require.Len(t, admin, 1)
	assert.Equal(t, domain.RoleTopic(domain.RoleAdmin), admin[0].topic)
	assert.Equal(t, "low space", admin[0].event.Data.(NoticePayload).Message)

	all := rec.named(domain.EventNotificationBroadcast)
	require.Len(t, all, 1)
	assert.Empty(t, all[0].topic)
	assert.False(t, all[0].event.Data.(NoticePayload).Timestamp.IsZero())
	assert.Empty(t, l.created)
}

func TestOnlineCount(t *testing.T) {
	l := &fakeLedger{}
	d, rec := newDispatcher(l, &mockFavorites{})
	rec.conns = 7

	assert.Equal(t, 7, d.OnlineCount())

	stats := rec.named(domain.EventStatsOnlineCount)
	require.Len(t, stats, 1)
	assert.Empty(t, stats[0].topic, "sent to every connection")
	assert.Equal(t, domain.CountPayload{Count: 7}, stats[0].event.Data)
	assert.Empty(t, l.created)
}
