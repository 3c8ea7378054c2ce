package dispatch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vintage-realtime/internal/domain"
	"github.com/vintage-realtime/internal/metrics"
	"go.uber.org/zap"
)

// statusMessages holds the buyer-facing text per order status.
var statusMessages = map[string]string{
	domain.OrderConfirmed:  "Your order has been confirmed",
	domain.OrderProcessing: "Your order is being processed",
	domain.OrderShipped:    "Your order has been shipped",
	domain.OrderDelivered:  "Your order has been delivered",
	domain.OrderCancelled:  "Your order has been cancelled",
}

type ledger interface {
	Create(ctx context.Context, in domain.NewNotification) (*domain.Notification, error)
}

type favoriteStore interface {
	ListUserIDsByProduct(ctx context.Context, productID string) ([]string, error)
}

type publisher interface {
	PublishToTopic(topic domain.Topic, ev domain.Event) int
	Broadcast(ev domain.Event) int
	IsOnline(userID string) bool
	Connections() int
}

type Deps struct {
	Ledger    ledger
	Favorites favoriteStore
	Publisher publisher
	Logger    *zap.Logger
}

// Dispatcher turns catalog and order mutations into ledger records and live
// events. Personal notifications are written before they are pushed; topic
// events are pushed only.
type Dispatcher struct {
	ledger    ledger
	favorites favoriteStore
	pub       publisher
	log       *zap.Logger
	now       func() time.Time
}

func New(deps Deps) *Dispatcher {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		ledger:    deps.Ledger,
		favorites: deps.Favorites,
		pub:       deps.Publisher,
		log:       log.With(zap.String("component", "dispatcher")),
		now:       time.Now,
	}
}

// OrderCreated notifies every distinct seller of the ordered products and
// marks each product sold on its topic.
func (d *Dispatcher) OrderCreated(ctx context.Context, order domain.Order, products []domain.Product) {
	metrics.DispatchedEvents.WithLabelValues("order_created").Inc()

	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if p.SellerID == "" {
			continue
		}
		if _, dup := seen[p.SellerID]; dup {
			continue
		}
		seen[p.SellerID] = struct{}{}

		d.notify(ctx, domain.NewNotification{
			UserID:  p.SellerID,
			Type:    domain.NotificationNewOrder,
			Title:   "New order",
			Message: fmt.Sprintf("Order #%s includes your items", order.OrderNumber),
			Data: map[string]any{
				"orderId":     order.ID,
				"orderNumber": order.OrderNumber,
			},
		})
		d.pub.PublishToTopic(domain.UserTopic(p.SellerID), domain.Event{
			Name: domain.EventSellerNewOrder,
			Data: NewOrderPayload{OrderID: order.ID, OrderNumber: order.OrderNumber, TotalAmount: order.TotalAmount},
		})
	}

	for _, p := range products {
		d.pub.PublishToTopic(domain.ProductTopic(p.ID), domain.Event{
			Name: domain.EventProductSold,
			Data: ProductSoldPayload{ProductID: p.ID, Title: p.Title},
		})
		d.pub.Broadcast(domain.Event{
			Name: domain.EventProductsSold,
			Data: ProductRefPayload{ProductID: p.ID},
		})
	}
}

// OrderStatusChanged notifies the buyer and updates watchers of the order topic.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, order domain.Order, newStatus string) {
	metrics.DispatchedEvents.WithLabelValues("order_status_changed").Inc()

	priority := domain.PriorityNormal
	if newStatus == domain.OrderCancelled {
		priority = domain.PriorityHigh
	}
	d.notify(ctx, domain.NewNotification{
		UserID:   order.BuyerID,
		Type:     domain.NotificationOrderStatus,
		Title:    "Order update",
		Message:  StatusMessage(newStatus),
		Priority: priority,
		Data: map[string]any{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"status":      newStatus,
		},
	})
	d.pub.PublishToTopic(domain.OrderTopic(order.ID), domain.Event{
		Name: domain.EventOrderStatusChanged,
		Data: OrderStatusPayload{OrderID: order.ID, Status: newStatus},
	})
}

// OrderUpdated pushes the full order to its watchers and a summary to the buyer.
func (d *Dispatcher) OrderUpdated(order domain.Order) {
	metrics.DispatchedEvents.WithLabelValues("order_updated").Inc()

	d.pub.PublishToTopic(domain.OrderTopic(order.ID), domain.Event{Name: domain.EventOrderUpdated, Data: order})
	if order.BuyerID != "" {
		d.pub.PublishToTopic(domain.UserTopic(order.BuyerID), domain.Event{
			Name: domain.EventUserOrderUpdated,
			Data: OrderStatusPayload{OrderID: order.ID, Status: order.Status},
		})
	}
}

func (d *Dispatcher) ProductCreated(product domain.Product) {
	metrics.DispatchedEvents.WithLabelValues("product_created").Inc()
	if product.CategoryID == "" {
		d.log.Debug("product without category, nothing to announce", zap.String("product_id", product.ID))
		return
	}
	d.pub.PublishToTopic(domain.CategoryTopic(product.CategoryID), domain.Event{
		Name: domain.EventProductNew,
		Data: ProductSummary{
			ID:         product.ID,
			Title:      product.Title,
			Price:      product.Price,
			Slug:       product.Slug,
			CategoryID: product.CategoryID,
		},
	})
}

func (d *Dispatcher) ProductUpdated(product domain.Product) {
	metrics.DispatchedEvents.WithLabelValues("product_updated").Inc()
	d.pub.PublishToTopic(domain.ProductTopic(product.ID), domain.Event{Name: domain.EventProductUpdated, Data: product})
	if product.CategoryID != "" {
		d.pub.PublishToTopic(domain.CategoryTopic(product.CategoryID), domain.Event{
			Name: domain.EventCategoryProductUpdated,
			Data: CategoryProductPayload{
				ProductID: product.ID,
				Title:     product.Title,
				Price:     product.Price,
				Status:    product.Status,
			},
		})
	}
}

func (d *Dispatcher) ProductDeleted(productID, categoryID string) {
	metrics.DispatchedEvents.WithLabelValues("product_deleted").Inc()
	ref := ProductRefPayload{ProductID: productID}
	d.pub.PublishToTopic(domain.ProductTopic(productID), domain.Event{Name: domain.EventProductDeleted, Data: ref})
	if categoryID != "" {
		d.pub.PublishToTopic(domain.CategoryTopic(categoryID), domain.Event{Name: domain.EventCategoryProductDeleted, Data: ref})
	}
}

// PriceDropped notifies every user who favorited the product and announces
// the new price on the product topic once. The announcement happens even when
// the favorites lookup fails; that failure is returned.
func (d *Dispatcher) PriceDropped(ctx context.Context, product domain.Product, oldPrice, newPrice float64) error {
	metrics.DispatchedEvents.WithLabelValues("price_dropped").Inc()

	var lookupErr error
	userIDs, err := d.favorites.ListUserIDsByProduct(ctx, product.ID)
	if err != nil {
		d.log.Error("favorites lookup failed", zap.String("product_id", product.ID), zap.Error(err))
		lookupErr = fmt.Errorf("list favorites: %v: %w", err, domain.ErrStorageUnavailable)
	}

	discount := Discount(oldPrice, newPrice)
	for _, userID := range userIDs {
		d.notify(ctx, domain.NewNotification{
			UserID:   userID,
			Type:     domain.NotificationPriceDrop,
			Title:    "Price drop!",
			Message:  fmt.Sprintf("The price of %q dropped by %d%%", product.Title, discount),
			Priority: domain.PriorityHigh,
			Data: map[string]any{
				"productId": product.ID,
				"oldPrice":  oldPrice,
				"newPrice":  newPrice,
				"discount":  discount,
			},
		})
	}

	d.pub.PublishToTopic(domain.ProductTopic(product.ID), domain.Event{
		Name: domain.EventProductPriceChanged,
		Data: PriceChangedPayload{ProductID: product.ID, OldPrice: oldPrice, NewPrice: newPrice},
	})
	return lookupErr
}

// NewReview notifies the product's seller and shows the review on the product topic.
func (d *Dispatcher) NewReview(ctx context.Context, review domain.Review, product domain.Product) {
	metrics.DispatchedEvents.WithLabelValues("new_review").Inc()

	if product.SellerID != "" {
		d.notify(ctx, domain.NewNotification{
			UserID:  product.SellerID,
			Type:    domain.NotificationNewReview,
			Title:   "New review",
			Message: fmt.Sprintf("New review on %q", product.Title),
			Data: map[string]any{
				"productId": product.ID,
				"reviewId":  review.ID,
				"rating":    review.Rating,
			},
		})
	}
	d.pub.PublishToTopic(domain.ProductTopic(product.ID), domain.Event{
		Name: domain.EventReviewNew,
		Data: ReviewPayload{ProductID: product.ID, Review: review},
	})
}

func (d *Dispatcher) NotifyAdmins(title, message string, data map[string]any) {
	metrics.DispatchedEvents.WithLabelValues("notify_admins").Inc()
	d.pub.PublishToTopic(domain.RoleTopic(domain.RoleAdmin), domain.Event{
		Name: domain.EventNotificationAdmin,
		Data: d.notice(title, message, data),
	})
}

func (d *Dispatcher) Broadcast(title, message string, data map[string]any) {
	metrics.DispatchedEvents.WithLabelValues("broadcast").Inc()
	d.pub.Broadcast(domain.Event{
		Name: domain.EventNotificationBroadcast,
		Data: d.notice(title, message, data),
	})
}

// OnlineCount tells every connection how many connections are open and
// returns that count.
func (d *Dispatcher) OnlineCount() int {
	metrics.DispatchedEvents.WithLabelValues("online_count").Inc()
	count := d.pub.Connections()
	d.pub.Broadcast(domain.Event{Name: domain.EventStatsOnlineCount, Data: domain.CountPayload{Count: count}})
	return count
}

func (d *Dispatcher) notice(title, message string, data map[string]any) NoticePayload {
	return NoticePayload{Title: title, Message: message, Data: data, Timestamp: d.now().UTC()}
}

// notify records a personal notification and pushes it if the recipient is
// online. A failed write is logged; the push still happens with the record
// the ledger handed back.
func (d *Dispatcher) notify(ctx context.Context, in domain.NewNotification) {
	n, err := d.ledger.Create(ctx, in)
	if err != nil {
		d.log.Error("notification not recorded",
			zap.String("user_id", in.UserID),
			zap.String("type", string(in.Type)),
			zap.Error(err),
		)
		if n == nil {
			return
		}
	}
	if !d.pub.IsOnline(n.UserID) {
		return
	}
	d.pub.PublishToTopic(domain.UserTopic(n.UserID), domain.Event{Name: domain.EventNotificationNew, Data: *n})
}

// StatusMessage returns the buyer-facing text for an order status.
func StatusMessage(status string) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return "Order status: " + status
}

// Discount is the rounded percentage by which newPrice undercuts oldPrice.
func Discount(oldPrice, newPrice float64) int {
	if oldPrice <= 0 {
		return 0
	}
	return int(math.Round(100 * (1 - newPrice/oldPrice)))
}
