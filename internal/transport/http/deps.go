package http

import (
	"context"

	"github.com/vintage-realtime/internal/application/notification"
	"github.com/vintage-realtime/internal/domain"
	jwtinfra "github.com/vintage-realtime/internal/infrastructure/jwt"
	"github.com/vintage-realtime/internal/realtime/gateway"
	"go.uber.org/zap"
)

// TokenVerifier checks bearer tokens on REST routes.
type TokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

// Gateway is what the router needs from the realtime gateway: the websocket
// lifecycle, presence queries and topic publishing for REST read-state changes.
type Gateway interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
	Attach(ctx context.Context, t gateway.Transport, identity domain.Identity) *gateway.Connection
	HandleCommand(ctx context.Context, c *gateway.Connection, raw []byte)
	Disconnect(c *gateway.Connection, reason string)
	PublishToTopic(topic domain.Topic, ev domain.Event) int
	IsOnline(userID string) bool
	ListOnline() []domain.OnlineIdentity
	Connections() int
}

// Dispatcher turns ingested domain events into notifications and pushes.
type Dispatcher interface {
	OrderCreated(ctx context.Context, order domain.Order, products []domain.Product)
	OrderStatusChanged(ctx context.Context, order domain.Order, newStatus string)
	OrderUpdated(order domain.Order)
	ProductCreated(product domain.Product)
	ProductUpdated(product domain.Product)
	ProductDeleted(productID, categoryID string)
	PriceDropped(ctx context.Context, product domain.Product, oldPrice, newPrice float64) error
	NewReview(ctx context.Context, review domain.Review, product domain.Product)
	NotifyAdmins(title, message string, data map[string]any)
	Broadcast(title, message string, data map[string]any)
	OnlineCount() int
}

// Deps holds everything the router wires into handlers.
type Deps struct {
	Tokens        TokenVerifier // nil disables the authenticated REST routes
	Notifications notification.Service
	Gateway       Gateway
	Dispatcher    Dispatcher
	Logger        *zap.Logger
}
