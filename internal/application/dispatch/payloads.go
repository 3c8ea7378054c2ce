package dispatch

import (
	"time"

	"github.com/vintage-realtime/internal/domain"
)

type NewOrderPayload struct {
	OrderID     string  `json:"orderId"`
	OrderNumber string  `json:"orderNumber"`
	TotalAmount float64 `json:"totalAmount"`
}

type OrderStatusPayload struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type ProductSoldPayload struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
}

type ProductRefPayload struct {
	ProductID string `json:"productId"`
}

// ProductSummary is announced on a category topic when a product is listed.
type ProductSummary struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Slug       string  `json:"slug,omitempty"`
	CategoryID string  `json:"categoryId"`
}

type CategoryProductPayload struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Status    string  `json:"status"`
}

type PriceChangedPayload struct {
	ProductID string  `json:"productId"`
	OldPrice  float64 `json:"oldPrice"`
	NewPrice  float64 `json:"newPrice"`
}

type ReviewPayload struct {
	ProductID string        `json:"productId"`
	Review    domain.Review `json:"review"`
}

// NoticePayload carries admin notices and broadcasts.
type NoticePayload struct {
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
