package domain

import "time"

// Order, Product and Review are the catalog shapes that mutation call sites
// hand to the dispatcher. Their business rules live elsewhere.
type Order struct {
	ID          string  `json:"id" validate:"required"`
	OrderNumber string  `json:"orderNumber"`
	BuyerID     string  `json:"userId" validate:"required"`
	Status      string  `json:"status"`
	TotalAmount float64 `json:"totalAmount"`
}

type Product struct {
	ID         string  `json:"id" validate:"required"`
	Title      string  `json:"title"`
	Slug       string  `json:"slug"`
	Price      float64 `json:"price"`
	Status     string  `json:"status"`
	CategoryID string  `json:"categoryId"`
	SellerID   string  `json:"sellerId"`
}

type Review struct {
	ID        string    `json:"id" validate:"required"`
	ProductID string    `json:"productId"`
	Rating    int       `json:"rating" validate:"min=1,max=5"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// Order statuses with a dedicated buyer-facing message.
const (
	OrderConfirmed  = "CONFIRMED"
	OrderProcessing = "PROCESSING"
	OrderShipped    = "SHIPPED"
	OrderDelivered  = "DELIVERED"
	OrderCancelled  = "CANCELLED"
)
