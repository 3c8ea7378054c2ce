package domain

import "time"

type NotificationType string

const (
	NotificationOrderStatus NotificationType = "ORDER_STATUS"
	NotificationNewOrder    NotificationType = "NEW_ORDER"
	NotificationPriceDrop   NotificationType = "PRICE_DROP"
	NotificationNewReview   NotificationType = "NEW_REVIEW"
	NotificationSystem      NotificationType = "SYSTEM"
)

type Priority string

const (
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
)

// Notification is the durable per-user record kept by the ledger. Only IsRead
// changes after creation.
type Notification struct {
	NotificationID string           `json:"id" dynamodbav:"notification_id"`
	UserID         string           `json:"userId" dynamodbav:"user_id"`
	Type           NotificationType `json:"type" dynamodbav:"type"`
	Title          string           `json:"title" dynamodbav:"title"`
	Message        string           `json:"message" dynamodbav:"message"`
	Data           map[string]any   `json:"data,omitempty" dynamodbav:"data,omitempty"`
	Priority       Priority         `json:"priority" dynamodbav:"priority"`
	IsRead         bool             `json:"isRead" dynamodbav:"is_read"`
	CreatedAt      time.Time        `json:"createdAt" dynamodbav:"created_at"`
}

// NewNotification carries the caller-supplied fields of a notification; the
// ledger assigns the id, timestamp and read flag.
type NewNotification struct {
	UserID   string
	Type     NotificationType
	Title    string
	Message  string
	Data     map[string]any
	Priority Priority
}
