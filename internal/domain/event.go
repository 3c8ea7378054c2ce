package domain

// Event is a transient payload pushed to live connections. It is never persisted.
type Event struct {
	Name string `json:"type"`
	Data any    `json:"payload,omitempty"`
}

// Outbound event names.
const (
	EventIdentityOnline         = "identity:online"
	EventIdentityOffline        = "identity:offline"
	EventNotificationsUnread    = "notifications:unread"
	EventNotificationNew        = "notification:new"
	EventNotificationUpdated    = "notification:updated"
	EventNotificationAllRead    = "notification:allRead"
	EventNotificationAdmin      = "notification:admin"
	EventNotificationBroadcast  = "notification:broadcast"
	EventProductUpdated         = "product:updated"
	EventProductNew             = "product:new"
	EventProductSold            = "product:sold"
	EventProductsSold           = "products:sold"
	EventProductDeleted         = "product:deleted"
	EventProductPriceChanged    = "product:priceChanged"
	EventCategoryProductUpdated = "category:productUpdated"
	EventCategoryProductDeleted = "category:productDeleted"
	EventOrderUpdated           = "order:updated"
	EventOrderStatusChanged     = "order:statusChanged"
	EventUserOrderUpdated       = "user:orderUpdated"
	EventSellerNewOrder         = "seller:newOrder"
	EventReviewNew              = "review:new"
	EventUsersOnline            = "users:online"
	EventStatsOnlineCount       = "stats:onlineCount"
	EventSubscribed             = "subscribed"
	EventUnsubscribed           = "unsubscribed"
	EventError                  = "error"
)

// ErrorPayload is the body of an error event sent back to a single connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Command string `json:"command,omitempty"`
}

// PresencePayload accompanies identity:online and identity:offline.
type PresencePayload struct {
	UserID  string           `json:"id"`
	Summary *IdentitySummary `json:"summary,omitempty"`
}

// TopicPayload acknowledges a subscribe or unsubscribe command.
type TopicPayload struct {
	Topic Topic `json:"topic"`
}

// ReadStatePayload accompanies notification:updated.
type ReadStatePayload struct {
	NotificationID string `json:"id"`
	IsRead         bool   `json:"isRead"`
}

// CountPayload accompanies notification:allRead and stats:onlineCount.
type CountPayload struct {
	Count int `json:"count"`
}
