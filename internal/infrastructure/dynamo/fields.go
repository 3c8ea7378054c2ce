package dynamo

// DynamoDB attribute and index names shared by the repos and Bootstrap.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldNotificationID = "notification_id"
	fieldUserID         = "user_id"
	fieldProductID      = "product_id"
	fieldIsRead         = "is_read"

	indexUserNotification = "user_id-notification_id-index"
	indexProduct          = "product_id-index"
)
