package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/vintage-realtime/internal/domain"
)

// batchWriteMax is the DynamoDB limit of requests per BatchWriteItem call.
const batchWriteMax = 25

// NotificationRepo provides typed DynamoDB operations for the notifications table.
// Per-user listings go through the user_id/notification_id GSI; notification ids
// are ULIDs so descending index order is newest first.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

// Put writes n once. A retried write of an item that already landed is treated
// as success, which keeps at-least-once retries from failing spuriously.
func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %v: %w", err, domain.ErrBadRequest)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": fieldNotificationID,
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil
	}
	return err
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldNotificationID, notificationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByUser returns up to limit notifications for userID, newest first.
// cursor continues a previous page; the returned cursor is empty on the last page.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int32, cursor string) ([]domain.Notification, string, error) {
	input := r.userQuery(userID, readFilter(unreadOnly, false))
	input.Limit = aws.Int32(limit)
	if cursor != "" {
		start, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = start
	}

	// A filter is applied after Limit, so keep reading until the page is full.
	var (
		items []domain.Notification
		more  bool
	)
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, "", err
		}
		var page []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, "", err
		}
		items = append(items, page...)
		more = len(out.LastEvaluatedKey) > 0
		if !more || int32(len(items)) >= limit {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	if int32(len(items)) > limit {
		items = items[:limit]
		more = true
	}

	next := ""
	if more && len(items) > 0 {
		last := items[len(items)-1]
		next = encodeCursor(map[string]string{
			fieldNotificationID: last.NotificationID,
			fieldUserID:         last.UserID,
		})
	}
	return items, next, nil
}

// CountUnread counts unread notifications for userID across all index pages.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	input := r.userQuery(userID, readFilter(true, false))
	input.Select = types.SelectCount
	total := 0
	p := dynamodb.NewQueryPaginator(r.client, input)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
	}
	return total, nil
}

// MarkAsRead flips is_read on an existing notification.
func (r *NotificationRepo) MarkAsRead(ctx context.Context, notificationID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldIsRead: true})
	if err != nil {
		return err
	}
	ue.Names["#id"] = fieldNotificationID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldNotificationID, notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	return err
}

// MarkAllAsRead marks every unread notification of userID read and returns how many changed.
func (r *NotificationRepo) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	ids, err := r.idsByUser(ctx, userID, readFilter(true, false))
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, nid := range ids {
		if err := r.MarkAsRead(ctx, nid); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue // deleted concurrently
			}
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func (r *NotificationRepo) Delete(ctx context.Context, notificationID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldNotificationID, notificationID),
	})
	return err
}

// DeleteRead removes every read notification of userID and returns how many were deleted.
func (r *NotificationRepo) DeleteRead(ctx context.Context, userID string) (int, error) {
	ids, err := r.idsByUser(ctx, userID, readFilter(false, true))
	if err != nil {
		return 0, err
	}
	for start := 0; start < len(ids); start += batchWriteMax {
		end := min(start+batchWriteMax, len(ids))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, nid := range ids[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: strKey(fieldNotificationID, nid)},
			})
		}
		if err := r.batchWrite(ctx, reqs); err != nil {
			return start, err
		}
	}
	return len(ids), nil
}

func (r *NotificationRepo) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.tableName: reqs}
	for attempt := 0; len(pending[r.tableName]) > 0; attempt++ {
		if attempt >= 5 {
			return fmt.Errorf("batch write: %d unprocessed items", len(pending[r.tableName]))
		}
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		pending = out.UnprocessedItems
	}
	return nil
}

// idsByUser collects the ids of userID's notifications matching filter.
func (r *NotificationRepo) idsByUser(ctx context.Context, userID string, filter *bool) ([]string, error) {
	input := r.userQuery(userID, filter)
	input.ProjectionExpression = aws.String("#nid")
	input.ExpressionAttributeNames["#nid"] = fieldNotificationID

	var ids []string
	p := dynamodb.NewQueryPaginator(r.client, input)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			if v, ok := item[fieldNotificationID].(*types.AttributeValueMemberS); ok {
				ids = append(ids, v.Value)
			}
		}
	}
	return ids, nil
}

// userQuery builds a newest-first query on the per-user index, optionally
// filtered on the read flag.
func (r *NotificationRepo) userQuery(userID string, isRead *bool) *dynamodb.QueryInput {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserNotification),
		KeyConditionExpression: aws.String("#uid = :uid"),
		ScanIndexForward:       aws.Bool(false),
		ExpressionAttributeNames: map[string]string{
			"#uid": fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	}
	if isRead != nil {
		input.FilterExpression = aws.String("#read = :read")
		input.ExpressionAttributeNames["#read"] = fieldIsRead
		input.ExpressionAttributeValues[":read"] = &types.AttributeValueMemberBOOL{Value: *isRead}
	}
	return input
}

// readFilter maps (unreadOnly, readOnly) onto the optional is_read filter value.
func readFilter(unreadOnly, readOnly bool) *bool {
	switch {
	case unreadOnly:
		v := false
		return &v
	case readOnly:
		v := true
		return &v
	default:
		return nil
	}
}
