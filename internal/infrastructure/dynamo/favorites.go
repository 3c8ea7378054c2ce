package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// FavoriteRepo reads the favorites table (user_id + product_id) maintained by
// the catalog service.
type FavoriteRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewFavoriteRepo(client *dynamodb.Client, tableName string) *FavoriteRepo {
	return &FavoriteRepo{client: client, tableName: tableName}
}

// ListUserIDsByProduct returns the distinct users who favorited productID.
func (r *FavoriteRepo) ListUserIDsByProduct(ctx context.Context, productID string) ([]string, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexProduct),
		KeyConditionExpression: aws.String("#pid = :pid"),
		ProjectionExpression:   aws.String("#uid"),
		ExpressionAttributeNames: map[string]string{
			"#pid": fieldProductID,
			"#uid": fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid": &types.AttributeValueMemberS{Value: productID},
		},
	})

	seen := make(map[string]struct{})
	var userIDs []string
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			v, ok := item[fieldUserID].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if _, dup := seen[v.Value]; dup {
				continue
			}
			seen[v.Value] = struct{}{}
			userIDs = append(userIDs, v.Value)
		}
	}
	return userIDs, nil
}

