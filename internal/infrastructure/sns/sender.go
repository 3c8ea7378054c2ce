package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/vintage-realtime/internal/config"
	"github.com/vintage-realtime/internal/domain"
)

// publishAPI is the slice of the SNS client the publisher needs.
type publishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// DeadLetterPublisher alerts an SNS topic about notifications whose ledger
// write failed permanently.
type DeadLetterPublisher struct {
	client   publishAPI
	topicARN string
}

func NewClient(ctx context.Context, cfg *config.Config) (*sns.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SNSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config for SNS: %w", err)
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, opts...), nil
}

func NewDeadLetterPublisher(client publishAPI, topicARN string) *DeadLetterPublisher {
	return &DeadLetterPublisher{client: client, topicARN: topicARN}
}

func (p *DeadLetterPublisher) Capture(ctx context.Context, n *domain.Notification, cause error) error {
	msg := map[string]any{"notification": n}
	if cause != nil {
		msg["error"] = cause.Error()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String("notification ledger write failed"),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"notification_type": {DataType: aws.String("String"), StringValue: aws.String(string(n.Type))},
			"user_id":           {DataType: aws.String("String"), StringValue: aws.String(n.UserID)},
		},
	})
	return err
}
