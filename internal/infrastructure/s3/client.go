package s3infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vintage-realtime/internal/config"
	"github.com/vintage-realtime/internal/domain"
)

// putObjectAPI is the slice of the S3 client the archive needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for S3: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// DeadLetterArchive stores notifications whose ledger write failed permanently,
// one JSON object per notification, so they can be replayed later.
type DeadLetterArchive struct {
	client putObjectAPI
	bucket string
	now    func() time.Time
}

func NewDeadLetterArchive(client putObjectAPI, bucket string) *DeadLetterArchive {
	return &DeadLetterArchive{client: client, bucket: bucket, now: time.Now}
}

type deadLetterRecord struct {
	Notification *domain.Notification `json:"notification"`
	Error        string               `json:"error"`
	FailedAt     time.Time            `json:"failedAt"`
}

// Capture uploads n under deadletter/notifications/<yyyy>/<mm>/<dd>/<id>.json.
func (a *DeadLetterArchive) Capture(ctx context.Context, n *domain.Notification, cause error) error {
	failedAt := a.now().UTC()
	body, err := json.Marshal(deadLetterRecord{Notification: n, Error: errString(cause), FailedAt: failedAt})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(deadLetterKey(n.NotificationID, failedAt)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func deadLetterKey(notificationID string, at time.Time) string {
	return fmt.Sprintf("deadletter/notifications/%s/%s.json", at.Format("2006/01/02"), notificationID)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
