package s3infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vintage-realtime/internal/domain"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestDeadLetterArchive_Capture(t *testing.T) {
	fp := &fakePutter{}
	a := NewDeadLetterArchive(fp, "dl-bucket")
	a.now = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }

	n := &domain.Notification{NotificationID: "01ABC", UserID: "u1", Type: domain.NotificationPriceDrop}
	require.NoError(t, a.Capture(context.Background(), n, errors.New("throttled")))

	assert.Equal(t, "dl-bucket", *fp.input.Bucket)
	assert.Equal(t, "deadletter/notifications/2026/10/17/01ABC.json", *fp.input.Key)
	assert.Equal(t, "application/json", *fp.input.ContentType)

	var rec struct {
		Notification domain.Notification `json:"notification"`
		Error        string              `json:"error"`
	}
	require.NoError(t, json.Unmarshal(fp.body, &rec))
	assert.Equal(t, "u1", rec.Notification.UserID)
	assert.Equal(t, "throttled", rec.Error)
}

func TestDeadLetterArchive_PutError(t *testing.T) {
	fp := &fakePutter{err: errors.New("access denied")}
	err := NewDeadLetterArchive(fp, "b").Capture(context.Background(), &domain.Notification{NotificationID: "x"}, nil)
	assert.ErrorContains(t, err, "access denied")
}
