package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vintage-realtime/internal/domain"
	"github.com/vintage-realtime/internal/metrics"
	"github.com/vintage-realtime/internal/pkg/id"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListQuery selects a page of a user's notifications.
type ListQuery struct {
	UnreadOnly bool
	Limit      int
	Cursor     string
}

// Page is one page of notifications, newest first. NextCursor is empty on the last page.
type Page struct {
	Items      []domain.Notification `json:"items"`
	NextCursor string                `json:"nextCursor,omitempty"`
}

type Service interface {
	Create(ctx context.Context, in domain.NewNotification) (*domain.Notification, error)
	ListUnread(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	List(ctx context.Context, userID string, q ListQuery) (*Page, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, notificationID, userID string) error
	DeleteAllRead(ctx context.Context, userID string) (int, error)
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int32, cursor string) ([]domain.Notification, string, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, notificationID string) error
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, notificationID string) error
	DeleteRead(ctx context.Context, userID string) (int, error)
}

// DeadLetterSink receives notifications whose write failed after every retry.
type DeadLetterSink interface {
	Capture(ctx context.Context, n *domain.Notification, cause error) error
}

// RetryPolicy bounds the exponential backoff applied to notification writes.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type ServiceDeps struct {
	Repo        notificationStore
	DeadLetters []DeadLetterSink
	Retry       RetryPolicy
	Logger      *zap.Logger
}

type service struct {
	repo        notificationStore
	deadLetters []DeadLetterSink
	retry       RetryPolicy
	log         *zap.Logger
	now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &service{
		repo:        deps.Repo,
		deadLetters: deps.DeadLetters,
		retry:       deps.Retry,
		log:         log.With(zap.String("component", "ledger")),
		now:         time.Now,
	}
}

// Create records a notification. The write is retried with exponential backoff;
// when every attempt fails the record is handed to the dead-letter sinks and
// returned together with an error wrapping domain.ErrStorageUnavailable, so the
// caller can still deliver it live.
func (s *service) Create(ctx context.Context, in domain.NewNotification) (*domain.Notification, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("notification recipient required: %w", domain.ErrBadRequest)
	}
	now := s.now().UTC()
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	n := &domain.Notification{
		NotificationID: id.NewAt(now),
		UserID:         in.UserID,
		Type:           in.Type,
		Title:          in.Title,
		Message:        in.Message,
		Data:           in.Data,
		Priority:       priority,
		IsRead:         false,
		CreatedAt:      now,
	}

	start := time.Now()
	err := backoff.RetryNotify(
		func() error {
			err := s.repo.Put(ctx, n)
			if errors.Is(err, domain.ErrBadRequest) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(s.retryBackOff(), s.retry.MaxRetries), ctx),
		func(err error, wait time.Duration) {
			s.log.Warn("notification write failed, retrying",
				zap.String("notification_id", n.NotificationID),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		},
	)
	metrics.LedgerWriteDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.LedgerWrites.WithLabelValues("ok").Inc()
		return n, nil
	}

	metrics.LedgerWrites.WithLabelValues("failed").Inc()
	s.log.Error("notification write failed permanently",
		zap.String("notification_id", n.NotificationID),
		zap.String("user_id", n.UserID),
		zap.String("type", string(n.Type)),
		zap.Error(err),
	)
	s.deadLetter(n, err)
	return n, fmt.Errorf("write notification: %v: %w", err, domain.ErrStorageUnavailable)
}

func (s *service) retryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if s.retry.InitialInterval > 0 {
		b.InitialInterval = s.retry.InitialInterval
	}
	if s.retry.MaxInterval > 0 {
		b.MaxInterval = s.retry.MaxInterval
	}
	b.MaxElapsedTime = 0 // bounded by MaxRetries
	return b
}

// deadLetter hands n to every sink. It runs detached from the request context,
// which may already be cancelled by the time the retries are exhausted.
func (s *service) deadLetter(n *domain.Notification, cause error) {
	if len(s.deadLetters) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, sink := range s.deadLetters {
		if err := sink.Capture(ctx, n, cause); err != nil {
			metrics.DeadLettered.WithLabelValues("failed").Inc()
			s.log.Error("dead-letter capture failed",
				zap.String("notification_id", n.NotificationID),
				zap.Error(err),
			)
			continue
		}
		metrics.DeadLettered.WithLabelValues("ok").Inc()
	}
}

// ListUnread returns at most limit unread notifications for userID, newest first.
func (s *service) ListUnread(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	items, _, err := s.repo.ListByUser(ctx, userID, true, int32(clampLimit(limit)), "")
	if err != nil {
		return nil, storageErr(err)
	}
	return items, nil
}

func (s *service) List(ctx context.Context, userID string, q ListQuery) (*Page, error) {
	items, next, err := s.repo.ListByUser(ctx, userID, q.UnreadOnly, int32(clampLimit(q.Limit)), q.Cursor)
	if err != nil {
		return nil, storageErr(err)
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return &Page{Items: items, NextCursor: next}, nil
}

func (s *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

func (s *service) MarkAsRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	n, err := s.owned(ctx, notificationID, userID)
	if err != nil {
		return nil, err
	}
	if !n.IsRead {
		if err := s.repo.MarkAsRead(ctx, notificationID); err != nil {
			return nil, storageErr(err)
		}
		n.IsRead = true
	}
	return n, nil
}

func (s *service) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return count, storageErr(err)
	}
	return count, nil
}

func (s *service) Delete(ctx context.Context, notificationID, userID string) error {
	if _, err := s.owned(ctx, notificationID, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, notificationID); err != nil {
		return storageErr(err)
	}
	return nil
}

func (s *service) DeleteAllRead(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.DeleteRead(ctx, userID)
	if err != nil {
		return count, storageErr(err)
	}
	return count, nil
}

// owned loads a notification and checks it belongs to userID.
func (s *service) owned(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, storageErr(err)
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("notification belongs to another user: %w", domain.ErrForbidden)
	}
	return n, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}

// storageErr passes domain errors through and classifies everything else as
// a storage outage.
func storageErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrBadRequest) {
		return err
	}
	return fmt.Errorf("%v: %w", err, domain.ErrStorageUnavailable)
}
