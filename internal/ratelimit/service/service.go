package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bloodlink/internal/ratelimit/metrics"
	"bloodlink/internal/ratelimit/models"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/requestcontext"
)

// BucketStore counts requests in a sliding window per key.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*models.Result, error)
	Reset(ctx context.Context, key string) error
}

// DefaultLimits are per client per minute.
func DefaultLimits() map[models.EndpointClass]models.Limit {
	return map[models.EndpointClass]models.Limit{
		models.ClassRead:    {Requests: 300, Window: time.Minute},
		models.ClassWrite:   {Requests: 60, Window: time.Minute},
		models.ClassPayment: {Requests: 10, Window: time.Minute},
	}
}

type Service struct {
	buckets BucketStore
	limits  map[models.EndpointClass]models.Limit
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLimit overrides the budget of one class. Non-positive values keep the default.
func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(s *Service) {
		if limit.Requests > 0 && limit.Window > 0 {
			s.limits[class] = limit
		}
	}
}

func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}
	svc := &Service{buckets: buckets, limits: DefaultLimits()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check spends one request of client's budget in class. A class without a configured
// limit is denied.
func (s *Service) Check(ctx context.Context, class models.EndpointClass, client string) (*models.Result, error) {
	now := requestcontext.Now(ctx)
	limit, ok := s.limits[class]
	if !ok {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "rate limit not configured", "endpoint_class", class)
		}
		return &models.Result{Allowed: false, ResetAt: now, RetryAfter: 60}, nil
	}

	result, err := s.buckets.Allow(ctx, models.BucketKey(class, client), limit.Requests, limit.Window, now)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementStoreErrors()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}
	if s.metrics != nil {
		s.metrics.ObserveDecision(string(class), result.Allowed)
	}
	if !result.Allowed && s.logger != nil {
		s.logger.InfoContext(ctx, "rate limit exceeded",
			"endpoint_class", class,
			"request_id", requestcontext.RequestID(ctx),
			"retry_after", result.RetryAfter,
		)
	}
	return result, nil
}
