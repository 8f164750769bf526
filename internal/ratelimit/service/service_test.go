package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"bloodlink/internal/ratelimit/metrics"
	"bloodlink/internal/ratelimit/models"
	"bloodlink/internal/ratelimit/store/bucket"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration, time.Time) (*models.Result, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Reset(context.Context, string) error { return nil }

type RateLimitServiceSuite struct {
	suite.Suite
	metrics *metrics.Metrics
	service *Service
	ctx     context.Context
}

func TestRateLimitServiceSuite(t *testing.T) {
	suite.Run(t, new(RateLimitServiceSuite))
}

func (s *RateLimitServiceSuite) SetupTest() {
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	svc, err := New(bucket.NewInMemoryBucketStore(),
		WithMetrics(s.metrics),
		WithLimit(models.ClassPayment, models.Limit{Requests: 2, Window: time.Minute}),
	)
	s.Require().NoError(err)
	s.service = svc
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC))
}

func (s *RateLimitServiceSuite) TestCheck() {
	s.Run("budget is per class and client", func() {
		for range 2 {
			result, err := s.service.Check(s.ctx, models.ClassPayment, "10.0.0.1")
			s.Require().NoError(err)
			s.True(result.Allowed)
		}
		result, err := s.service.Check(s.ctx, models.ClassPayment, "10.0.0.1")
		s.Require().NoError(err)
		s.False(result.Allowed)

		other, err := s.service.Check(s.ctx, models.ClassPayment, "10.0.0.2")
		s.Require().NoError(err)
		s.True(other.Allowed)

		write, err := s.service.Check(s.ctx, models.ClassWrite, "10.0.0.1")
		s.Require().NoError(err)
		s.True(write.Allowed)
		s.Equal(59, write.Remaining)

		s.Equal(float64(1), promtestutil.ToFloat64(s.metrics.Decisions.WithLabelValues("payment", "rejected")))
	})

	s.Run("unknown class is denied", func() {
		result, err := s.service.Check(s.ctx, models.EndpointClass("bulk"), "10.0.0.1")
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(60, result.RetryAfter)
	})

	s.Run("store failure is internal", func() {
		svc, err := New(failingStore{}, WithMetrics(s.metrics))
		s.Require().NoError(err)
		_, err = svc.Check(s.ctx, models.ClassRead, "10.0.0.1")
		s.Require().Error(err)
		s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
		s.Equal(float64(1), promtestutil.ToFloat64(s.metrics.StoreErrors))
	})
}

func (s *RateLimitServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Require().Error(err)
}
