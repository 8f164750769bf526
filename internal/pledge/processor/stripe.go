// Package processor adapts the Stripe Checkout API to the pledge processor port.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"bloodlink/internal/platform/config"
	"bloodlink/internal/pledge/models"
	"bloodlink/pkg/platform/circuit"
	"bloodlink/pkg/platform/sentinel"
)

const requestTimeout = 15 * time.Second

// Stripe creates and reads Checkout Sessions. Calls are never retried; repeated transport
// failures open a breaker so callers fail fast while Stripe is unreachable.
type Stripe struct {
	api     *client.API
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Stripe)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Stripe) {
		s.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Stripe) {
		s.breaker = b
	}
}

// NewStripe builds the adapter. cfg.APIURL points it at stripe-mock or a test server.
func NewStripe(cfg config.Stripe, opts ...Option) *Stripe {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: requestTimeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	s := &Stripe{
		api:     client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		breaker: circuit.New("stripe"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stripe) CreateSession(ctx context.Context, req models.SessionRequest) (*models.Session, error) {
	if !s.breaker.Allow() {
		return nil, fmt.Errorf("stripe circuit open: %w", sentinel.ErrUnavailable)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(req.BuyerEmail),
		SuccessURL:    stripe.String(req.SuccessURL),
		CancelURL:     stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Label),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	s.recordSuccess(ctx)
	return &models.Session{ID: sess.ID, RedirectURL: sess.URL}, nil
}

// GetSession returns sentinel.ErrNotFound when Stripe does not know the session id.
func (s *Stripe) GetSession(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	if !s.breaker.Allow() {
		return nil, fmt.Errorf("stripe circuit open: %w", sentinel.ErrUnavailable)
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && (stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing) {
			s.recordSuccess(ctx)
			return nil, sentinel.ErrNotFound
		}
		s.recordFailure(ctx, err)
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	s.recordSuccess(ctx)
	return toPaymentSession(sess), nil
}

func toPaymentSession(sess *stripe.CheckoutSession) *models.PaymentSession {
	out := &models.PaymentSession{
		ID:           sess.ID,
		PaymentState: string(sess.PaymentStatus),
		AmountTotal:  sess.AmountTotal,
		Currency:     string(sess.Currency),
		BuyerEmail:   sess.CustomerEmail,
		Metadata:     sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		out.TransactionID = sess.PaymentIntent.ID
	}
	if out.BuyerEmail == "" && sess.CustomerDetails != nil {
		out.BuyerEmail = sess.CustomerDetails.Email
	}
	return out
}

func (s *Stripe) recordFailure(ctx context.Context, err error) {
	if _, change := s.breaker.RecordFailure(); change.Opened && s.logger != nil {
		s.logger.WarnContext(ctx, "stripe circuit opened", "breaker", s.breaker.Name(), "error", err)
	}
}

func (s *Stripe) recordSuccess(ctx context.Context) {
	if _, change := s.breaker.RecordSuccess(); change.Closed && s.logger != nil {
		s.logger.InfoContext(ctx, "stripe circuit closed", "breaker", s.breaker.Name())
	}
}
