package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bloodlink/internal/authz"
	ledger "bloodlink/internal/ledger/models"
	pledgemetrics "bloodlink/internal/pledge/metrics"
	"bloodlink/internal/pledge/models"
	"bloodlink/pkg/attrs"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/email"
	audit "bloodlink/pkg/platform/audit"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

var tracer = otel.Tracer("bloodlink/pledge")

type LedgerStore interface {
	FindByTransactionID(ctx context.Context, transactionID string) (*ledger.PledgeRecord, error)
	InsertIfAbsent(ctx context.Context, rec *ledger.PledgeRecord) (bool, error)
	ListByDonorEmail(ctx context.Context, donorEmail string) ([]*ledger.PledgeRecord, error)
	List(ctx context.Context) ([]*ledger.PledgeRecord, error)
	Total(ctx context.Context) (int64, int, error)
}

// Processor is the external payment processor.
type Processor interface {
	CreateSession(ctx context.Context, req models.SessionRequest) (*models.Session, error)
	// GetSession returns sentinel.ErrNotFound for an unknown session.
	GetSession(ctx context.Context, sessionID string) (*models.PaymentSession, error)
}

type Authorizer interface {
	Check(ctx context.Context, req authz.Requirement, subjectEmail string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Settings are the processor session parameters that come from configuration.
type Settings struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Service runs the reconciliation protocol: open a processor session, then turn a paid
// session into exactly one ledger record no matter how often it is confirmed.
type Service struct {
	ledger         LedgerStore
	processor      Processor
	guard          Authorizer
	settings       Settings
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *pledgemetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *pledgemetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(pledges LedgerStore, processor Processor, guard Authorizer, settings Settings, opts ...Option) *Service {
	s := &Service{ledger: pledges, processor: processor, guard: guard, settings: settings}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate opens a processor session for the caller's pledge. Processor failures surface as
// upstream errors and are not retried.
func (s *Service) Initiate(ctx context.Context, req *models.InitiateRequest) (*models.Checkout, error) {
	ctx, span := tracer.Start(ctx, "pledge.Initiate", trace.WithAttributes(
		attribute.Int64("pledge.amount", req.Amount),
	))
	defer span.End()

	if err := s.guard.Check(ctx, authz.RequireIdentityMatch, req.DonorEmail); err != nil {
		return nil, err
	}

	start := time.Now()
	sess, err := s.processor.CreateSession(ctx, models.SessionRequest{
		AmountMinor: req.Amount * 100,
		Currency:    s.settings.Currency,
		BuyerEmail:  req.DonorEmail,
		Label:       req.Label(),
		SuccessURL:  s.settings.SuccessURL,
		CancelURL:   s.settings.CancelURL,
		Metadata: map[string]string{
			models.MetaDonorName:  req.DonorName,
			models.MetaDonorEmail: req.DonorEmail,
			models.MetaAmount:     strconv.FormatInt(req.Amount, 10),
		},
	})
	s.observeProcessor("create_session", start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create session failed")
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "payment session creation failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "payment processor unavailable")
	}

	span.SetAttributes(attribute.String("pledge.session_id", sess.ID))
	if s.metrics != nil {
		s.metrics.IncrementCheckout()
	}
	return &models.Checkout{SessionID: sess.ID, URL: sess.RedirectURL}, nil
}

// Confirm records the pledge behind a paid session. Duplicate and concurrent
// confirmations of the same transaction resolve to a single record.
func (s *Service) Confirm(ctx context.Context, req *models.ConfirmRequest) (*models.ConfirmResult, error) {
	ctx, span := tracer.Start(ctx, "pledge.Confirm", trace.WithAttributes(
		attribute.String("pledge.session_id", req.SessionID),
	))
	defer span.End()

	if err := s.guard.Check(ctx, authz.RequireAuthenticated, ""); err != nil {
		return nil, err
	}

	start := time.Now()
	sess, err := s.processor.GetSession(ctx, req.SessionID)
	s.observeProcessor("get_session", start)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidSession, "payment session not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "get session failed")
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "payment processor unavailable")
	}
	if sess == nil {
		return nil, dErrors.New(dErrors.CodeInvalidSession, "payment session not found")
	}
	span.SetAttributes(
		attribute.String("pledge.transaction_id", sess.TransactionID),
		attribute.String("pledge.payment_state", sess.PaymentState),
	)

	if sess.TransactionID != "" {
		existing, err := s.ledger.FindByTransactionID(ctx, sess.TransactionID)
		if err == nil {
			return s.result(span, models.OutcomeAlreadyRecorded, existing), nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger")
		}
	}

	if !sess.IsPaid() {
		return s.result(span, models.OutcomeUnpaid, nil), nil
	}
	if sess.TransactionID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidSession, "paid session has no transaction")
	}

	rec, err := ledger.NewPledgeRecord(
		sess.TransactionID,
		sess.ID,
		sess.AmountTotal,
		sess.Currency,
		sess.Metadata[models.MetaDonorName],
		sess.DonorEmail(),
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidSession, "payment session is incomplete")
	}

	inserted, err := s.ledger.InsertIfAbsent(ctx, rec)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record pledge")
	}
	if !inserted {
		existing, err := s.ledger.FindByTransactionID(ctx, rec.TransactionID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger")
		}
		return s.result(span, models.OutcomeAlreadyRecorded, existing), nil
	}

	s.logAudit(ctx, string(audit.EventPledgeRecorded),
		"subject", rec.TransactionID,
		"detail", strconv.FormatInt(rec.Amount, 10)+" "+rec.Currency+" from "+rec.DonorEmail,
	)
	if s.metrics != nil {
		s.metrics.AddRecorded(rec.Amount)
	}
	return s.result(span, models.OutcomeRecorded, rec), nil
}

// List returns pledges newest first. A donor email scopes the listing to that donor.
func (s *Service) List(ctx context.Context, donorEmail string) ([]*ledger.PledgeRecord, error) {
	donorEmail = email.Normalize(donorEmail)
	if donorEmail != "" {
		if err := s.guard.Check(ctx, authz.RequireIdentityMatchOrAdmin, donorEmail); err != nil {
			return nil, err
		}
		recs, err := s.ledger.ListByDonorEmail(ctx, donorEmail)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pledges")
		}
		return recs, nil
	}

	if err := s.guard.Check(ctx, authz.RequireAuthenticated, ""); err != nil {
		return nil, err
	}
	recs, err := s.ledger.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pledges")
	}
	return recs, nil
}

// Summary totals the ledger for the public funding page.
func (s *Service) Summary(ctx context.Context) (*ledger.Summary, error) {
	total, count, err := s.ledger.Total(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to total pledges")
	}
	return &ledger.Summary{Total: total, Currency: s.settings.Currency, Count: count}, nil
}

func (s *Service) result(span trace.Span, outcome models.Outcome, rec *ledger.PledgeRecord) *models.ConfirmResult {
	span.SetAttributes(attribute.String("pledge.outcome", string(outcome)))
	if s.metrics != nil {
		s.metrics.ObserveConfirmation(string(outcome))
	}
	return &models.ConfirmResult{Outcome: outcome, Pledge: rec}
}

func (s *Service) observeProcessor(call string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveProcessorCall(call, start)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	actor := requestcontext.ActorEmail(ctx)
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		args := append(attributes, "event", event, "log_type", "audit", "actor", actor, "request_id", requestID)
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:     event,
		Subject:    attrs.String(attributes, "subject"),
		Detail:     attrs.String(attributes, "detail"),
		ActorEmail: actor,
		RequestID:  requestID,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "event", event, "error", err)
	}
}
