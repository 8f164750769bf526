package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bloodlink/internal/authz"
	donationmetrics "bloodlink/internal/donation/metrics"
	"bloodlink/internal/donation/models"
	identity "bloodlink/internal/identity/models"
	"bloodlink/pkg/attrs"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	audit "bloodlink/pkg/platform/audit"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

const (
	// RecentLimit caps the dashboard summary listing.
	RecentLimit = 3

	defaultPageSize = 20
	maxPageSize     = 100

	ineligibleMessage = "not eligible to create a request"
)

type RequestStore interface {
	Create(ctx context.Context, req *models.DonationRequest) error
	FindByID(ctx context.Context, requestID id.DonationRequestID) (*models.DonationRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]*models.DonationRequest, error)
	Count(ctx context.Context, filter models.RequestFilter) (int, error)
	Update(ctx context.Context, requestID id.DonationRequestID, u models.RequestUpdate, now time.Time) (*models.DonationRequest, error)
	Claim(ctx context.Context, requestID id.DonationRequestID, donor models.Donor, now time.Time) (*models.DonationRequest, error)
	Transition(ctx context.Context, requestID id.DonationRequestID, from []models.Status, to models.Status, now time.Time) (*models.DonationRequest, error)
	Delete(ctx context.Context, requestID id.DonationRequestID) error
}

// AccountReader resolves the requester's account for eligibility checks.
type AccountReader interface {
	FindByEmail(ctx context.Context, email string) (*identity.Account, error)
}

type Authorizer interface {
	Check(ctx context.Context, req authz.Requirement, subjectEmail string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the donation request lifecycle engine. Every mutation is a single
// conditional store operation; preconditions are read first only to produce precise
// errors, the store guard is authoritative.
type Service struct {
	requests       RequestStore
	accounts       AccountReader
	guard          Authorizer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *donationmetrics.Metrics
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

func WithMetrics(m *donationmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(requests RequestStore, accounts AccountReader, guard Authorizer, opts ...Option) *Service {
	s := &Service{requests: requests, accounts: accounts, guard: guard}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a pending request owned by the caller. A caller without an active account
// gets an ineligible outcome and nothing is stored.
func (s *Service) Create(ctx context.Context, in *models.CreateRequestInput) (*models.CreateOutcome, error) {
	if err := s.guard.Check(ctx, authz.RequireAuthenticated, ""); err != nil {
		return nil, err
	}
	actor := requestcontext.ActorEmail(ctx)

	acc, err := s.accounts.FindByEmail(ctx, actor)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load requester account")
	}
	if acc == nil || !acc.IsActive() {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "donation request declined",
				"requester", actor,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		if s.metrics != nil {
			s.metrics.IncrementIneligible()
		}
		return &models.CreateOutcome{Eligible: false, Message: ineligibleMessage}, nil
	}

	req, err := models.NewDonationRequest(id.NewDonationRequestID(), acc.Email, acc.Name, *in, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create donation request")
	}

	s.logAudit(ctx, string(audit.EventRequestCreated),
		"subject", req.ID.String(),
		"detail", string(req.RecipientBloodGroup)+" at "+req.HospitalName,
	)
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	return &models.CreateOutcome{Eligible: true, Request: req}, nil
}

func (s *Service) Get(ctx context.Context, requestID id.DonationRequestID) (*models.DonationRequest, error) {
	if err := s.guard.Check(ctx, authz.RequireAuthenticated, ""); err != nil {
		return nil, err
	}
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	return req, nil
}

// ListByRequester returns the requester's own requests, newest first. recent caps the
// result to the three latest. The caller must be the requester.
func (s *Service) ListByRequester(ctx context.Context, requesterEmail string, recent bool, statuses []models.Status) ([]*models.DonationRequest, error) {
	if err := s.guard.Check(ctx, authz.RequireIdentityMatch, requesterEmail); err != nil {
		return nil, err
	}
	filter := models.RequestFilter{RequesterEmail: requestcontext.ActorEmail(ctx), Statuses: statuses}
	if recent {
		filter.Limit = RecentLimit
	}
	reqs, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list donation requests")
	}
	return reqs, nil
}

// ListPublic is the unscoped listing shown to prospective donors. It needs no identity.
func (s *Service) ListPublic(ctx context.Context, statuses []models.Status, limit, offset int) (*models.RequestPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	filter := models.RequestFilter{Statuses: statuses, Limit: limit, Offset: offset}

	items, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list donation requests")
	}
	total, err := s.requests.Count(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count donation requests")
	}
	return &models.RequestPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Update edits a pending request. Only the requester or an admin may edit.
func (s *Service) Update(ctx context.Context, requestID id.DonationRequestID, in *models.UpdateRequestInput) (*models.DonationRequest, error) {
	current, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if err := s.guard.Check(ctx, authz.RequireIdentityMatchOrAdmin, current.RequesterEmail); err != nil {
		return nil, err
	}
	if err := current.CanEdit(); err != nil {
		return nil, err
	}

	updated, err := s.requests.Update(ctx, requestID, in.ToUpdate(), requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeConflict, "request can only be edited while pending")
		}
		return nil, wrapRequestErr(err)
	}
	s.logAudit(ctx, string(audit.EventRequestUpdated), "subject", requestID.String())
	return updated, nil
}

// Claim assigns a donor and moves the request from pending to inprogress. Any signed-in
// caller may record the donor. A request that is no longer pending is a conflict, so of
// two racing claims exactly one wins.
func (s *Service) Claim(ctx context.Context, requestID id.DonationRequestID, in *models.ClaimInput) (*models.DonationRequest, error) {
	if err := s.guard.Check(ctx, authz.RequireAuthenticated, ""); err != nil {
		return nil, err
	}
	current, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if err := current.CanClaim(); err != nil {
		s.observeClaim("conflict")
		return nil, err
	}

	claimed, err := s.requests.Claim(ctx, requestID, in.Donor(), requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			s.observeClaim("conflict")
			return nil, dErrors.New(dErrors.CodeConflict, "request is no longer pending")
		}
		return nil, wrapRequestErr(err)
	}

	s.observeClaim("claimed")
	s.logAudit(ctx, string(audit.EventRequestClaimed),
		"subject", requestID.String(),
		"detail", "donor="+in.DonorEmail,
	)
	return claimed, nil
}

// SetStatus finishes or cancels a request. Only the requester or an admin may do so.
func (s *Service) SetStatus(ctx context.Context, requestID id.DonationRequestID, in *models.SetStatusInput) (*models.DonationRequest, error) {
	current, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if err := s.guard.Check(ctx, authz.RequireIdentityMatchOrAdmin, current.RequesterEmail); err != nil {
		return nil, err
	}
	if err := current.CanTransition(in.Status); err != nil {
		return nil, err
	}

	updated, err := s.requests.Transition(ctx, requestID, models.SourcesOf(in.Status), in.Status, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeConflict, "request changed state concurrently")
		}
		return nil, wrapRequestErr(err)
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(string(in.Status))
	}
	s.logAudit(ctx, string(audit.EventRequestStatusChanged),
		"subject", requestID.String(),
		"detail", string(current.Status)+"->"+string(in.Status),
	)
	return updated, nil
}

// Delete removes a request regardless of status. Only the requester or an admin may delete.
func (s *Service) Delete(ctx context.Context, requestID id.DonationRequestID) error {
	current, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return wrapRequestErr(err)
	}
	if err := s.guard.Check(ctx, authz.RequireIdentityMatchOrAdmin, current.RequesterEmail); err != nil {
		return err
	}
	if err := s.requests.Delete(ctx, requestID); err != nil {
		return wrapRequestErr(err)
	}
	s.logAudit(ctx, string(audit.EventRequestDeleted),
		"subject", requestID.String(),
		"detail", string(current.Status),
	)
	return nil
}

func (s *Service) observeClaim(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveClaim(outcome)
	}
}

func wrapRequestErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "donation request not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "donation request store error")
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
