package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bloodlink/internal/authz"
	"bloodlink/internal/identity/models"
	"bloodlink/internal/platform/metrics"
	"bloodlink/pkg/attrs"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/email"
	audit "bloodlink/pkg/platform/audit"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error)
	UpdateProfile(ctx context.Context, accountID id.AccountID, update models.ProfileUpdate, now time.Time) (*models.Account, error)
	UpdateStatus(ctx context.Context, accountID id.AccountID, status models.AccountStatus, now time.Time) (*models.Account, error)
	UpdateRole(ctx context.Context, accountID id.AccountID, role models.Role, now time.Time) (*models.Account, error)
}

type Authorizer interface {
	Check(ctx context.Context, req authz.Requirement, subjectEmail string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages account registration and the account state held by admins.
type Service struct {
	accounts       AccountStore
	guard          Authorizer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	admins         map[string]struct{}
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBootstrapAdmins makes the listed emails register as admins.
func WithBootstrapAdmins(emails ...string) Option {
	return func(s *Service) {
		for _, e := range emails {
			if e = email.Normalize(e); e != "" {
				s.admins[e] = struct{}{}
			}
		}
	}
}

func New(accounts AccountStore, guard Authorizer, opts ...Option) *Service {
	s := &Service{accounts: accounts, guard: guard, admins: map[string]struct{}{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates the caller's own account with role donor (admin for bootstrap emails)
// and status active. A second registration for the same email is a conflict.
func (s *Service) Register(ctx context.Context, req *models.RegisterAccountRequest) (*models.Account, error) {
	if err := s.guard.Check(ctx, authz.RequireIdentityMatch, req.Email); err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = email.DisplayName(req.Email)
	}
	acc, err := models.NewAccount(id.NewAccountID(), req.Email, name, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	acc.AvatarURL = req.AvatarURL
	acc.District = req.District
	acc.Upazila = req.Upazila
	acc.BloodGroup = req.ParsedBloodGroup()
	if _, ok := s.admins[acc.Email]; ok {
		acc.Role = models.RoleAdmin
	}

	if err := s.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "account already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	s.logAudit(ctx, string(audit.EventAccountRegistered),
		"subject", acc.ID.String(),
		"email", acc.Email,
		"detail", "role="+string(acc.Role),
	)
	if s.metrics != nil {
		s.metrics.IncrementAccountsRegistered()
	}
	return acc, nil
}

// List returns accounts newest first. Filtering by email is open to that account's owner
// and to admins; the unfiltered listing is admin only.
func (s *Service) List(ctx context.Context, emailFilter string) ([]*models.Account, error) {
	emailFilter = email.Normalize(emailFilter)
	req := authz.RequireAdmin
	if emailFilter != "" {
		req = authz.RequireIdentityMatchOrAdmin
	}
	if err := s.guard.Check(ctx, req, emailFilter); err != nil {
		return nil, err
	}

	accounts, err := s.accounts.List(ctx, models.AccountFilter{Email: emailFilter})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list accounts")
	}
	return accounts, nil
}

// Me returns the caller's own account.
func (s *Service) Me(ctx context.Context) (*models.Account, error) {
	actor := requestcontext.ActorEmail(ctx)
	if actor == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	acc, err := s.accounts.FindByEmail(ctx, actor)
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	return acc, nil
}

// UpdateProfile changes the named profile fields of an account owned by the caller.
// Admins may edit any profile.
func (s *Service) UpdateProfile(ctx context.Context, accountID id.AccountID, req *models.UpdateProfileRequest) (*models.Account, error) {
	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	if err := s.guard.Check(ctx, authz.RequireIdentityMatchOrAdmin, acc.Email); err != nil {
		return nil, err
	}

	updated, err := s.accounts.UpdateProfile(ctx, accountID, req.ToUpdate(), requestcontext.Now(ctx))
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	return updated, nil
}

func (s *Service) UpdateStatus(ctx context.Context, accountID id.AccountID, req *models.UpdateStatusRequest) (*models.Account, error) {
	if err := s.guard.Check(ctx, authz.RequireAdmin, ""); err != nil {
		return nil, err
	}
	updated, err := s.accounts.UpdateStatus(ctx, accountID, req.Status, requestcontext.Now(ctx))
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	s.logAudit(ctx, string(audit.EventAccountStatusChanged),
		"subject", accountID.String(),
		"detail", string(req.Status),
	)
	return updated, nil
}

func (s *Service) UpdateRole(ctx context.Context, accountID id.AccountID, req *models.UpdateRoleRequest) (*models.Account, error) {
	if err := s.guard.Check(ctx, authz.RequireAdmin, ""); err != nil {
		return nil, err
	}
	updated, err := s.accounts.UpdateRole(ctx, accountID, req.Role, requestcontext.Now(ctx))
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	s.logAudit(ctx, string(audit.EventAccountRoleChanged),
		"subject", accountID.String(),
		"detail", string(req.Role),
	)
	return updated, nil
}

func wrapAccountErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "account store error")
}

// logAudit writes an audit log line and forwards the event. Delivery failures are logged;
// the mutation has already committed.
func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.ActorEmail(ctx)
	if s.logger != nil {
		args := append(attributes, "event", event, "log_type", "audit", "actor", actor, "request_id", requestID)
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:     event,
		Subject:    attrs.String(attributes, "subject"),
		Detail:     attrs.String(attributes, "detail"),
		ActorEmail: actor,
		RequestID:  requestID,
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "event", event, "error", err)
	}
}
