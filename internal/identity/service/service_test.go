package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"bloodlink/internal/authz"
	"bloodlink/internal/identity/models"
	"bloodlink/internal/identity/store/account"
	"bloodlink/internal/platform/metrics"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	audit "bloodlink/pkg/platform/audit"
	"bloodlink/pkg/platform/audit/publisher"
	auditmemory "bloodlink/pkg/platform/audit/store/memory"
	"bloodlink/pkg/requestcontext"
)

type IdentityServiceSuite struct {
	suite.Suite
	store    *account.InMemoryStore
	audits   *auditmemory.InMemoryStore
	metrics  *metrics.Metrics
	service  *Service
	now      time.Time
	adminCtx context.Context
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.store = account.NewInMemory()
	s.audits = auditmemory.NewInMemoryStore()
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.service = New(s.store, authz.NewGuard(s.store),
		WithAuditPublisher(publisher.NewPublisher(s.audits)),
		WithMetrics(s.metrics),
	)
	s.now = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	admin, err := models.NewAccount(id.NewAccountID(), "admin@x.com", "Admin", s.now.Add(-time.Hour))
	s.Require().NoError(err)
	admin.Role = models.RoleAdmin
	s.Require().NoError(s.store.Create(context.Background(), admin))
	s.adminCtx = s.actor("admin@x.com")
}

func (s *IdentityServiceSuite) actor(email string) context.Context {
	ctx := requestcontext.WithActorEmail(context.Background(), email)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *IdentityServiceSuite) register(email string) *models.Account {
	req := &models.RegisterAccountRequest{Email: email}
	req.Normalize()
	s.Require().NoError(req.Validate())
	acc, err := s.service.Register(s.actor(email), req)
	s.Require().NoError(err)
	return acc
}

func (s *IdentityServiceSuite) TestRegister() {
	s.Run("new account is an active donor", func() {
		acc := s.register("a@x.com")
		s.Equal(models.RoleDonor, acc.Role)
		s.Equal(models.AccountStatusActive, acc.Status)
		s.Equal("A", acc.Name)
		s.Equal(s.now, acc.CreatedAt)
		s.Equal(float64(1), promtestutil.ToFloat64(s.metrics.AccountsRegistered))
	})

	s.Run("duplicate email is a conflict", func() {
		_, err := s.service.Register(s.actor("a@x.com"), &models.RegisterAccountRequest{Email: "a@x.com"})
		s.Require().Error(err)
		s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
	})

	s.Run("bootstrap email registers as admin", func() {
		svc := New(s.store, authz.NewGuard(s.store), WithBootstrapAdmins(" Root@X.com "))
		req := &models.RegisterAccountRequest{Email: "root@x.com"}
		req.Normalize()
		acc, err := svc.Register(s.actor("root@x.com"), req)
		s.Require().NoError(err)
		s.Equal(models.RoleAdmin, acc.Role)
	})

	s.Run("cannot register someone else", func() {
		_, err := s.service.Register(s.actor("mallory@x.com"), &models.RegisterAccountRequest{Email: "victim@x.com"})
		s.Require().Error(err)
		s.Equal(dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	s.Run("anonymous caller is unauthorized", func() {
		_, err := s.service.Register(context.Background(), &models.RegisterAccountRequest{Email: "anon@x.com"})
		s.Require().Error(err)
		s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})

	s.Run("registration is audited", func() {
		events, err := s.audits.ListAll(context.Background())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventAccountRegistered), events[0].Action)
		s.Equal("a@x.com", events[0].ActorEmail)
	})
}

func (s *IdentityServiceSuite) TestList() {
	s.register("a@x.com")
	s.register("b@x.com")

	s.Run("admin lists everyone newest first", func() {
		accounts, err := s.service.List(s.adminCtx, "")
		s.Require().NoError(err)
		s.Len(accounts, 3)
	})

	s.Run("owner lists self by email", func() {
		accounts, err := s.service.List(s.actor("a@x.com"), "A@X.com")
		s.Require().NoError(err)
		s.Require().Len(accounts, 1)
		s.Equal("a@x.com", accounts[0].Email)
	})

	s.Run("other email is forbidden", func() {
		accounts, err := s.service.List(s.actor("a@x.com"), "b@x.com")
		s.Require().Error(err)
		s.Nil(accounts)
		s.Equal(dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	s.Run("unscoped listing needs admin", func() {
		_, err := s.service.List(s.actor("a@x.com"), "")
		s.Require().Error(err)
		s.Equal(dErrors.CodeForbidden, dErrors.CodeOf(err))
	})
}

func (s *IdentityServiceSuite) TestUpdateProfile() {
	acc := s.register("a@x.com")
	district := "Sylhet"
	req := &models.UpdateProfileRequest{District: &district}

	s.Run("owner updates own profile", func() {
		updated, err := s.service.UpdateProfile(s.actor("a@x.com"), acc.ID, req)
		s.Require().NoError(err)
		s.Equal("Sylhet", updated.District)
	})

	s.Run("stranger is forbidden", func() {
		_, err := s.service.UpdateProfile(s.actor("b@x.com"), acc.ID, req)
		s.Require().Error(err)
		s.Equal(dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	s.Run("unknown id is not found", func() {
		_, err := s.service.UpdateProfile(s.adminCtx, id.NewAccountID(), req)
		s.Require().Error(err)
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})
}

func (s *IdentityServiceSuite) TestUpdateStatusAndRole() {
	acc := s.register("a@x.com")

	s.Run("admin blocks an account", func() {
		updated, err := s.service.UpdateStatus(s.adminCtx, acc.ID, &models.UpdateStatusRequest{Status: models.AccountStatusBlocked})
		s.Require().NoError(err)
		s.Equal(models.AccountStatusBlocked, updated.Status)
	})

	s.Run("donor cannot change roles", func() {
		_, err := s.service.UpdateRole(s.actor("a@x.com"), acc.ID, &models.UpdateRoleRequest{Role: models.RoleAdmin})
		s.Require().Error(err)
		s.Equal(dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	s.Run("admin promotes to volunteer", func() {
		updated, err := s.service.UpdateRole(s.adminCtx, acc.ID, &models.UpdateRoleRequest{Role: models.RoleVolunteer})
		s.Require().NoError(err)
		s.Equal(models.RoleVolunteer, updated.Role)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.service.UpdateStatus(s.adminCtx, id.NewAccountID(), &models.UpdateStatusRequest{Status: models.AccountStatusActive})
		s.Require().Error(err)
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})

	s.Run("status and role changes are audited", func() {
		events, err := s.audits.ListBySubject(context.Background(), acc.ID.String())
		s.Require().NoError(err)
		actions := make([]string, 0, len(events))
		for _, e := range events {
			actions = append(actions, e.Action)
		}
		s.Contains(actions, string(audit.EventAccountStatusChanged))
		s.Contains(actions, string(audit.EventAccountRoleChanged))
	})
}

func (s *IdentityServiceSuite) TestMe() {
	s.register("a@x.com")

	acc, err := s.service.Me(s.actor("a@x.com"))
	s.Require().NoError(err)
	s.Equal("a@x.com", acc.Email)

	_, err = s.service.Me(s.actor("ghost@x.com"))
	s.Require().Error(err)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}
