package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"bloodlink/internal/authz"
	donationmetrics "bloodlink/internal/donation/metrics"
	"bloodlink/internal/donation/models"
	"bloodlink/internal/donation/store/request"
	identity "bloodlink/internal/identity/models"
	"bloodlink/internal/identity/store/account"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	audit "bloodlink/pkg/platform/audit"
	"bloodlink/pkg/platform/audit/publisher"
	auditmemory "bloodlink/pkg/platform/audit/store/memory"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

type DonationServiceSuite struct {
	suite.Suite
	accounts *account.InMemoryStore
	requests *request.InMemoryStore
	audits   *auditmemory.InMemoryStore
	metrics  *donationmetrics.Metrics
	service  *Service
	clock    time.Time
}

func TestDonationServiceSuite(t *testing.T) {
	suite.Run(t, new(DonationServiceSuite))
}

func (s *DonationServiceSuite) SetupTest() {
	s.accounts = account.NewInMemory()
	s.requests = request.NewInMemory()
	s.audits = auditmemory.NewInMemoryStore()
	s.metrics = donationmetrics.NewWithRegisterer(prometheus.NewRegistry())
	s.service = New(s.requests, s.accounts, authz.NewGuard(s.accounts),
		WithAuditPublisher(publisher.NewPublisher(s.audits)),
		WithMetrics(s.metrics),
	)
	s.clock = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	s.addAccount("a@x.com", identity.RoleDonor)
	s.addAccount("b@x.com", identity.RoleDonor)
	s.addAccount("admin@x.com", identity.RoleAdmin)
}

func (s *DonationServiceSuite) addAccount(email string, role identity.Role) *identity.Account {
	acc, err := identity.NewAccount(id.NewAccountID(), email, "Name "+email, s.clock)
	s.Require().NoError(err)
	acc.Role = role
	s.Require().NoError(s.accounts.Create(context.Background(), acc))
	return acc
}

// as returns a context for the caller; each call advances the clock so creation order is strict.
func (s *DonationServiceSuite) as(email string) context.Context {
	s.clock = s.clock.Add(time.Second)
	ctx := requestcontext.WithActorEmail(context.Background(), email)
	return requestcontext.WithTime(ctx, s.clock)
}

func (s *DonationServiceSuite) input() *models.CreateRequestInput {
	in := &models.CreateRequestInput{
		RecipientName:       "Karim",
		RecipientBloodGroup: "ab+",
		HospitalName:        "Popular",
		District:            "Khulna",
		Upazila:             "Sonadanga",
		FullAddress:         "Cabin 12",
		DonationDate:        "2025-08-05",
		DonationTime:        "11:00",
	}
	in.Normalize()
	s.Require().NoError(in.Validate())
	return in
}

func (s *DonationServiceSuite) create(email string) *models.DonationRequest {
	out, err := s.service.Create(s.as(email), s.input())
	s.Require().NoError(err)
	s.Require().True(out.Eligible)
	return out.Request
}

func (s *DonationServiceSuite) claimInput(name, email string) *models.ClaimInput {
	in := &models.ClaimInput{DonorName: name, DonorEmail: email}
	in.Normalize()
	return in
}

func (s *DonationServiceSuite) TestCreateAndClaim() {
	req := s.create("a@x.com")
	s.Equal(models.StatusPending, req.Status)
	s.Equal("a@x.com", req.RequesterEmail)
	s.Equal("Name a@x.com", req.RequesterName)

	claimed, err := s.service.Claim(s.as("b@x.com"), req.ID, s.claimInput("B", "b@x.com"))
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, claimed.Status)
	s.Require().NotNil(claimed.Donor)
	s.Equal(models.Donor{Name: "B", Email: "b@x.com"}, *claimed.Donor)

	s.Equal(float64(1), promtestutil.ToFloat64(s.metrics.RequestsCreated))
	s.Equal(float64(1), promtestutil.ToFloat64(s.metrics.Claims.WithLabelValues("claimed")))

	events, err := s.audits.ListBySubject(context.Background(), req.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventRequestCreated), events[0].Action)
	s.Equal(string(audit.EventRequestClaimed), events[1].Action)
}

func (s *DonationServiceSuite) TestBlockedAccountIsIneligible() {
	acc, err := s.accounts.FindByEmail(context.Background(), "a@x.com")
	s.Require().NoError(err)
	_, err = s.accounts.UpdateStatus(context.Background(), acc.ID, identity.AccountStatusBlocked, s.clock)
	s.Require().NoError(err)

	out, err := s.service.Create(s.as("a@x.com"), s.input())
	s.Require().NoError(err)
	s.False(out.Eligible)
	s.Equal("not eligible to create a request", out.Message)
	s.Nil(out.Request)

	n, err := s.requests.Count(context.Background(), models.RequestFilter{})
	s.Require().NoError(err)
	s.Zero(n)
	s.Equal(float64(1), promtestutil.ToFloat64(s.metrics.RequestsIneligible))
}

func (s *DonationServiceSuite) TestUnregisteredCallerIsIneligible() {
	out, err := s.service.Create(s.as("ghost@x.com"), s.input())
	s.Require().NoError(err)
	s.False(out.Eligible)
}

func (s *DonationServiceSuite) TestAnonymousCreateIsUnauthorized() {
	_, err := s.service.Create(context.Background(), s.input())
	s.Require().Error(err)
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func (s *DonationServiceSuite) TestClaimRules() {
	s.Run("anonymous claim is unauthorized", func() {
		req := s.create("a@x.com")
		_, err := s.service.Claim(context.Background(), req.ID, s.claimInput("B", "b@x.com"))
		s.Require().Error(err)
		s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})

	s.Run("any signed-in caller may record another donor", func() {
		req := s.create("admin@x.com")
		claimed, err := s.service.Claim(s.as("a@x.com"), req.ID, s.claimInput("B", "b@x.com"))
		s.Require().NoError(err)
		s.Equal(models.StatusInProgress, claimed.Status)
		s.Equal("b@x.com", claimed.Donor.Email)
	})

	req := s.create("a@x.com")

	s.Run("admin may assign any donor", func() {
		_, err := s.service.Claim(s.as("admin@x.com"), req.ID, s.claimInput("B", "b@x.com"))
		s.Require().NoError(err)
	})

	s.Run("second claim is a conflict and keeps the first donor", func() {
		_, err := s.service.Claim(s.as("a@x.com"), req.ID, s.claimInput("A", "a@x.com"))
		s.Require().Error(err)
		s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))

		found, err := s.requests.FindByID(context.Background(), req.ID)
		s.Require().NoError(err)
		s.Equal("b@x.com", found.Donor.Email)
	})

	s.Run("unknown request is not found", func() {
		_, err := s.service.Claim(s.as("b@x.com"), id.NewDonationRequestID(), s.claimInput("B", "b@x.com"))
		s.Require().Error(err)
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})
}

func (s *DonationServiceSuite) TestConcurrentClaims() {
	req := s.create("a@x.com")
	const goroutines = 50
	for i := 0; i < goroutines; i++ {
		s.addAccount(fmt.Sprintf("d%d@x.com", i), identity.RoleDonor)
	}

	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("d%d@x.com", i)
			ctx := requestcontext.WithActorEmail(context.Background(), email)
			_, err := s.service.Claim(ctx, req.ID, &models.ClaimInput{DonorName: "D", DonorEmail: email})
			switch {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *DonationServiceSuite) TestStatusTransitions() {
	s.Run("admin forces a pending request to done and it stays final", func() {
		req := s.create("a@x.com")
		done, err := s.service.SetStatus(s.as("admin@x.com"), req.ID, &models.SetStatusInput{Status: models.StatusDone})
		s.Require().NoError(err)
		s.Equal(models.StatusDone, done.Status)
		s.Nil(done.Donor)

		for _, next := range []models.Status{models.StatusCancelled, models.StatusDone} {
			_, err = s.service.SetStatus(s.as("admin@x.com"), req.ID, &models.SetStatusInput{Status: next})
			s.Require().Error(err)
			s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
		}
		_, err = s.service.Claim(s.as("b@x.com"), req.ID, s.claimInput("B", "b@x.com"))
		s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
	})

	s.Run("owner finishes a claimed request and it stays final", func() {
		doneBefore := promtestutil.ToFloat64(s.metrics.Transitions.WithLabelValues("done"))
		req := s.create("a@x.com")
		_, err := s.service.Claim(s.as("b@x.com"), req.ID, s.claimInput("B", "b@x.com"))
		s.Require().NoError(err)

		done, err := s.service.SetStatus(s.as("a@x.com"), req.ID, &models.SetStatusInput{Status: models.StatusDone})
		s.Require().NoError(err)
		s.Equal(models.StatusDone, done.Status)

		_, err = s.service.SetStatus(s.as("admin@x.com"), req.ID, &models.SetStatusInput{Status: models.StatusCancelled})
		s.Require().Error(err)
		s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
		s.Equal(doneBefore+1, promtestutil.ToFloat64(s.metrics.Transitions.WithLabelValues("done")))
	})

	s.Run("stranger cannot cancel", func() {
		req := s.create("a@x.com")
		_, err := s.service.SetStatus(s.as("b@x.com"), req.ID, &models.SetStatusInput{Status: models.StatusCancelled})
		s.Require().Error(err)
		s.Equal(dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	s.Run("admin cancels pending", func() {
		req := s.create("a@x.com")
		cancelled, err := s.service.SetStatus(s.as("admin@x.com"), req.ID, &models.SetStatusInput{Status: models.StatusCancelled})
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, cancelled.Status)
		s.Nil(cancelled.Donor)
	})
}

func (s *DonationServiceSuite) TestUpdate() {
	req := s.create("a@x.com")
	hospital := "Labaid"

	s.Run("owner edits while pending", func() {
		updated, err := s.service.Update(s.as("a@x.com"), req.ID, &models.UpdateRequestInput{HospitalName: &hospital})
		s.Require().NoError(err)
		s.Equal("Labaid", updated.HospitalName)
		s.Equal("a@x.com", updated.RequesterEmail)
	})

	s.Run("stranger is forbidden", func() {
		_, err := s.service.Update(s.as("b@x.com"), req.ID, &models.UpdateRequestInput{HospitalName: &hospital})
		s.Require().Error(err)
		s.Equal(dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	s.Run("edit after claim is a conflict", func() {
		_, err := s.service.Claim(s.as("b@x.com"), req.ID, s.claimInput("B", "b@x.com"))
		s.Require().NoError(err)
		_, err = s.service.Update(s.as("a@x.com"), req.ID, &models.UpdateRequestInput{HospitalName: &hospital})
		s.Require().Error(err)
		s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
	})
}

func (s *DonationServiceSuite) TestDelete() {
	req := s.create("a@x.com")

	err := s.service.Delete(s.as("b@x.com"), req.ID)
	s.Require().Error(err)
	s.Equal(dErrors.CodeForbidden, dErrors.CodeOf(err))

	s.Require().NoError(s.service.Delete(s.as("a@x.com"), req.ID))
	_, err = s.requests.FindByID(context.Background(), req.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	err = s.service.Delete(s.as("a@x.com"), req.ID)
	s.Require().Error(err)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func (s *DonationServiceSuite) TestScopedListing() {
	var created []*models.DonationRequest
	for i := 0; i < 4; i++ {
		created = append(created, s.create("a@x.com"))
	}
	s.create("b@x.com")

	s.Run("owner sees all of theirs newest first", func() {
		got, err := s.service.ListByRequester(s.as("a@x.com"), "a@x.com", false, nil)
		s.Require().NoError(err)
		s.Require().Len(got, 4)
		s.Equal(created[3].ID, got[0].ID)
		s.Equal(created[0].ID, got[3].ID)
	})

	s.Run("recent caps at three", func() {
		got, err := s.service.ListByRequester(s.as("a@x.com"), "a@x.com", true, nil)
		s.Require().NoError(err)
		s.Len(got, RecentLimit)
	})

	s.Run("mismatched identity is forbidden with no data", func() {
		got, err := s.service.ListByRequester(s.as("b@x.com"), "a@x.com", false, nil)
		s.Require().Error(err)
		s.Nil(got)
		s.Equal(dErrors.CodeForbidden, dErrors.CodeOf(err))
	})
}

func (s *DonationServiceSuite) TestPublicListing() {
	for i := 0; i < 5; i++ {
		s.create("a@x.com")
	}
	claimed := s.create("b@x.com")
	_, err := s.service.Claim(s.as("a@x.com"), claimed.ID, s.claimInput("A", "a@x.com"))
	s.Require().NoError(err)

	page, err := s.service.ListPublic(context.Background(), []models.Status{models.StatusPending}, 2, 0)
	s.Require().NoError(err)
	s.Len(page.Items, 2)
	s.Equal(5, page.Total)

	page, err = s.service.ListPublic(context.Background(), nil, 0, 0)
	s.Require().NoError(err)
	s.Equal(defaultPageSize, page.Limit)
	s.Equal(6, page.Total)

	page, err = s.service.ListPublic(context.Background(), nil, 1000, -3)
	s.Require().NoError(err)
	s.Equal(maxPageSize, page.Limit)
	s.Equal(0, page.Offset)
}

type failingRequestStore struct {
	*request.InMemoryStore
}

func (failingRequestStore) List(context.Context, models.RequestFilter) ([]*models.DonationRequest, error) {
	return nil, errors.New("connection reset")
}

func (s *DonationServiceSuite) TestStoreFailureIsInternal() {
	svc := New(failingRequestStore{request.NewInMemory()}, s.accounts, authz.NewGuard(s.accounts))
	_, err := svc.ListPublic(context.Background(), nil, 10, 0)
	s.Require().Error(err)
	s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
}
