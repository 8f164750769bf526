package request

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodlink/internal/donation/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

type InMemoryRequestStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	base  time.Time
}

func TestInMemoryRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryRequestStoreSuite))
}

func (s *InMemoryRequestStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.base = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
}

func (s *InMemoryRequestStoreSuite) seed(requester string, createdAt time.Time) *models.DonationRequest {
	req, err := models.NewDonationRequest(id.NewDonationRequestID(), requester, "R", models.CreateRequestInput{
		RecipientName:       "Patient",
		RecipientBloodGroup: "A+",
		HospitalName:        "General",
		District:            "Dhaka",
		Upazila:             "Dhanmondi",
		FullAddress:         "Road 1",
		DonationDate:        "2025-07-10",
		DonationTime:        "09:00",
	}, createdAt)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, req))
	return req
}

func (s *InMemoryRequestStoreSuite) TestCreateAndFind() {
	req := s.seed("a@x.com", s.base)

	found, err := s.store.FindByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, found.Status)

	s.Require().ErrorIs(s.store.Create(s.ctx, req), sentinel.ErrAlreadyUsed)

	_, err = s.store.FindByID(s.ctx, id.NewDonationRequestID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryRequestStoreSuite) TestListOrderingAndWindow() {
	for i := 0; i < 5; i++ {
		s.seed("a@x.com", s.base.Add(time.Duration(i)*time.Hour))
	}
	s.seed("b@x.com", s.base.Add(10*time.Hour))

	s.Run("scoped newest first", func() {
		got, err := s.store.List(s.ctx, models.RequestFilter{RequesterEmail: "a@x.com"})
		s.Require().NoError(err)
		s.Require().Len(got, 5)
		for i := 1; i < len(got); i++ {
			s.True(got[i-1].CreatedAt.After(got[i].CreatedAt))
		}
	})

	s.Run("limit caps the result", func() {
		got, err := s.store.List(s.ctx, models.RequestFilter{RequesterEmail: "a@x.com", Limit: 3})
		s.Require().NoError(err)
		s.Require().Len(got, 3)
		s.Equal(s.base.Add(4*time.Hour), got[0].CreatedAt)
	})

	s.Run("offset past the end is empty", func() {
		got, err := s.store.List(s.ctx, models.RequestFilter{Offset: 50})
		s.Require().NoError(err)
		s.Empty(got)
	})

	s.Run("count ignores the window", func() {
		n, err := s.store.Count(s.ctx, models.RequestFilter{RequesterEmail: "a@x.com", Limit: 1})
		s.Require().NoError(err)
		s.Equal(5, n)
	})
}

func (s *InMemoryRequestStoreSuite) TestListTiesBreakOnID() {
	for i := 0; i < 6; i++ {
		s.seed("a@x.com", s.base)
	}

	first, err := s.store.List(s.ctx, models.RequestFilter{Limit: 3})
	s.Require().NoError(err)
	second, err := s.store.List(s.ctx, models.RequestFilter{Limit: 3, Offset: 3})
	s.Require().NoError(err)

	all := append(first, second...)
	s.Require().Len(all, 6)
	for i := 1; i < len(all); i++ {
		s.Less(all[i-1].ID.String(), all[i].ID.String())
	}

	again, err := s.store.List(s.ctx, models.RequestFilter{Limit: 3})
	s.Require().NoError(err)
	for i := range first {
		s.Equal(first[i].ID, again[i].ID)
	}
}

func (s *InMemoryRequestStoreSuite) TestStatusFilter() {
	pending := s.seed("a@x.com", s.base)
	claimed := s.seed("a@x.com", s.base.Add(time.Hour))
	_, err := s.store.Claim(s.ctx, claimed.ID, models.Donor{Name: "B", Email: "b@x.com"}, s.base)
	s.Require().NoError(err)

	got, err := s.store.List(s.ctx, models.RequestFilter{Statuses: []models.Status{models.StatusPending}})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(pending.ID, got[0].ID)
}

func (s *InMemoryRequestStoreSuite) TestConditionalUpdates() {
	req := s.seed("a@x.com", s.base)
	later := s.base.Add(time.Minute)

	hospital := "City"
	updated, err := s.store.Update(s.ctx, req.ID, models.RequestUpdate{HospitalName: &hospital}, later)
	s.Require().NoError(err)
	s.Equal("City", updated.HospitalName)

	claimed, err := s.store.Claim(s.ctx, req.ID, models.Donor{Name: "B", Email: "b@x.com"}, later)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, claimed.Status)
	s.Require().NotNil(claimed.Donor)

	_, err = s.store.Update(s.ctx, req.ID, models.RequestUpdate{HospitalName: &hospital}, later)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.Transition(s.ctx, req.ID, models.SourcesOf(models.StatusDone), models.StatusDone, later)
	s.Require().NoError(err)

	_, err = s.store.Transition(s.ctx, req.ID, models.SourcesOf(models.StatusCancelled), models.StatusCancelled, later)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.Claim(s.ctx, id.NewDonationRequestID(), models.Donor{Name: "B", Email: "b@x.com"}, later)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryRequestStoreSuite) TestConcurrentClaimHasOneWinner() {
	req := s.seed("a@x.com", s.base)
	const goroutines = 50

	var wg sync.WaitGroup
	var wins, lost atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			donor := models.Donor{Name: fmt.Sprintf("D%d", i), Email: fmt.Sprintf("d%d@x.com", i)}
			_, err := s.store.Claim(s.ctx, req.ID, donor, s.base)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				lost.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), lost.Load())

	found, err := s.store.FindByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found.Donor)
	s.NotEmpty(found.Donor.Name)
	s.NotEmpty(found.Donor.Email)
}

func (s *InMemoryRequestStoreSuite) TestDelete() {
	req := s.seed("a@x.com", s.base)
	s.Require().NoError(s.store.Delete(s.ctx, req.ID))
	s.Require().ErrorIs(s.store.Delete(s.ctx, req.ID), sentinel.ErrNotFound)
}
