package request

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"bloodlink/internal/donation/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// InMemoryStore holds donation requests in a map. Every conditional update checks and
// mutates under the write lock so concurrent claims serialize.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.DonationRequestID]*models.DonationRequest
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.DonationRequestID]*models.DonationRequest)}
}

func (s *InMemoryStore) Create(_ context.Context, req *models.DonationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.requests[req.ID] = clone(req)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, requestID id.DonationRequestID) (*models.DonationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(req), nil
}

// List returns matching requests newest first, windowed by Limit and Offset.
func (s *InMemoryStore) List(_ context.Context, filter models.RequestFilter) ([]*models.DonationRequest, error) {
	s.mu.RLock()
	matched := s.match(filter)
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if filter.Offset >= len(matched) {
		return []*models.DonationRequest{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *InMemoryStore) Count(_ context.Context, filter models.RequestFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(filter)), nil
}

// Update applies u only while the request is pending.
func (s *InMemoryStore) Update(_ context.Context, requestID id.DonationRequestID, u models.RequestUpdate, now time.Time) (*models.DonationRequest, error) {
	return s.conditional(requestID, []models.Status{models.StatusPending}, func(req *models.DonationRequest) {
		req.ApplyEdit(u, now)
	})
}

// Claim stamps the donor and moves pending to inprogress in one locked step.
func (s *InMemoryStore) Claim(_ context.Context, requestID id.DonationRequestID, donor models.Donor, now time.Time) (*models.DonationRequest, error) {
	return s.conditional(requestID, []models.Status{models.StatusPending}, func(req *models.DonationRequest) {
		req.ApplyClaim(donor, now)
	})
}

// Transition moves the request to `to` when its current status is one of `from`.
func (s *InMemoryStore) Transition(_ context.Context, requestID id.DonationRequestID, from []models.Status, to models.Status, now time.Time) (*models.DonationRequest, error) {
	return s.conditional(requestID, from, func(req *models.DonationRequest) {
		req.ApplyTransition(to, now)
	})
}

func (s *InMemoryStore) Delete(_ context.Context, requestID id.DonationRequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[requestID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.requests, requestID)
	return nil
}

func (s *InMemoryStore) conditional(requestID id.DonationRequestID, from []models.Status, fn func(*models.DonationRequest)) (*models.DonationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !slices.Contains(from, req.Status) {
		return nil, sentinel.ErrInvalidState
	}
	fn(req)
	return clone(req), nil
}

// match must be called with the lock held.
func (s *InMemoryStore) match(filter models.RequestFilter) []*models.DonationRequest {
	var out []*models.DonationRequest
	for _, req := range s.requests {
		if filter.RequesterEmail != "" && req.RequesterEmail != filter.RequesterEmail {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, req.Status) {
			continue
		}
		out = append(out, clone(req))
	}
	return out
}

func clone(req *models.DonationRequest) *models.DonationRequest {
	cp := *req
	if req.Donor != nil {
		donor := *req.Donor
		cp.Donor = &donor
	}
	return &cp
}
