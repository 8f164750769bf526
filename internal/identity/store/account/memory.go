package account

import (
	"context"
	"sort"
	"sync"
	"time"

	"bloodlink/internal/identity/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// InMemoryStore keeps accounts in a map guarded by a RWMutex. Email uniqueness is
// enforced through a secondary index.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.AccountID]*models.Account
	byEmail map[string]id.AccountID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.AccountID]*models.Account),
		byEmail: make(map[string]id.AccountID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[account.Email]; exists {
		return sentinel.ErrAlreadyUsed
	}
	stored := *account
	s.byID[account.ID] = &stored
	s.byEmail[account.Email] = account.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byID[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[accountID]
	return &cp, nil
}

// List returns matching accounts, newest first.
func (s *InMemoryStore) List(_ context.Context, filter models.AccountFilter) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Account, 0, len(s.byID))
	for _, acc := range s.byID {
		if filter.Email != "" && acc.Email != filter.Email {
			continue
		}
		cp := *acc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) UpdateProfile(_ context.Context, accountID id.AccountID, update models.ProfileUpdate, now time.Time) (*models.Account, error) {
	return s.mutate(accountID, func(acc *models.Account) {
		update.Apply(acc, now)
	})
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, accountID id.AccountID, status models.AccountStatus, now time.Time) (*models.Account, error) {
	return s.mutate(accountID, func(acc *models.Account) {
		acc.Status = status
		acc.UpdatedAt = now
	})
}

func (s *InMemoryStore) UpdateRole(_ context.Context, accountID id.AccountID, role models.Role, now time.Time) (*models.Account, error) {
	return s.mutate(accountID, func(acc *models.Account) {
		acc.Role = role
		acc.UpdatedAt = now
	})
}

func (s *InMemoryStore) mutate(accountID id.AccountID, fn func(*models.Account)) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	fn(acc)
	cp := *acc
	return &cp, nil
}
