package pledge

import (
	"context"
	"sort"
	"sync"

	"bloodlink/internal/ledger/models"
	"bloodlink/pkg/platform/sentinel"
)

// InMemoryStore keeps pledges keyed by transaction id.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.PledgeRecord
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]models.PledgeRecord)}
}

func (s *InMemoryStore) FindByTransactionID(_ context.Context, transactionID string) (*models.PledgeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[transactionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

// InsertIfAbsent stores rec unless its transaction id is already present.
// It reports whether this call inserted the record.
func (s *InMemoryStore) InsertIfAbsent(_ context.Context, rec *models.PledgeRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.TransactionID]; exists {
		return false, nil
	}
	s.records[rec.TransactionID] = *rec
	return true, nil
}

func (s *InMemoryStore) ListByDonorEmail(_ context.Context, donorEmail string) ([]*models.PledgeRecord, error) {
	return s.collect(func(rec models.PledgeRecord) bool { return rec.DonorEmail == donorEmail }), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.PledgeRecord, error) {
	return s.collect(func(models.PledgeRecord) bool { return true }), nil
}

func (s *InMemoryStore) Total(_ context.Context) (int64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, rec := range s.records {
		total += rec.Amount
	}
	return total, len(s.records), nil
}

func (s *InMemoryStore) collect(keep func(models.PledgeRecord) bool) []*models.PledgeRecord {
	s.mu.RLock()
	out := []*models.PledgeRecord{}
	for _, rec := range s.records {
		if keep(rec) {
			rec := rec
			out = append(out, &rec)
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(records []*models.PledgeRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].RecordedAt.Equal(records[j].RecordedAt) {
			return records[i].TransactionID < records[j].TransactionID
		}
		return records[i].RecordedAt.After(records[j].RecordedAt)
	})
}
