package consumer

import (
	"hash/fnv"
	"math"
	"sync"
	"time"

	audit "bloodlink/pkg/platform/audit"
)

// Sampler keeps a fraction of operations events. The decision is a hash of the event's
// identity, so a record redelivered after a failed commit is kept or dropped the same way.
type Sampler struct {
	mu          sync.RWMutex
	defaultRate float64
	byAction    map[string]float64
}

// NewSampler keeps defaultRate of events, clamped to [0, 1].
func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{defaultRate: clampRate(defaultRate), byAction: map[string]float64{}}
}

// SetRate overrides the rate for one action.
func (s *Sampler) SetRate(action string, rate float64) {
	s.mu.Lock()
	s.byAction[action] = clampRate(rate)
	s.mu.Unlock()
}

// Keep reports whether event falls inside its action's rate.
func (s *Sampler) Keep(event audit.Event) bool {
	rate := s.rateFor(event.Action)
	switch rate {
	case 0:
		return false
	case 1:
		return true
	}
	return bucket(event) < rate
}

func (s *Sampler) rateFor(action string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rate, ok := s.byAction[action]; ok {
		return rate
	}
	return s.defaultRate
}

// bucket maps an event onto [0, 1).
func bucket(event audit.Event) float64 {
	h := fnv.New64a()
	for _, part := range []string{event.Action, event.Subject, event.RequestID, event.Timestamp.UTC().Format(time.RFC3339Nano)} {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	return float64(h.Sum64()>>11) / float64(uint64(1)<<53)
}

func clampRate(rate float64) float64 {
	if math.IsNaN(rate) {
		return 0
	}
	return math.Min(1, math.Max(0, rate))
}
