package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(opts ...Option) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2030, 1, 15, 10, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithCooldown(10 * time.Second)}, opts...)
	return New("processor", opts...), clock
}

func TestBreakerDefaults(t *testing.T) {
	b := New("processor")

	assert.Equal(t, "processor", b.Name())
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		fallback, change := b.RecordFailure()
		require.False(t, fallback, "failure %d", i+1)
		require.False(t, change.Opened)
	}
	fallback, change := b.RecordFailure()

	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())
	assert.False(t, b.Allow())
}

func TestBreakerInterleavedSuccessKeepsItClosed(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	_, change := b.RecordFailure()

	assert.False(t, change.Opened)
	assert.False(t, b.IsOpen())
}

func TestBreakerCooldownAdmitsProbe(t *testing.T) {
	b, clock := newTestBreaker(WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	clock.Advance(9 * time.Second)
	assert.False(t, b.Allow(), "still cooling down")

	clock.Advance(time.Second)
	assert.True(t, b.Allow(), "probe admitted after cooldown")

	t.Run("failed probe restarts the cooldown", func(t *testing.T) {
		fallback, change := b.RecordFailure()
		assert.True(t, fallback)
		assert.False(t, change.Opened, "already open")
		assert.False(t, b.Allow())
		clock.Advance(10 * time.Second)
		assert.True(t, b.Allow())
	})

	t.Run("enough successful probes close it", func(t *testing.T) {
		primary, change := b.RecordSuccess()
		assert.False(t, primary)
		assert.False(t, change.Closed)

		primary, change = b.RecordSuccess()
		assert.True(t, primary)
		assert.True(t, change.Closed)
		assert.Equal(t, StateClosed, b.State())
	})
}

func TestBreakerReset(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()

	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
}

func TestBreakerIgnoresNonPositiveOptions(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(0), WithSuccessThreshold(-1))

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen(), "default threshold of five applies")
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreakerConcurrentRecording(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(1000))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			if fail {
				b.RecordFailure()
			} else {
				b.RecordSuccess()
			}
			_ = b.Allow()
		}(i%2 == 0)
	}
	wg.Wait()

	assert.False(t, b.IsOpen())
}
