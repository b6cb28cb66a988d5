package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances itself by the requested duration whenever a caller waits.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestWindowDelaysRequestBeyondLimit(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	var observed []time.Duration
	w := New(Config{Limit: 3, Window: time.Minute, Buffer: time.Second},
		WithClock(clock), WithObserver(func(d time.Duration) { observed = append(observed, d) }))

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Acquire(context.Background()))
	}
	assert.Empty(t, clock.waits)
	assert.Equal(t, 3, w.InFlight())

	require.NoError(t, w.Acquire(context.Background()))
	require.Len(t, clock.waits, 1)
	assert.Equal(t, time.Minute+time.Second, clock.waits[0])
	assert.Equal(t, observed, clock.waits)
	assert.False(t, clock.Now().Before(start.Add(time.Minute)))
	// the three original admissions have left the window
	assert.Equal(t, 1, w.InFlight())
}

func TestWindowWaitsOnlyForOldest(t *testing.T) {
	clock := newFakeClock()
	w := New(Config{Limit: 2, Window: time.Minute}, WithClock(clock))

	require.NoError(t, w.Acquire(context.Background()))
	clock.Advance(40 * time.Second)
	require.NoError(t, w.Acquire(context.Background()))

	require.NoError(t, w.Acquire(context.Background()))
	require.Len(t, clock.waits, 1)
	assert.Equal(t, 20*time.Second, clock.waits[0])
	assert.Equal(t, 2, w.InFlight())
}

func TestWindowConcurrentAdmissions(t *testing.T) {
	clock := newFakeClock()
	w := New(Config{Limit: 4, Window: time.Minute}, WithClock(clock))

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Acquire(context.Background()))
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, w.InFlight(), 4)
	assert.NotEmpty(t, clock.waits)
}

type stuckClock struct{ now time.Time }

func (c stuckClock) Now() time.Time                       { return c.now }
func (c stuckClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

func TestWindowAcquireHonoursContext(t *testing.T) {
	w := New(Config{Limit: 1, Window: time.Minute}, WithClock(stuckClock{now: time.Now()}))
	require.NoError(t, w.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Acquire(ctx), context.DeadlineExceeded)
}

func TestNewAppliesDefaults(t *testing.T) {
	w := New(Config{})
	for i := 0; i < 10; i++ {
		require.NoError(t, w.Acquire(context.Background()))
	}
	assert.Equal(t, 10, w.InFlight())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Acquire(ctx), context.DeadlineExceeded, "eleventh admission waits for the window")
}
