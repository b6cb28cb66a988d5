// Package ratelimit bounds inference call issuance with a rolling time window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock abstracts time so tests can drive the window.
type Clock interface {
	Now() time.Time
	// After behaves like time.After.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Config configures a Window limiter.
type Config struct {
	// Limit is the number of admissions allowed per Window.
	Limit  int
	Window time.Duration
	// Buffer is added to the computed wait so a retried admission lands
	// safely after the oldest timestamp expires.
	Buffer time.Duration
}

func DefaultConfig() Config {
	return Config{Limit: 10, Window: time.Minute, Buffer: time.Second}
}

// Observer is notified of every wait the limiter imposes.
type Observer func(wait time.Duration)

// Window admits at most Limit callers in any rolling Window. It is safe for
// concurrent use; admission decisions are serialized by one mutex.
type Window struct {
	cfg    Config
	clock  Clock
	log    *zap.Logger
	onWait Observer

	mu         sync.Mutex
	timestamps []time.Time
}

// Option customizes a Window.
type Option func(*Window)

func WithClock(c Clock) Option { return func(w *Window) { w.clock = c } }

func WithLogger(l *zap.Logger) Option {
	return func(w *Window) {
		if l != nil {
			w.log = l
		}
	}
}

func WithObserver(o Observer) Option { return func(w *Window) { w.onWait = o } }

func New(cfg Config, opts ...Option) *Window {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	w := &Window{cfg: cfg, clock: realClock{}, log: zap.NewNop()}
	for _, o := range opts {
		o(w)
	}
	w.log = w.log.With(zap.String("component", "ratelimit"))
	return w
}

// Acquire blocks until a slot is free and records the admission.
func (w *Window) Acquire(ctx context.Context) error {
	for {
		wait, ok := w.tryAcquire()
		if ok {
			return nil
		}
		w.log.Debug("rate limit reached, waiting",
			zap.Int("limit", w.cfg.Limit),
			zap.Duration("wait", wait))
		if w.onWait != nil {
			w.onWait(wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(wait):
		}
	}
}

// tryAcquire evicts expired timestamps and admits when below the limit.
// Otherwise it returns how long to wait before checking again.
func (w *Window) tryAcquire() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.evict(now)
	if len(w.timestamps) < w.cfg.Limit {
		w.timestamps = append(w.timestamps, now)
		return 0, true
	}
	wait := w.timestamps[0].Add(w.cfg.Window).Sub(now) + w.cfg.Buffer
	if wait <= 0 {
		wait = w.cfg.Buffer
	}
	return wait, false
}

func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.cfg.Window)
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}
}

// InFlight returns the number of admissions inside the current window.
func (w *Window) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(w.clock.Now())
	return len(w.timestamps)
}
