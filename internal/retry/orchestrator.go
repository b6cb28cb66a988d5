// Package retry runs inference attempts behind the shared rate limiter and
// backs off according to how each attempt failed.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"mcqsolver/mcq"
)

// Policy holds the attempt cap and backoff parameters.
type Policy struct {
	MaxAttempts int

	// Rate-limited failures wait RateLimitBase + rand*RateLimitJitter + attempt*RateLimitStep.
	RateLimitBase   time.Duration
	RateLimitJitter time.Duration
	RateLimitStep   time.Duration

	// Other retryable failures wait TransientBase + rand*TransientJitter.
	TransientBase   time.Duration
	TransientJitter time.Duration

	// OnRetry is called before every backoff wait.
	OnRetry func(ordinal, attempt int, err error, delay time.Duration)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		RateLimitBase:   5 * time.Second,
		RateLimitJitter: 5 * time.Second,
		RateLimitStep:   3 * time.Second,
		TransientBase:   time.Second,
		TransientJitter: time.Second,
	}
}

// Limiter admits one call at a time into a shared budget.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Attempt performs one inference call. attempt starts at 1.
type Attempt func(ctx context.Context, attempt int) (mcq.Answer, error)

// Orchestrator is shared by every question of a run.
type Orchestrator struct {
	limiter Limiter
	policy  Policy
	log     *zap.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

type Option func(*Orchestrator)

// WithSleep replaces the backoff wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithJitter replaces the random source; fn must return values in [0,1).
func WithJitter(fn func() float64) Option {
	return func(o *Orchestrator) { o.jitter = fn }
}

func New(limiter Limiter, policy Policy, log *zap.Logger, opts ...Option) *Orchestrator {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		limiter: limiter,
		policy:  policy,
		log:     log.With(zap.String("component", "retry")),
		sleep:   sleepContext,
		jitter:  rand.Float64,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Do runs fn until it succeeds, fails fatally or exhausts the attempt cap.
// It returns the answer, the number of attempts made and the last error.
func (o *Orchestrator) Do(ctx context.Context, ordinal int, fn Attempt) (mcq.Answer, int, error) {
	var lastErr error
	for attempt := 1; attempt <= o.policy.MaxAttempts; attempt++ {
		if o.limiter != nil {
			if err := o.limiter.Acquire(ctx); err != nil {
				return 0, attempt - 1, fmt.Errorf("acquire rate limit slot: %w", err)
			}
		}

		answer, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				o.log.Info("inference succeeded after retry", zap.Int("ordinal", ordinal), zap.Int("attempt", attempt))
			}
			return answer, attempt, nil
		}
		lastErr = err

		if !mcq.IsRetryable(err) {
			o.log.Warn("inference failed, not retryable", zap.Int("ordinal", ordinal), zap.Int("attempt", attempt), zap.Error(err))
			return 0, attempt, err
		}
		if attempt == o.policy.MaxAttempts {
			break
		}

		delay := o.Backoff(err, attempt)
		o.log.Debug("retrying inference",
			zap.Int("ordinal", ordinal),
			zap.Int("attempt", attempt),
			zap.Stringer("kind", mcq.KindOf(err)),
			zap.Duration("delay", delay),
			zap.Error(err))
		if o.policy.OnRetry != nil {
			o.policy.OnRetry(ordinal, attempt, err, delay)
		}
		if err := o.sleep(ctx, delay); err != nil {
			return 0, attempt, fmt.Errorf("retry cancelled: %w", err)
		}
	}

	o.log.Warn("inference attempts exhausted",
		zap.Int("ordinal", ordinal),
		zap.Int("attempts", o.policy.MaxAttempts),
		zap.Error(lastErr))
	return 0, o.policy.MaxAttempts, lastErr
}

// Backoff returns the wait after a failed attempt. Rate-limited failures get
// a longer delay that grows with the attempt number.
func (o *Orchestrator) Backoff(err error, attempt int) time.Duration {
	p := o.policy
	if mcq.IsRateLimited(err) {
		return p.RateLimitBase + scale(p.RateLimitJitter, o.jitter()) + time.Duration(attempt)*p.RateLimitStep
	}
	return p.TransientBase + scale(p.TransientJitter, o.jitter())
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
