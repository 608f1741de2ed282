package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Policy bounds the attempts and waits around one remote call.
type Policy struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration
	Multiplier  float64

	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

var (
	Default          = Policy{MaxAttempts: 3, MinWait: 1 * time.Second, MaxWait: 10 * time.Second, Multiplier: 1}
	ScriptGeneration = Policy{MaxAttempts: 3, MinWait: 2 * time.Second, MaxWait: 30 * time.Second, Multiplier: 1}
	ImageGeneration  = Policy{MaxAttempts: 3, MinWait: 2 * time.Second, MaxWait: 10 * time.Second, Multiplier: 1}
)

// Backoff returns the wait after the given failed attempt (1-based):
// multiplier * 2^(attempt-1) seconds, clamped to [MinWait, MaxWait].
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	secs := mult * math.Pow(2, float64(attempt-1))
	d := time.Duration(secs * float64(time.Second))
	if secs > float64(math.MaxInt64/int64(time.Second)) {
		d = p.MaxWait
	}
	if d < p.MinWait {
		d = p.MinWait
	}
	if p.MaxWait > 0 && d > p.MaxWait {
		d = p.MaxWait
	}
	return d
}

// ExhaustedError is returned when every attempt failed with a transient error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do runs fn until it succeeds, fails permanently, or the attempt cap is hit.
func Do(ctx context.Context, p Policy, log *zap.Logger, op string, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, log, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for calls that return a result.
func Value[T any](ctx context.Context, p Policy, log *zap.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if log == nil {
		log = zap.NewNop()
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var zero T
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		last = err

		kind := Classify(err)
		if !kind.Transient() {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		log.Warn("retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Stringer("kind", kind),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: last}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
