// Package poll waits on long-running external jobs.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned when the wall-clock budget runs out.
	ErrTimeout = errors.New("poll: timed out")
	// ErrAttemptsExhausted is returned when MaxAttempts checks did not reach a terminal state.
	ErrAttemptsExhausted = errors.New("poll: attempts exhausted")
)

// SleepFunc pauses between attempts.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config bounds a polling loop.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
	// Timeout caps the whole loop; zero means only MaxAttempts applies.
	Timeout time.Duration
	Sleep   SleepFunc
}

// Until sleeps Interval, calls check and stops as soon as done reports a
// terminal value. Errors from check are final. The last observed value is
// returned with ErrAttemptsExhausted or ErrTimeout.
func Until[T any](ctx context.Context, cfg Config, check func(context.Context) (T, error), done func(T) bool) (T, error) {
	var last T
	if cfg.MaxAttempts <= 0 {
		return last, fmt.Errorf("%w: max attempts must be positive", ErrAttemptsExhausted)
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := sleep(ctx, cfg.Interval); err != nil {
			return last, wrapContext(err)
		}
		value, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return last, wrapContext(err)
			}
			return value, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		last = value
		if done(value) {
			return value, nil
		}
	}
	return last, fmt.Errorf("%w after %d attempts", ErrAttemptsExhausted, cfg.MaxAttempts)
}

// StatusIn builds a done predicate that matches any of the terminal states.
func StatusIn[T any, S comparable](status func(T) S, terminal ...S) func(T) bool {
	set := make(map[S]struct{}, len(terminal))
	for _, s := range terminal {
		set[s] = struct{}{}
	}
	return func(v T) bool {
		_, ok := set[status(v)]
		return ok
	}
}

func wrapContext(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
