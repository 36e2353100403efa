package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails, has an
// open circuit breaker, or the group is empty.
var ErrAllFailed = errors.New("all providers failed")

// errNoProviders is the cause reported for an empty group.
var errNoProviders = errors.New("no providers configured")

// Attempt describes one try against one group entry. It is passed to
// [FallbackConfig.OnAttempt] after the try completes.
type Attempt struct {
	// Provider is the entry name.
	Provider string

	// Err is the attempt's error, nil on success.
	Err error

	// Skipped is true when the entry's breaker was open and fn never ran.
	Skipped bool

	// Duration is the wall time spent in fn. Zero when Skipped.
	Duration time.Duration
}

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for each entry's breaker. Name is
	// overwritten with the entry name.
	CircuitBreaker CircuitBreakerConfig

	// AttemptTimeout bounds each individual attempt. Zero means the attempt
	// only inherits the caller's deadline.
	AttemptTimeout time.Duration

	// OnAttempt, if set, observes every attempt in order.
	OnAttempt func(Attempt)
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup is an ordered list of instances of one provider type. Entries
// are tried in registration order until one succeeds; each attempt is isolated
// by its own deadline so a hung entry cannot consume the next entry's budget.
//
// Entries must be registered before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates an empty group.
func NewFallbackGroup[T any](cfg FallbackConfig) *FallbackGroup[T] {
	return &FallbackGroup[T]{cfg: cfg}
}

// Add appends an entry. The first entry added is the primary.
func (fg *FallbackGroup[T]) Add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Len returns the number of registered entries.
func (fg *FallbackGroup[T]) Len() int { return len(fg.entries) }

// Names returns the entry names in try order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Breaker returns the circuit breaker of the named entry, or nil.
func (fg *FallbackGroup[T]) Breaker(name string) *CircuitBreaker {
	for _, e := range fg.entries {
		if e.name == name {
			return e.breaker
		}
	}
	return nil
}

// Execute tries fn against each entry in order until one succeeds.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(context.Context, T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(ctx context.Context, v T) (struct{}, error) {
		return struct{}{}, fn(ctx, v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry in order until one succeeds and
// returns its result. Every entry is tried at most once. Open breakers are
// skipped except on the last entry, which is always attempted so a recovered
// last resort is never locked out. When all entries fail
// the returned error wraps [ErrAllFailed] and carries the last cause. A
// cancelled ctx stops the walk early.
//
// This is a package-level function because Go methods cannot declare type
// parameters.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var zero R
	lastErr := errNoProviders

	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%w: %w", ErrAllFailed, err)
		}
		entry := &fg.entries[i]

		var (
			result R
			start  time.Time
		)
		run := func() error {
			attemptCtx, cancel := fg.attemptContext(ctx)
			defer cancel()
			start = time.Now()
			var innerErr error
			result, innerErr = fn(attemptCtx, entry.value)
			return innerErr
		}
		var err error
		if i == len(fg.entries)-1 {
			err = entry.breaker.Force(run)
		} else {
			err = entry.breaker.Execute(run)
		}

		attempt := Attempt{Provider: entry.name, Err: err}
		if errors.Is(err, ErrCircuitOpen) && start.IsZero() {
			attempt.Skipped = true
		} else {
			attempt.Duration = time.Since(start)
		}
		if fg.cfg.OnAttempt != nil {
			fg.cfg.OnAttempt(attempt)
		}

		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt.Skipped {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

func (fg *FallbackGroup[T]) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if fg.cfg.AttemptTimeout > 0 {
		return context.WithTimeout(ctx, fg.cfg.AttemptTimeout)
	}
	return context.WithCancel(ctx)
}
