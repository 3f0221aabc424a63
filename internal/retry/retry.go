// Package retry runs retryable operations with bounded linear backoff and
// falls back across equivalent providers.
//
// Retries are only allowed for operations guarded by an idempotency key: the
// key is checked against the store before every attempt, so an attempt whose
// effect landed but whose response was lost is never repeated.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/jkaninda/soko/internal/apierr"
)

// DefaultMaxRetries bounds the number of retries after the first attempt.
const DefaultMaxRetries = 3

// ErrNoIdempotencyKey is returned when a retry is requested for an operation
// without a dedup key or lookup.
var ErrNoIdempotencyKey = errors.New("retry: operation has no idempotency key")

// Config configures the wrapper.
type Config struct {
	MaxRetries  int           // retries after the first attempt; 0 = DefaultMaxRetries
	BackoffUnit time.Duration // wait before retry n is n*BackoffUnit
}

// Wrapper executes operations with bounded retries.
type Wrapper struct {
	maxRetries uint64
	unit       time.Duration
	logger     *slog.Logger
}

// New creates a Wrapper.
func New(cfg Config, logger *slog.Logger) *Wrapper {
	n := cfg.MaxRetries
	if n <= 0 {
		n = DefaultMaxRetries
	}
	unit := cfg.BackoffUnit
	if unit <= 0 {
		unit = 500 * time.Millisecond
	}
	return &Wrapper{maxRetries: uint64(n), unit: unit, logger: logger}
}

// Idempotent is an operation guarded by a dedup key.
type Idempotent[T any] struct {
	Name string
	Key  string
	// Existing reports the result of an earlier successful attempt for Key.
	Existing func(ctx context.Context) (T, bool, error)
	// Attempt performs the operation once.
	Attempt func(ctx context.Context) (T, error)
}

// Linear returns a backoff that waits attempt*unit before each retry.
func Linear(unit time.Duration) goretry.Backoff {
	var attempt int64
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * unit, false
	})
}

// Run executes op, retrying transient failures. The idempotency lookup runs
// before every attempt including the first. After the last retry the final
// failure is returned.
func Run[T any](ctx context.Context, w *Wrapper, op Idempotent[T]) (T, error) {
	var result T
	if op.Key == "" || op.Existing == nil {
		return result, ErrNoIdempotencyKey
	}

	attempt := 0
	backoff := goretry.WithMaxRetries(w.maxRetries, Linear(w.unit))
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		prev, found, err := op.Existing(ctx)
		if err != nil {
			return w.classify(ctx, op.Name, attempt, fmt.Errorf("idempotency lookup: %w", err))
		}
		if found {
			result = prev
			return nil
		}

		v, err := op.Attempt(ctx)
		if err != nil {
			return w.classify(ctx, op.Name, attempt, err)
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (w *Wrapper) classify(ctx context.Context, name string, attempt int, err error) error {
	if !Retryable(err) {
		return err
	}
	w.logger.WarnContext(ctx, "attempt failed",
		slog.String("operation", name),
		slog.Int("attempt", attempt),
		slog.Any("error", err),
	)
	return goretry.RetryableError(err)
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retryable reports whether err may succeed on a later attempt. Permanent
// errors, context cancellation, and classified client errors are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Kind == apierr.KindInternal || ae.Kind == apierr.KindUpstream
	}
	return true
}
