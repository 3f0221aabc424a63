package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Provider is one of several equivalent implementations of an operation.
type Provider[T any] struct {
	Name string
	Call func(ctx context.Context) (T, error)
}

// ErrNoProviders is returned by Fallback when called without providers.
var ErrNoProviders = errors.New("retry: no providers configured")

// Fallback tries providers in order and returns the first success along
// with the provider name. When every provider fails the joined errors are
// returned.
func Fallback[T any](ctx context.Context, logger *slog.Logger, providers ...Provider[T]) (T, string, error) {
	var zero T
	if len(providers) == 0 {
		return zero, "", ErrNoProviders
	}

	var errs []error
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		v, err := p.Call(ctx)
		if err == nil {
			return v, p.Name, nil
		}
		logger.WarnContext(ctx, "provider failed, trying next",
			slog.String("provider", p.Name),
			slog.Any("error", err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
	}
	return zero, "", errors.Join(errs...)
}
