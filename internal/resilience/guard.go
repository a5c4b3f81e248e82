package resilience

import (
	"context"
	"errors"
)

// Guard retries a layer's calls through that layer's circuit breaker. A call
// rejected by an open breaker is not retried.
type Guard struct {
	Retry   RetryConfig
	Breaker *CircuitBreaker
}

// NewGuard creates a Guard for one layer, logging retries under source.
func NewGuard(source, layer string, retry RetryConfig, breakers *Breakers) *Guard {
	if retry.OnRetry == nil {
		retry.OnRetry = RetryLogger(source, layer)
	}
	return &Guard{Retry: retry, Breaker: breakers.For(layer)}
}

// Call runs fn under g.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	retry := g.Retry
	base := retry.ShouldRetry
	if base == nil {
		base = IsTransient
	}
	retry.ShouldRetry = func(err error) bool {
		return !errors.Is(err, ErrCircuitOpen) && base(err)
	}
	return DoVal(ctx, retry, func(ctx context.Context) (T, error) {
		return ExecuteVal(ctx, g.Breaker, fn)
	})
}
