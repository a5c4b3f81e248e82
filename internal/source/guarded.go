package source

import (
	"context"

	"github.com/sells-group/catchment/internal/resilience"
	"github.com/sells-group/catchment/internal/spatial"
)

// Guarded runs a remote layer's queries under retry and a circuit breaker.
type Guarded struct {
	inner spatial.Querier
	guard *resilience.Guard
}

// NewGuarded wraps inner. Retries log under driver and layer.
func NewGuarded(inner spatial.Querier, driver, layer string, retry resilience.RetryConfig, breakers *resilience.Breakers) *Guarded {
	return &Guarded{
		inner: inner,
		guard: resilience.NewGuard(driver, layer, retry, breakers),
	}
}

// Query delegates to the wrapped layer.
func (g *Guarded) Query(ctx context.Context, q spatial.Query) ([]spatial.Feature, error) {
	return resilience.Call(ctx, g.guard, func(ctx context.Context) ([]spatial.Feature, error) {
		return g.inner.Query(ctx, q)
	})
}
