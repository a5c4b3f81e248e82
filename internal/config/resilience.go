package config

import (
	"time"

	"github.com/sells-group/catchment/internal/resilience"
)

// Policy returns the retry policy these settings describe. Unset or
// non-positive values fall back to resilience.DefaultRetryConfig; a negative
// jitter keeps the default spread while zero turns jitter off.
func (r RetryConfig) Policy() resilience.RetryConfig {
	p := resilience.DefaultRetryConfig()
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(r.InitialBackoffMs) * time.Millisecond
	}
	if r.MaxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(r.MaxBackoffMs) * time.Millisecond
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if r.Multiplier >= 1 {
		p.Multiplier = r.Multiplier
	}
	if r.Jitter >= 0 {
		p.JitterFraction = min(r.Jitter, 1)
	}
	return p
}

// Breaker returns the circuit breaker settings for remote layers. Only
// transient failures count toward tripping.
func (c CircuitConfig) Breaker() resilience.CircuitBreakerConfig {
	b := resilience.DefaultCircuitBreakerConfig()
	if c.FailureThreshold > 0 {
		b.FailureThreshold = c.FailureThreshold
	}
	if c.ResetTimeoutSecs > 0 {
		b.ResetTimeout = time.Duration(c.ResetTimeoutSecs) * time.Second
	}
	b.ShouldTrip = resilience.IsTransient
	return b
}
