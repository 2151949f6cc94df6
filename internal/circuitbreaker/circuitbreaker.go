// Package circuitbreaker wraps github.com/sony/gobreaker/v2 with a small
// generic helper so call sites don't repeat gobreaker.Settings wiring.
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards a flaky operation returning a value of type T,
// tripping open after a run of consecutive failures and shedding further
// attempts until a cooldown elapses.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// Config controls trip/reset behavior.
type Config struct {
	Name                 string
	MaxConsecutiveFails  uint32
	OpenTimeout          time.Duration
	HalfOpenMaxRequests  uint32
}

// New builds a CircuitBreaker that opens after Config.MaxConsecutiveFails
// consecutive failures and stays open for Config.OpenTimeout before
// allowing a probe request through.
func New[T any](cfg Config) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxConsecutiveFails
		},
	}
	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn if the breaker is closed or half-open, else returns
// gobreaker.ErrOpenState immediately without invoking fn.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	return c.cb.Execute(fn)
}

// State returns the current breaker state (closed, half-open, open).
func (c *CircuitBreaker[T]) State() gobreaker.State {
	return c.cb.State()
}
