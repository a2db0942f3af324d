// Package resilience provides fault tolerance for calendar backend calls.
package resilience

import (
	"errors"
	"time"

	"training_server/pkg/apperr"
	"training_server/pkg/logger"

	"github.com/sony/gobreaker"
)

// Errors returned while the breaker rejects calls.
var (
	ErrCircuitOpen    = gobreaker.ErrOpenState
	ErrTooManyRequest = gobreaker.ErrTooManyRequests
)

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	Name                string
	MaxHalfOpenRequests uint32        // requests allowed while half-open
	Interval            time.Duration // closed-state counter reset
	Timeout             time.Duration // open duration before half-open
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64
}

// DefaultCircuitBreakerConfig returns the settings used for Graph and EWS.
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:                name,
		MaxHalfOpenRequests: 3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.6,
	}
}

// CircuitBreaker guards one backend.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a new circuit breaker with the given config.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultCircuitBreakerConfig("default")
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures > cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
		IsSuccessful: countsAsSuccess,
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// countsAsSuccess keeps failures scoped to one caller or one item from
// tripping the breaker shared by every user.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, apperr.ErrAuthentication) ||
		errors.Is(err, apperr.ErrMappingPrecondition) ||
		apperr.IsBackendRejection(err)
}

// Name returns the circuit breaker name.
func (c *CircuitBreaker) Name() string {
	return c.cb.Name()
}

// State returns the current state as a string (closed, half-open, open).
func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}

// Execute runs fn with circuit breaker protection.
func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// IsOpen reports whether err came from a rejected call.
func IsOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequest)
}
