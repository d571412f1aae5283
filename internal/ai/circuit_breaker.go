package ai

import (
	"fmt"

	"callscreen/internal/config"
	"callscreen/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// Breaker wraps one kind of oracle call with a gobreaker circuit breaker.
// A nil Breaker executes calls directly.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// AICircuitBreaker guards content generation of a single operation.
type AICircuitBreaker = Breaker[*genai.GenerateContentResponse]

// ModelCircuitBreaker guards model metadata lookups used by health checks.
type ModelCircuitBreaker = Breaker[*genai.Model]

// NewAICircuitBreaker returns nil when the operation has breaking disabled.
func NewAICircuitBreaker(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *AICircuitBreaker {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	breakerCfg := cfg.CircuitBreaker
	return newBreaker[*genai.GenerateContentResponse](
		fmt.Sprintf("AI-%s", operationType), operationType, breakerCfg,
		func(counts gobreaker.Counts) bool {
			return tripRatio(counts, breakerCfg.MinRequests, breakerCfg.FailureThreshold)
		}, logger)
}

// NewModelCircuitBreaker trips on a lenient fixed ratio, since model info
// only feeds health output.
func NewModelCircuitBreaker(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *ModelCircuitBreaker {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	return newBreaker[*genai.Model](
		fmt.Sprintf("AI-Model-%s", operationType), operationType, cfg.CircuitBreaker,
		func(counts gobreaker.Counts) bool {
			return tripRatio(counts, 5, 0.8)
		}, logger)
}

func newBreaker[T any](name, operationType string, cfg config.CircuitBreakerConfig, readyToTrip func(gobreaker.Counts) bool, logger *errors.Logger) *Breaker[T] {
	if logger == nil {
		logger = errors.Discard()
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: readyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name,
				"operation_type", operationType,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", cfg.FailureThreshold)
		},
	}
	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

func tripRatio(counts gobreaker.Counts, minRequests uint32, threshold float64) bool {
	if counts.Requests == 0 || counts.Requests < minRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= threshold
}

// Execute runs fn under breaker protection.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// GetStats returns circuit breaker statistics
func (b *Breaker[T]) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy reports whether the breaker is closed.
func (b *Breaker[T]) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
