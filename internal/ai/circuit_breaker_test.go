package ai

import (
	"errors"
	"testing"
	"time"

	"callscreen/internal/config"

	"google.golang.org/genai"
)

func breakerConfig(minRequests uint32, threshold float64) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider: "gemini",
		Model:    "test-model",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			MinRequests:      minRequests,
			FailureThreshold: threshold,
		},
	}
}

func TestIndependentCircuitBreakers(t *testing.T) {
	extractCB := NewAICircuitBreaker("extract", breakerConfig(3, 0.6), nil)
	interviewCB := NewAICircuitBreaker("interview", breakerConfig(2, 0.5), nil)
	reportCB := NewAICircuitBreaker("report", breakerConfig(3, 0.6), nil)

	tests := []struct {
		name string
		cb   *AICircuitBreaker
		want string
	}{
		{"extract", extractCB, "AI-extract"},
		{"interview", interviewCB, "AI-interview"},
		{"report", reportCB, "AI-report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := tt.cb.GetStats()
			if name, _ := stats["name"].(string); name != tt.want {
				t.Errorf("name = %q, want %q", name, tt.want)
			}
			if state, _ := stats["state"].(string); state != "closed" {
				t.Errorf("initial state = %q, want closed", state)
			}
			if !tt.cb.IsHealthy() {
				t.Error("breaker should start healthy")
			}
		})
	}

	t.Run("TrippingOneLeavesOthersClosed", func(t *testing.T) {
		boom := errors.New("upstream unavailable")
		for i := 0; i < 2; i++ {
			_, _ = interviewCB.Execute(func() (*genai.GenerateContentResponse, error) {
				return nil, boom
			})
		}
		if interviewCB.IsHealthy() {
			t.Error("interview breaker should be open after repeated failures")
		}
		if !extractCB.IsHealthy() || !reportCB.IsHealthy() {
			t.Error("other breakers must stay closed")
		}
	})
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cfg := &config.OperationAIConfig{CircuitBreaker: config.CircuitBreakerConfig{Enabled: false}}

	cb := NewAICircuitBreaker("disabled", cfg, nil)
	if cb != nil {
		t.Fatal("breaker should be nil when disabled")
	}

	called := false
	if _, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		called = true
		return nil, nil
	}); err != nil {
		t.Fatalf("nil breaker Execute() error = %v", err)
	}
	if !called {
		t.Error("nil breaker must run the call directly")
	}
	if enabled, _ := cb.GetStats()["enabled"].(bool); enabled {
		t.Error("nil breaker should report enabled=false")
	}
	if !cb.IsHealthy() {
		t.Error("nil breaker should report healthy")
	}
}

func TestModelCircuitBreakerIsLenient(t *testing.T) {
	cb := NewModelCircuitBreaker("interview", breakerConfig(1, 0.1), nil)
	boom := errors.New("not found")
	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (*genai.Model, error) { return nil, boom })
	}
	if !cb.IsHealthy() {
		t.Error("model breaker should need at least 5 requests before tripping")
	}
	_, _ = cb.Execute(func() (*genai.Model, error) { return nil, boom })
	if cb.IsHealthy() {
		t.Error("model breaker should trip after 5 failures")
	}
}
