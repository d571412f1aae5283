package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"callscreen/internal/config"
	"callscreen/internal/errors"
	"callscreen/internal/observability"
	"callscreen/internal/types"
)

// Service runs one oracle operation: it bounds each call by the operation
// timeout, records metrics and maps failures onto AppError codes.
type Service struct {
	Provider  AIProvider
	operation config.Operation
	timeout   time.Duration
	logger    *errors.Logger
	obs       *observability.ObservabilityManager
}

// NewService creates the service for one operation. obs may be nil.
func NewService(cfg *config.OperationAIConfig, op config.Operation, logger *errors.Logger, obs *observability.ObservabilityManager) (*Service, error) {
	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"operation_type", op,
		"model", cfg.Model)

	var provider AIProvider
	var err error
	switch cfg.Provider {
	case "gemini":
		httpClient := &http.Client{Transport: obs.HTTPTransport(http.DefaultTransport)}
		provider, err = NewGeminiProvider(cfg, op, httpClient, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed,
			"Failed to create AI provider", err)
	}

	return NewServiceWithProvider(provider, op, derefTimeout(cfg.Timeout), logger, obs), nil
}

// NewServiceWithProvider wraps an existing provider.
func NewServiceWithProvider(provider AIProvider, op config.Operation, timeout time.Duration, logger *errors.Logger, obs *observability.ObservabilityManager) *Service {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Service{
		Provider:  provider,
		operation: op,
		timeout:   timeout,
		logger:    logger,
		obs:       obs,
	}
}

// Extract returns the structured profile of a résumé.
func (s *Service) Extract(ctx context.Context, doc types.Document) (types.ExtractedProfile, error) {
	var profile types.ExtractedProfile
	err := s.run(ctx, func(ctx context.Context) (*TokenUsage, error) {
		var usage *TokenUsage
		var err error
		profile, usage, err = s.Provider.ExtractProfile(ctx, doc)
		return usage, err
	})
	return profile, err
}

// Generate returns the interviewer's next line for a fully built prompt.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	return s.text(ctx, prompt)
}

// Report returns a markdown evaluation of a rendered transcript.
func (s *Service) Report(ctx context.Context, transcript string) (string, error) {
	return s.text(ctx, transcript)
}

// GetModelInfo returns information about the AI model for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// CircuitBreakerStats reports the provider's breaker states.
func (s *Service) CircuitBreakerStats() map[string]any {
	return s.Provider.GetCircuitBreakerStats()
}

// Close releases the provider.
func (s *Service) Close() error {
	return s.Provider.Close()
}

func (s *Service) text(ctx context.Context, content string) (string, error) {
	var out string
	err := s.run(ctx, func(ctx context.Context) (*TokenUsage, error) {
		var usage *TokenUsage
		var err error
		out, usage, err = s.Provider.GenerateText(ctx, content)
		return usage, err
	})
	return out, err
}

func (s *Service) run(ctx context.Context, call func(context.Context) (*TokenUsage, error)) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := s.obs.GetMetrics().TrackAIOperationWithTokens(ctx, string(s.operation), func(ctx context.Context) *observability.AIOperationResult {
		usage, err := call(ctx)
		return &observability.AIOperationResult{Error: err, TokenUsage: usage}
	}, s.obs)
	if err == nil {
		return nil
	}

	appErr := s.classify(ctx, err)
	s.logger.LogError(appErr, "AI operation failed", "operation", s.operation)
	return appErr
}

// classify maps a provider failure to an oracle error code.
func (s *Service) classify(ctx context.Context, err error) *errors.AppError {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewAIError(errors.ErrCodeAITimeout,
			fmt.Sprintf("%s timed out after %s", s.operation, s.timeout), err)
	}
	if appErr, ok := errors.As(err); ok && appErr.Type == errors.ErrorTypeAI {
		return appErr
	}
	return errors.NewAIError(errors.ErrCodeAIServiceFailed,
		fmt.Sprintf("Failed to generate content for %s", s.operation), err)
}

func derefTimeout(d *time.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return *d
}
