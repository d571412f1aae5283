package ai

import (
	"context"

	"callscreen/internal/observability"
	"callscreen/internal/types"
)

// TokenUsage is reported by every provider call; callers may ignore it.
type TokenUsage = observability.TokenUsage

// AIProvider is a language model backend. One provider instance serves one
// operation with that operation's configuration.
type AIProvider interface {
	ExtractProfile(ctx context.Context, doc types.Document) (types.ExtractedProfile, *TokenUsage, error)
	GenerateText(ctx context.Context, content string) (string, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	GetCircuitBreakerStats() map[string]any
	Close() error
}
