package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Business metric types accepted by RecordBusinessMetric.
const (
	MetricResumeScored      = "resume_scored"
	MetricAdmissionDecided  = "admission_decided"
	MetricCallPlaced        = "call_placed"
	MetricSessionFinalized  = "session_finalized"
	MetricReportSent        = "report_sent"
	MetricApplicationFiled  = "application_filed"
	MetricRateLimitHit      = "rate_limit_hit"
	MetricTranscriptWritten = "transcript_written"
)

// Metrics holds all custom metrics
type Metrics struct {
	// AI operation metrics
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram

	// Business metrics
	ResumesScored      metric.Int64Counter
	ScoreDistribution  metric.Float64Histogram
	AdmissionDecisions metric.Int64Counter
	CallsPlaced        metric.Int64Counter
	SessionsFinalized  metric.Int64Counter
	ReportsSent        metric.Int64Counter
	ApplicationsFiled  metric.Int64Counter
	TranscriptsWritten metric.Int64Counter

	// Infrastructure metrics
	ActiveSessions metric.Int64UpDownCounter
	RateLimitHits  metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.AIProcessingTime, err = meter.Float64Histogram(
		"callscreen_ai_processing_duration_seconds",
		metric.WithDescription("Time spent waiting on language model oracles"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI processing time metric: %w", err)
	}
	if m.AIRequestCount, err = meter.Int64Counter(
		"callscreen_ai_requests_total",
		metric.WithDescription("Total number of oracle requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI request count metric: %w", err)
	}
	if m.AIErrorCount, err = meter.Int64Counter(
		"callscreen_ai_errors_total",
		metric.WithDescription("Total number of failed oracle requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI error count metric: %w", err)
	}
	if m.AITokenUsage, err = meter.Int64Histogram(
		"callscreen_ai_token_usage",
		metric.WithDescription("Token usage for oracle requests (input, output, total)"),
		metric.WithUnit("tokens"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.ResumesScored, "callscreen_resumes_scored_total", "Total number of résumés scored"},
		{&m.AdmissionDecisions, "callscreen_admission_decisions_total", "Admission gate decisions"},
		{&m.CallsPlaced, "callscreen_calls_placed_total", "Outbound screening calls attempted"},
		{&m.SessionsFinalized, "callscreen_sessions_finalized_total", "Call sessions finalized by terminal state"},
		{&m.ReportsSent, "callscreen_reports_sent_total", "HR reports delivered"},
		{&m.ApplicationsFiled, "callscreen_applications_total", "Applications received"},
		{&m.TranscriptsWritten, "callscreen_transcripts_written_total", "Transcript records appended"},
		{&m.RateLimitHits, "callscreen_rate_limit_hits_total", "Total number of rate limit hits"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s metric: %w", c.name, err)
		}
		*c.target = counter
	}

	if m.ScoreDistribution, err = meter.Float64Histogram(
		"callscreen_resume_score",
		metric.WithDescription("Distribution of résumé scores"),
		metric.WithExplicitBucketBoundaries(5, 10, 15, 20, 25, 30, 35, 40, 45, 50),
	); err != nil {
		return nil, fmt.Errorf("failed to create score distribution metric: %w", err)
	}
	if m.ActiveSessions, err = meter.Int64UpDownCounter(
		"callscreen_active_sessions",
		metric.WithDescription("Call sessions currently held in memory"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active sessions metric: %w", err)
	}

	return m, nil
}

// AIOperationResult holds the result of an AI operation including token usage
type AIOperationResult struct {
	Error      error
	TokenUsage *TokenUsage
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// TrackAIOperationWithTokens instruments an AI operation with tracing, metrics, and token usage
func (m *Metrics) TrackAIOperationWithTokens(ctx context.Context, operation string, fn func(context.Context) *AIOperationResult, om *ObservabilityManager) error {
	if m.AIProcessingTime == nil {
		if result := fn(ctx); result != nil {
			return result.Error
		}
		return nil
	}

	ctx, span := otel.Tracer("callscreen.ai").Start(ctx, "ai."+operation)
	defer span.End()

	start := time.Now()
	result := fn(ctx)
	duration := time.Since(start).Seconds()

	var err error
	if result != nil {
		err = result.Error
	}

	if toggles := om.customMetrics(); toggles == nil || toggles.AIOperations.Enabled {
		m.recordAIMetrics(ctx, operation, err, duration, result, om, span)
	}

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("error", true))
	}
	return err
}

func (m *Metrics) recordAIMetrics(ctx context.Context, operation string, err error, duration float64, result *AIOperationResult, om *ObservabilityManager, span oteltrace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}
	toggles := om.customMetrics()

	if toggles == nil || toggles.AIOperations.TrackDuration {
		m.AIProcessingTime.Record(ctx, duration, metric.WithAttributes(attrs...))
	}
	m.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.AIErrorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	if result != nil && result.TokenUsage != nil {
		if toggles == nil || toggles.AIOperations.TrackTokenUsage {
			usage := result.TokenUsage
			for _, tt := range []struct {
				tokenType string
				value     int64
			}{
				{"input", usage.InputTokens},
				{"output", usage.OutputTokens},
				{"total", usage.TotalTokens},
			} {
				tokenAttrs := append(append([]attribute.KeyValue{}, attrs...), attribute.String("token_type", tt.tokenType))
				m.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(tokenAttrs...))
			}
		}
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", result.TokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", result.TokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", result.TokenUsage.TotalTokens),
		)
	}

	span.SetAttributes(attrs...)
}

// RecordBusinessMetric records business-specific metrics
func (m *Metrics) RecordBusinessMetric(ctx context.Context, metricType string, success bool, om *ObservabilityManager, attributes ...attribute.KeyValue) {
	toggles := om.customMetrics()
	if toggles != nil && !toggles.BusinessMetrics.Enabled && metricType != MetricRateLimitHit {
		return
	}

	attrs := append([]attribute.KeyValue{attribute.Bool("success", success)}, attributes...)

	var counter metric.Int64Counter
	switch metricType {
	case MetricResumeScored:
		counter = m.ResumesScored
	case MetricAdmissionDecided:
		counter = m.AdmissionDecisions
	case MetricCallPlaced:
		counter = m.CallsPlaced
	case MetricSessionFinalized:
		if toggles != nil && !toggles.BusinessMetrics.TrackCallOutcomes {
			return
		}
		counter = m.SessionsFinalized
	case MetricReportSent:
		counter = m.ReportsSent
	case MetricApplicationFiled:
		counter = m.ApplicationsFiled
	case MetricTranscriptWritten:
		counter = m.TranscriptsWritten
	case MetricRateLimitHit:
		if toggles != nil && !toggles.Infrastructure.TrackRateLimits {
			return
		}
		counter = m.RateLimitHits
	}
	if counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordScore records one résumé score in the distribution histogram.
func (m *Metrics) RecordScore(ctx context.Context, score float64, attributes ...attribute.KeyValue) {
	if m.ScoreDistribution != nil {
		m.ScoreDistribution.Record(ctx, score, metric.WithAttributes(attributes...))
	}
}

// SessionOpened and SessionClosed track the in-memory session count.
func (m *Metrics) SessionOpened(ctx context.Context) {
	if m.ActiveSessions != nil {
		m.ActiveSessions.Add(ctx, 1)
	}
}

func (m *Metrics) SessionClosed(ctx context.Context) {
	if m.ActiveSessions != nil {
		m.ActiveSessions.Add(ctx, -1)
	}
}
