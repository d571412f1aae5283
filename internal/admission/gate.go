// Package admission decides which scored applications earn a screening
// call and places that call.
package admission

import (
	"context"
	"sync"

	"callscreen/internal/errors"
	"callscreen/internal/observability"
	"callscreen/internal/scoring"
	"callscreen/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
)

// Admit is the admission rule.
func Admit(score, threshold float64) bool {
	return score >= threshold
}

// ScoreRecorder persists screening progress on an application.
type ScoreRecorder interface {
	RecordScore(ctx context.Context, id string, score float64, status types.ApplicationStatus) error
	RecordCall(ctx context.Context, id, callID string) error
}

// CallPlacer starts an outbound call and returns its call id.
type CallPlacer interface {
	PlaceCall(ctx context.Context, to string) (string, error)
}

// CallRegistrar learns the context of calls before their first turn.
type CallRegistrar interface {
	Expect(callID string, cc types.CallContext)
}

// Scorer is implemented by *scoring.Engine.
type Scorer interface {
	Score(ctx context.Context, doc types.Document, spec types.JobSpecification) scoring.Result
}

// Candidate bundles what the gate needs about one application.
type Candidate struct {
	Application *types.Application
	Applicant   types.Applicant
	Job         types.Job
}

// Decision is the outcome of Process.
type Decision struct {
	ApplicationID string          `json:"applicationId"`
	Score         float64         `json:"score"`
	Threshold     float64         `json:"threshold"`
	Admitted      bool            `json:"admitted"`
	CallID        string          `json:"callId,omitempty"`
	CallError     string          `json:"callError,omitempty"`
	Result        *scoring.Result `json:"result,omitempty"`
}

// Gate applies the threshold and places calls for admitted candidates.
type Gate struct {
	store     ScoreRecorder
	placer    CallPlacer
	registrar CallRegistrar
	scorer    Scorer
	threshold float64
	logger    *errors.Logger
	obs       *observability.ObservabilityManager

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// Options configures a Gate. Placer may be nil when telephony is disabled.
type Options struct {
	Store       ScoreRecorder
	Placer      CallPlacer
	Registrar   CallRegistrar
	Scorer      Scorer
	Threshold   float64
	Concurrency int
	Logger      *errors.Logger
	Obs         *observability.ObservabilityManager
}

func NewGate(opts Options) *Gate {
	if opts.Logger == nil {
		opts.Logger = errors.Discard()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Gate{
		store:     opts.Store,
		placer:    opts.Placer,
		registrar: opts.Registrar,
		scorer:    opts.Scorer,
		threshold: opts.Threshold,
		logger:    opts.Logger,
		obs:       opts.Obs,
		sem:       semaphore.NewWeighted(int64(opts.Concurrency)),
	}
}

func (g *Gate) Threshold() float64 { return g.threshold }

// Process persists the score, then places a call if the candidate is
// admitted. A persistence failure is returned and no call is placed. A call
// placement failure is only logged.
func (g *Gate) Process(ctx context.Context, c Candidate, score float64) (Decision, error) {
	app := c.Application
	d := Decision{ApplicationID: app.ID, Score: score, Threshold: g.threshold, Admitted: Admit(score, g.threshold)}

	status := types.StatusRejected
	if d.Admitted {
		status = types.StatusScored
	}
	if err := g.store.RecordScore(ctx, app.ID, score, status); err != nil {
		return d, err
	}

	metrics := g.obs.GetMetrics()
	metrics.RecordBusinessMetric(ctx, observability.MetricAdmissionDecided, d.Admitted, g.obs,
		attribute.String("job_id", c.Job.ID))
	g.logger.Info("Admission decided",
		"application_id", app.ID,
		"score", score,
		"threshold", g.threshold,
		"admitted", d.Admitted)

	if !d.Admitted {
		return d, nil
	}
	if g.placer == nil {
		g.logger.Warn("Telephony disabled, not placing call", "application_id", app.ID)
		return d, nil
	}

	callID, err := g.placer.PlaceCall(ctx, c.Applicant.Phone)
	metrics.RecordBusinessMetric(ctx, observability.MetricCallPlaced, err == nil, g.obs)
	if err != nil {
		g.logger.LogError(err, "Failed to place screening call", "application_id", app.ID)
		d.CallError = err.Error()
		return d, nil
	}
	d.CallID = callID

	if g.registrar != nil {
		g.registrar.Expect(callID, types.CallContext{
			ApplicationID: app.ID,
			CandidateName: c.Applicant.FullName(),
			JobTitle:      c.Job.Title,
			JobContext:    c.Job.Context(),
		})
	}
	if err := g.store.RecordCall(ctx, app.ID, callID); err != nil {
		g.logger.LogError(err, "Failed to record placed call", "application_id", app.ID, "call_id", callID)
	}
	g.logger.Info("Screening call placed", "application_id", app.ID, "call_id", callID)
	return d, nil
}

// Screen scores the application's résumé and runs Process on the result.
func (g *Gate) Screen(ctx context.Context, c Candidate) (Decision, error) {
	result := g.scorer.Score(ctx, c.Application.Document(), c.Job.Spec)
	d, err := g.Process(ctx, c, result.Total)
	d.Result = &result
	return d, err
}

// ScreenAsync runs Screen on a background goroutine, bounded by the
// configured concurrency. The caller's cancellation does not stop it.
func (g *Gate) ScreenAsync(ctx context.Context, c Candidate) {
	ctx = context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer g.sem.Release(1)

		if _, err := g.Screen(ctx, c); err != nil {
			g.logger.LogError(err, "Background screening failed", "application_id", c.Application.ID)
		}
	}()
}

// Wait blocks until background screenings finish.
func (g *Gate) Wait() {
	g.wg.Wait()
}
