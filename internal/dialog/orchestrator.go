// Package dialog connects the telephony bridge to the conversation state
// machine and finalizes calls once they end.
package dialog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"callscreen/internal/config"
	"callscreen/internal/conversation"
	"callscreen/internal/errors"
	"callscreen/internal/notify"
	"callscreen/internal/observability"
	"callscreen/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

// NoReport replaces the report when the report oracle fails.
const NoReport = "No report generated."

// Reporter is the report oracle.
type Reporter interface {
	Report(ctx context.Context, transcript string) (string, error)
}

// TranscriptWriter appends finished calls to the transcript log.
type TranscriptWriter interface {
	Append(rec store.TranscriptRecord) error
}

// ReportStore attaches reports to applications.
type ReportStore interface {
	SaveReport(ctx context.Context, id, report string) error
}

// Reply tells the telephony bridge what to do next.
type Reply struct {
	Say    string `json:"say"`
	Listen bool   `json:"listen"`
	Hangup bool   `json:"hangup"`
}

// Options configures an Orchestrator. Store may be nil.
type Options struct {
	Machine     *conversation.Machine
	Transcripts TranscriptWriter
	Reporter    Reporter
	Notifier    notify.Notifier
	Store       ReportStore
	Screening   config.ScreeningConfig
	Subject     string
	Logger      *errors.Logger
	Obs         *observability.ObservabilityManager
	Now         func() time.Time
}

// Orchestrator handles call turns and runs finalization off the request path.
type Orchestrator struct {
	machine     *conversation.Machine
	transcripts TranscriptWriter
	reporter    Reporter
	notifier    notify.Notifier
	store       ReportStore
	cfg         config.ScreeningConfig
	subject     string
	logger      *errors.Logger
	obs         *observability.ObservabilityManager
	now         func() time.Time

	wg sync.WaitGroup
}

func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = errors.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		machine:     opts.Machine,
		transcripts: opts.Transcripts,
		reporter:    opts.Reporter,
		notifier:    opts.Notifier,
		store:       opts.Store,
		cfg:         opts.Screening,
		subject:     opts.Subject,
		logger:      opts.Logger,
		obs:         opts.Obs,
		now:         opts.Now,
	}
}

// Registry exposes the session registry for call pre-registration and stats.
func (o *Orchestrator) Registry() *conversation.Registry {
	return o.machine.Registry()
}

// OnTurn processes one candidate turn. It never fails: internal errors end
// the call quietly.
func (o *Orchestrator) OnTurn(ctx context.Context, callID, raw string, now time.Time) Reply {
	out, err := o.machine.ProcessTurn(ctx, callID, raw, now)
	if err != nil {
		o.logger.Warn("Ignoring turn", "call_id", callID, "error", err.Error())
		return Reply{Hangup: true}
	}
	if out.Greeting {
		o.obs.GetMetrics().SessionOpened(ctx)
		o.logger.Info("Screening call started", "call_id", callID)
	}
	if out.Finalize {
		o.finalizeAsync(ctx, out.Snapshot)
	}
	return Reply{Say: out.Say, Listen: out.Listen, Hangup: out.Hangup}
}

func (o *Orchestrator) finalizeAsync(ctx context.Context, snap conversation.Snapshot) {
	ctx = context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Finalize(ctx, snap)
	}()
}

// Finalize persists the transcript, generates and delivers the report and
// evicts the session. Every step is attempted; eviction always happens.
func (o *Orchestrator) Finalize(ctx context.Context, snap conversation.Snapshot) {
	if o.cfg.FinalizeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.FinalizeTimeout)
		defer cancel()
	}
	logger := o.logger.With("call_id", snap.CallID, "state", snap.State.String())
	metrics := o.obs.GetMetrics()

	defer func() {
		if r := recover(); r != nil {
			logger.LogError(fmt.Errorf("panic: %v", r), "Finalization panicked")
		}
		o.machine.Registry().Evict(snap.CallID, o.now())
		metrics.SessionClosed(ctx)
		metrics.RecordBusinessMetric(ctx, observability.MetricSessionFinalized, true, o.obs,
			attribute.String("state", snap.State.String()))
		logger.Info("Call finalized", "duration_sec", snap.Duration().Seconds(), "turns", len(snap.Turns))
	}()

	transcript := snap.Transcript()

	if o.transcripts != nil {
		err := o.transcripts.Append(store.TranscriptRecord{
			CallID:       snap.CallID,
			Duration:     snap.Duration(),
			Conversation: transcript,
		})
		metrics.RecordBusinessMetric(ctx, observability.MetricTranscriptWritten, err == nil, o.obs)
		if err != nil {
			logger.LogError(err, "Failed to write call transcript")
		}
	}

	report := NoReport
	if o.reporter != nil {
		generated, err := o.reporter.Report(ctx, transcript)
		switch {
		case err != nil:
			logger.LogError(err, "Report generation failed")
		case strings.TrimSpace(generated) == "":
			logger.Warn("Report oracle returned an empty report")
		default:
			report = generated
		}
	}

	if o.notifier != nil {
		err := o.notifier.Send(ctx, o.subject, reportEmail(snap, report))
		metrics.RecordBusinessMetric(ctx, observability.MetricReportSent, err == nil, o.obs)
		if err != nil {
			logger.LogError(err, "Failed to deliver report")
		}
	}

	if o.store != nil && snap.Context.ApplicationID != "" {
		if err := o.store.SaveReport(ctx, snap.Context.ApplicationID, report); err != nil {
			logger.LogError(err, "Failed to store report", "application_id", snap.Context.ApplicationID)
		}
	}
}

func reportEmail(snap conversation.Snapshot, report string) string {
	var b strings.Builder
	if snap.Context.CandidateName != "" {
		fmt.Fprintf(&b, "Candidate: %s\n", snap.Context.CandidateName)
	}
	if snap.Context.JobTitle != "" {
		fmt.Fprintf(&b, "Position: %s\n", snap.Context.JobTitle)
	}
	fmt.Fprintf(&b, "Call: %s (%.1fs, %s)\n\n", snap.CallID, snap.Duration().Seconds(), snap.State)
	b.WriteString(report)
	return b.String()
}

// Wait blocks until in-flight finalizations complete.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
