package dialog

import (
	"context"
	"time"
)

// RunReaper expires abandoned sessions and drops old tombstones every
// reaperInterval until ctx is done.
func (o *Orchestrator) RunReaper(ctx context.Context) error {
	interval := o.cfg.ReaperInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.Sweep(ctx, o.now())
		case <-ctx.Done():
			return nil
		}
	}
}

// Sweep finalizes sessions older than timeLimit + reaperGrace and returns
// how many it expired.
func (o *Orchestrator) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-(o.cfg.TimeLimit + o.cfg.ReaperGrace))
	expired := 0
	for _, s := range o.machine.Registry().Expired(cutoff) {
		out, ok := o.machine.ForceExpire(s.CallID, now)
		if !ok || !out.Finalize {
			continue
		}
		expired++
		o.logger.Info("Reaping abandoned call", "call_id", s.CallID)
		o.finalizeAsync(ctx, out.Snapshot)
	}

	if o.cfg.TombstoneTTL > 0 {
		if n := o.machine.Registry().PruneTombstones(now.Add(-o.cfg.TombstoneTTL)); n > 0 {
			o.logger.Debug("Pruned call tombstones", "count", n)
		}
	}
	return expired
}

// FinalizeAll ends every live call as TimeExpired and finalizes it. It is
// meant for shutdown, after the webhook has stopped accepting turns; Wait
// still has to be called to drain the finalizations.
func (o *Orchestrator) FinalizeAll(ctx context.Context) int {
	now := o.now()
	n := 0
	for _, snap := range o.machine.Registry().Snapshots() {
		out, ok := o.machine.ForceExpire(snap.CallID, now)
		if !ok || !out.Finalize {
			continue
		}
		n++
		o.logger.Info("Finalizing call interrupted by shutdown", "call_id", snap.CallID)
		o.finalizeAsync(ctx, out.Snapshot)
	}
	return n
}
