package reconcile

import (
	"context"
	"time"

	"github.com/blagoySimandov/proaccount/internal/logger"
	"github.com/blagoySimandov/proaccount/internal/metrics"
)

// Schedule runs the reconciler every interval until ctx is done. Runs never
// overlap: a slow run delays the next tick.
func Schedule(ctx context.Context, r *Reconciler, interval time.Duration) {
	if interval <= 0 {
		return
	}

	logger.Log.Info().Dur("interval", interval).Msg("Periodic subscription sync enabled")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info().Msg("Periodic subscription sync stopped")
			return
		case <-ticker.C:
			RunAndRecord(ctx, r, "schedule")
		}
	}
}

// RunAndRecord executes one run and feeds its outcome into metrics.
func RunAndRecord(ctx context.Context, r *Reconciler, trigger string) (*Summary, error) {
	start := time.Now()
	summary, err := r.Run(ctx)
	if err != nil && !IsCancelled(err) {
		logger.Log.Error().Err(err).Str("trigger", trigger).Msg("Subscription sync failed")
	}
	if summary != nil && summary.Stats != nil {
		metrics.RecordSyncRun(trigger, time.Since(start), summary.Stats.TotalUsers, summary.Stats.UpdatedUsers, summary.Stats.ErrorCount)
	}
	return summary, err
}
