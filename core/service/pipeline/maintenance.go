package pipeline

import (
	"context"
	"time"

	"jobscout/core/port/out"
	"jobscout/pkg/apperr"
	"jobscout/pkg/logger"
)

// DailySummary aggregates the last 24 hours of pipeline output and sends the
// digest.
func (p *Processor) DailySummary(ctx context.Context, runID string) error {
	sink := newMonotonicSink(p.progress)
	sink.ReportProgress(runID, 10, "aggregating daily stats")

	since := time.Now().Add(-24 * time.Hour)
	total, notified, err := p.store.CountJobsSince(ctx, since)
	if err != nil {
		return apperr.StoreError("countJobsSince", err)
	}

	sink.ReportProgress(runID, 60, "sending daily summary")
	stats := out.DailySummaryStats{JobsFound: total, Notified: notified}
	if err := p.notifier.SendDailySummary(ctx, stats); err != nil {
		return apperr.ExternalError("notifier", err)
	}

	sink.ReportProgress(runID, 100, "daily summary sent")
	logger.WithRun(runID).Info("daily summary: %d jobs found, %d notified", total, notified)
	return nil
}

// Cleanup deletes processed-message records older than the retention window.
func (p *Processor) Cleanup(ctx context.Context, runID string, retention time.Duration) error {
	sink := newMonotonicSink(p.progress)
	sink.ReportProgress(runID, 10, "cleaning up old records")

	cutoff := time.Now().Add(-retention)
	deleted, err := p.store.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return apperr.StoreError("deleteProcessedBefore", err)
	}

	sink.ReportProgress(runID, 60, "pruning stale jobs")
	stale, err := p.store.DeleteStaleJobs(ctx, cutoff)
	if err != nil {
		return apperr.StoreError("deleteStaleJobs", err)
	}

	sink.ReportProgress(runID, 100, "cleanup finished")
	logger.WithRun(runID).Info("cleanup removed %d processed-message records and %d stale jobs older than %s",
		deleted, stale, cutoff.Format("2006-01-02"))
	return nil
}
