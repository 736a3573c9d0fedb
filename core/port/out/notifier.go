package out

import (
	"context"

	"jobscout/core/domain"
)

// =============================================================================
// Notifier Port
// =============================================================================

// Notifier is the outbound port for user and operator notifications.
// Delivery channel and formatting are collaborator concerns.
type Notifier interface {
	// SendJobDigest delivers the batch of postings that met the relevance
	// threshold for a run.
	SendJobDigest(ctx context.Context, jobs []domain.ExtractedJob) error

	// SendOperatorAlert surfaces an operator-facing problem (dead refresh
	// token, permanently failing message, ...).
	SendOperatorAlert(ctx context.Context, message string) error

	// SendDailySummary delivers the daily aggregate digest.
	SendDailySummary(ctx context.Context, s DailySummaryStats) error
}

// DailySummaryStats aggregates the last 24h of pipeline output.
type DailySummaryStats struct {
	JobsFound int `json:"jobs_found"`
	Notified  int `json:"notified"`
}

// ProgressSink receives run progress checkpoints. Concrete sinks (log, chat,
// queue state) are injected; the orchestrator never knows the channel.
type ProgressSink interface {
	ReportProgress(runID string, pct int, note string)
}
