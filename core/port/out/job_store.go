package out

import (
	"context"
	"time"

	"jobscout/core/domain"
)

// =============================================================================
// Job Store Port
// =============================================================================

// JobStore is the outbound port for durable job and processing state.
// RecordProcessed must be durable and idempotent (upsert).
type JobStore interface {
	// Exists reports whether a job with the given content-hash id is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// FindSimilar returns stored jobs whose normalized title+company+applyUrl
	// match the given candidate fields (the tier-2 fuzzy lookup).
	FindSimilar(ctx context.Context, title, company, applyURL string) ([]domain.ExtractedJob, error)

	Save(ctx context.Context, job domain.ExtractedJob) error
	MarkProcessed(ctx context.Context, jobIDs []string) error

	// MarkNotified flags jobs that were delivered in a digest, feeding the
	// daily summary counts.
	MarkNotified(ctx context.Context, jobIDs []string) error

	IsMessageProcessed(ctx context.Context, messageID string) (bool, error)
	RecordProcessed(ctx context.Context, rec domain.ProcessedMessageRecord) error

	// Profile cache
	LatestProfile(ctx context.Context) (*domain.ProfileAnalysis, error)
	SaveProfile(ctx context.Context, p domain.ProfileAnalysis) error

	// Reporting / maintenance
	CountJobsSince(ctx context.Context, since time.Time) (total, notified int, err error)
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteStaleJobs removes jobs that were never flagged processed and are
	// older than the cutoff.
	DeleteStaleJobs(ctx context.Context, cutoff time.Time) (int64, error)
}
