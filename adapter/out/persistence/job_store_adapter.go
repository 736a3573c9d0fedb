// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"jobscout/core/domain"
	"jobscout/core/port/out"
	"jobscout/core/service/dedup"
)

// JobStoreAdapter implements out.JobStore using PostgreSQL.
type JobStoreAdapter struct {
	db *sqlx.DB
}

var _ out.JobStore = (*JobStoreAdapter)(nil)

// NewJobStoreAdapter creates a new JobStoreAdapter.
func NewJobStoreAdapter(db *sqlx.DB) *JobStoreAdapter {
	return &JobStoreAdapter{db: db}
}

// jobRow represents the database row for jobs. Requirements are stored as a
// JSONB array.
type jobRow struct {
	ID              string         `db:"id"`
	Title           string         `db:"title"`
	Company         string         `db:"company"`
	Location        sql.NullString `db:"location"`
	IsRemote        bool           `db:"is_remote"`
	Description     string         `db:"description"`
	Requirements    []byte         `db:"requirements"`
	ApplyURL        sql.NullString `db:"apply_url"`
	Salary          sql.NullString `db:"salary"`
	PostedDate      time.Time      `db:"posted_date"`
	Source          sql.NullString `db:"source"`
	RelevanceScore  float64        `db:"relevance_score"`
	OriginMessageID string         `db:"origin_message_id"`
	Processed       bool           `db:"processed"`
	Notified        bool           `db:"notified"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (r *jobRow) toDomain() domain.ExtractedJob {
	job := domain.ExtractedJob{
		ID:              r.ID,
		Title:           r.Title,
		Company:         r.Company,
		Location:        r.Location.String,
		IsRemote:        r.IsRemote,
		Description:     r.Description,
		ApplyURL:        r.ApplyURL.String,
		PostedDate:      r.PostedDate,
		Source:          r.Source.String,
		RelevanceScore:  r.RelevanceScore,
		OriginMessageID: r.OriginMessageID,
		Processed:       r.Processed,
		CreatedAt:       r.CreatedAt,
	}
	if r.Salary.Valid {
		salary := r.Salary.String
		job.Salary = &salary
	}
	if len(r.Requirements) > 0 {
		_ = json.Unmarshal(r.Requirements, &job.Requirements)
	}
	return job
}

// Exists reports whether a job with the given content-hash id is stored.
func (a *JobStoreAdapter) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := a.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, id)
	return exists, err
}

// FindSimilar returns stored jobs matching either the apply URL host+path or
// the lowercased title+company pair. The service layer does the normalized
// comparison; this query only narrows the candidate set.
func (a *JobStoreAdapter) FindSimilar(ctx context.Context, title, company, applyURL string) ([]domain.ExtractedJob, error) {
	var rows []jobRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT * FROM jobs
		WHERE (LOWER(title) = LOWER($1) AND LOWER(company) = LOWER($2))
		   OR ($3 <> '' AND apply_url = $3)
		LIMIT 20`,
		title, company, dedup.NormalizeURL(applyURL))
	if err != nil {
		return nil, err
	}

	jobs := make([]domain.ExtractedJob, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, rows[i].toDomain())
	}
	return jobs, nil
}

// Save upserts a job by its content-hash id.
func (a *JobStoreAdapter) Save(ctx context.Context, job domain.ExtractedJob) error {
	requirements, err := json.Marshal(job.Requirements)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO jobs (
			id, title, company, location, is_remote, description, requirements,
			apply_url, salary, posted_date, source, relevance_score,
			origin_message_id, processed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			description     = EXCLUDED.description,
			requirements    = EXCLUDED.requirements,
			relevance_score = EXCLUDED.relevance_score`,
		job.ID, job.Title, job.Company, nullString(job.Location), job.IsRemote,
		job.Description, requirements, nullString(dedup.NormalizeURL(job.ApplyURL)),
		nullStringPtr(job.Salary), job.PostedDate, nullString(job.Source),
		job.RelevanceScore, job.OriginMessageID, job.Processed, job.CreatedAt)
	return err
}

// MarkProcessed flags the given jobs as processed.
func (a *JobStoreAdapter) MarkProcessed(ctx context.Context, jobIDs []string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE jobs SET processed = TRUE WHERE id IN (?)`, jobIDs)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx, a.db.Rebind(query), args...)
	return err
}

// MarkNotified flags the given jobs as delivered in a digest.
func (a *JobStoreAdapter) MarkNotified(ctx context.Context, jobIDs []string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE jobs SET notified = TRUE WHERE id IN (?)`, jobIDs)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx, a.db.Rebind(query), args...)
	return err
}

// IsMessageProcessed reports whether a durable processed record exists for
// the message.
func (a *JobStoreAdapter) IsMessageProcessed(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := a.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM processed_messages WHERE message_id = $1)`, messageID)
	return exists, err
}

// RecordProcessed upserts the processed record for a message. It must be
// idempotent: the pipeline re-writes the record after the mailbox archive
// succeeds.
func (a *JobStoreAdapter) RecordProcessed(ctx context.Context, rec domain.ProcessedMessageRecord) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO processed_messages (message_id, jobs_extracted, archived, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id) DO UPDATE SET
			jobs_extracted = EXCLUDED.jobs_extracted,
			archived       = EXCLUDED.archived`,
		rec.MessageID, rec.JobsExtracted, rec.Archived, rec.ProcessedAt)
	return err
}

// profileRow represents the database row for profile analyses.
type profileRow struct {
	ID         int64     `db:"id"`
	Summary    string    `db:"summary"`
	Skills     []byte    `db:"skills"`
	AnalyzedAt time.Time `db:"analyzed_at"`
}

// LatestProfile returns the most recent profile analysis, nil when none
// exists yet.
func (a *JobStoreAdapter) LatestProfile(ctx context.Context) (*domain.ProfileAnalysis, error) {
	var row profileRow
	err := a.db.GetContext(ctx, &row,
		`SELECT * FROM profile_analyses ORDER BY analyzed_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p := &domain.ProfileAnalysis{
		ID:         row.ID,
		Summary:    row.Summary,
		AnalyzedAt: row.AnalyzedAt,
	}
	if len(row.Skills) > 0 {
		_ = json.Unmarshal(row.Skills, &p.Skills)
	}
	return p, nil
}

// SaveProfile inserts a new profile analysis.
func (a *JobStoreAdapter) SaveProfile(ctx context.Context, p domain.ProfileAnalysis) error {
	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO profile_analyses (summary, skills, analyzed_at)
		VALUES ($1, $2, $3)`,
		p.Summary, skills, p.AnalyzedAt)
	return err
}

// CountJobsSince returns the total jobs saved since the cutoff and how many
// of them met the notification threshold.
func (a *JobStoreAdapter) CountJobsSince(ctx context.Context, since time.Time) (total, notified int, err error) {
	row := a.db.QueryRowxContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE notified)
		FROM jobs WHERE created_at >= $1`, since)
	err = row.Scan(&total, &notified)
	return total, notified, err
}

// DeleteProcessedBefore removes processed-message records older than the
// cutoff and returns how many were deleted.
func (a *JobStoreAdapter) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM processed_messages WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteStaleJobs removes postings that never made it past a run (not flagged
// processed) and are older than the cutoff.
func (a *JobStoreAdapter) DeleteStaleJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE NOT processed AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
