package domain

import "time"

// ExtractedJob is a job posting extracted from an inbound message. ID is a
// deterministic content hash over the normalized apply URL, or over the
// normalized title+company when no URL exists, and doubles as the dedup key.
type ExtractedJob struct {
	ID              string    `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Company         string    `json:"company" db:"company"`
	Location        string    `json:"location" db:"location"`
	IsRemote        bool      `json:"is_remote" db:"is_remote"`
	Description     string    `json:"description" db:"description"`
	Requirements    []string  `json:"requirements" db:"-"`
	ApplyURL        string    `json:"apply_url" db:"apply_url"`
	Salary          *string   `json:"salary,omitempty" db:"salary"`
	PostedDate      time.Time `json:"posted_date" db:"posted_date"`
	Source          string    `json:"source" db:"source"`
	RelevanceScore  float64   `json:"relevance_score" db:"relevance_score"`
	OriginMessageID string    `json:"origin_message_id" db:"origin_message_id"`
	Processed       bool      `json:"processed" db:"processed"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// ProfileAnalysis is a cached AI analysis of the candidate's resume, used to
// score posting relevance. Re-computed when older than the staleness window.
type ProfileAnalysis struct {
	ID         int64     `json:"id" db:"id"`
	Summary    string    `json:"summary" db:"summary"`
	Skills     []string  `json:"skills" db:"-"`
	AnalyzedAt time.Time `json:"analyzed_at" db:"analyzed_at"`
}

// Stale reports whether the analysis is older than the given window.
func (p *ProfileAnalysis) Stale(window time.Duration, now time.Time) bool {
	return now.Sub(p.AnalyzedAt) > window
}
