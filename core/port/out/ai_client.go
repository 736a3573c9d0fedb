package out

import (
	"context"

	"jobscout/core/domain"
)

// =============================================================================
// AI Client Port
// =============================================================================

// RawClassification is a single unvalidated classifier output. The service
// layer validates and coerces it; adapters never guess at defaults.
type RawClassification struct {
	MessageID  string  `json:"message_id"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// AIClient is the outbound port for the LLM provider. It is treated as an
// untrusted, costed, occasionally-malformed-JSON external service; callers
// validate every output.
type AIClient interface {
	// ClassifyMessage classifies a single message. Cost is the provider
	// charge for the call in USD.
	ClassifyMessage(ctx context.Context, msg domain.InboundMessage) (raw RawClassification, cost float64, err error)

	// ExtractPostings extracts zero or more job posting candidates from a
	// message already classified as job-opportunity content. pageText
	// optionally carries fetched apply-URL content for richer extraction.
	ExtractPostings(ctx context.Context, msg domain.InboundMessage, pageText string) ([]domain.ExtractedJob, error)

	// ScoreRelevance scores a posting against the candidate profile in [0,1].
	ScoreRelevance(ctx context.Context, job domain.ExtractedJob, profile domain.ProfileAnalysis) (float64, error)

	// AnalyzeProfile produces a fresh profile analysis from the resume text.
	AnalyzeProfile(ctx context.Context, resumeText string) (domain.ProfileAnalysis, error)
}
