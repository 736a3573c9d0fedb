package domain

import "time"

// Category is the closed set of email categories the pipeline recognizes.
// Unknown values coerce to CategoryPersonal rather than failing.
type Category string

const (
	CategoryJobAlert    Category = "job_alert"   // job board digests and alerts
	CategoryRecruiter   Category = "recruiter"   // direct recruiter outreach
	CategoryInterview   Category = "interview"   // interview scheduling and follow-ups
	CategoryRejection   Category = "rejection"   // application rejections
	CategoryNewsletter  Category = "newsletter"  // subscribed newsletters and digests
	CategoryPromotional Category = "promotional" // marketing and promotional
	CategoryPersonal    Category = "personal"    // everything else
)

// allCategories is the exhaustive mapping used to validate external input.
var allCategories = map[Category]bool{
	CategoryJobAlert:    true,
	CategoryRecruiter:   true,
	CategoryInterview:   true,
	CategoryRejection:   true,
	CategoryNewsletter:  true,
	CategoryPromotional: true,
	CategoryPersonal:    true,
}

// ParseCategory validates a raw category string. Invalid or empty values
// coerce to CategoryPersonal.
func ParseCategory(raw string) Category {
	c := Category(raw)
	if allCategories[c] {
		return c
	}
	return CategoryPersonal
}

// IsJobOpportunity reports whether the category carries job-opportunity
// content that should flow into extraction.
func (c Category) IsJobOpportunity() bool {
	switch c {
	case CategoryJobAlert, CategoryRecruiter, CategoryInterview:
		return true
	default:
		return false
	}
}

// ClassifiedBy identifies which classifier produced a result.
type ClassifiedBy string

const (
	ClassifiedByRule ClassifiedBy = "rule"
	ClassifiedByAI   ClassifiedBy = "ai"
)

// ClassificationRule is a static, priority-ordered pattern rule. Rules are
// evaluated in descending Priority; the first rule whose computed score
// reaches its own ConfidenceThreshold wins.
type ClassificationRule struct {
	Category            Category `json:"category"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
	Priority            int      `json:"priority"`
	ContentPatterns     []string `json:"content_patterns"`
	FromPatterns        []string `json:"from_patterns"`
	SubjectPatterns     []string `json:"subject_patterns"`
}

// ClassificationResult is produced once per message per run. An AI result
// supersedes a low-confidence rule result for the same message.
type ClassificationResult struct {
	MessageID    string        `json:"message_id"`
	Category     Category      `json:"category"`
	Confidence   float64       `json:"confidence"`
	ClassifiedBy ClassifiedBy  `json:"classified_by"`
	Cost         float64       `json:"cost"`
	Latency      time.Duration `json:"latency"`
}
