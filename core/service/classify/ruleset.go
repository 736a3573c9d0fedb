// Package classify implements the hybrid rule/AI email classification stage.
package classify

import (
	"sort"

	"jobscout/core/domain"
)

// DefaultRuleset returns the static, priority-ordered classification rules.
// Rules are evaluated in descending Priority; the first rule whose score
// reaches its own ConfidenceThreshold wins.
func DefaultRuleset() []domain.ClassificationRule {
	rules := []domain.ClassificationRule{
		{
			Category:            domain.CategoryJobAlert,
			ConfidenceThreshold: 0.5,
			Priority:            100,
			FromPatterns: []string{
				"linkedin.com", "indeed.com", "glassdoor", "ziprecruiter",
				"wellfound", "lever.co", "greenhouse.io", "monster.com",
				"dice.com", "hired.com",
			},
			SubjectPatterns: []string{
				"job alert", "new job", "jobs for you", "job match",
				"apply now", "is hiring", "new opportunities",
			},
			ContentPatterns: []string{
				"apply", "job opening", "position", "view job", "salary",
				"full-time", "part-time",
			},
		},
		{
			Category:            domain.CategoryRecruiter,
			ConfidenceThreshold: 0.6,
			Priority:            90,
			FromPatterns: []string{
				"talent", "recruiting", "recruitment", "sourcer", "staffing",
			},
			SubjectPatterns: []string{
				"opportunity", "role at", "your background", "quick chat",
			},
			ContentPatterns: []string{
				"your profile", "reaching out", "opportunity", "recruiter",
				"would you be open", "your experience",
			},
		},
		{
			Category:            domain.CategoryInterview,
			ConfidenceThreshold: 0.6,
			Priority:            85,
			SubjectPatterns: []string{
				"interview", "next steps", "availability",
			},
			ContentPatterns: []string{
				"interview", "phone screen", "schedule a call", "onsite",
				"technical assessment", "hiring manager",
			},
		},
		{
			Category:            domain.CategoryRejection,
			ConfidenceThreshold: 0.6,
			Priority:            80,
			SubjectPatterns: []string{
				"your application", "application update", "update on your",
			},
			ContentPatterns: []string{
				"unfortunately", "we have decided", "other candidates",
				"not moving forward", "not be proceeding", "wish you the best",
			},
		},
		{
			Category:            domain.CategoryNewsletter,
			ConfidenceThreshold: 0.5,
			Priority:            50,
			FromPatterns: []string{
				"newsletter", "digest", "noreply", "no-reply",
			},
			SubjectPatterns: []string{
				"newsletter", "digest", "weekly", "this week in",
			},
			ContentPatterns: []string{
				"unsubscribe", "view in browser", "manage preferences",
			},
		},
		{
			Category:            domain.CategoryPromotional,
			ConfidenceThreshold: 0.5,
			Priority:            40,
			FromPatterns: []string{
				"promo", "marketing", "offers", "deals",
			},
			SubjectPatterns: []string{
				"% off", "sale", "deal", "discount",
			},
			ContentPatterns: []string{
				"limited time", "offer ends", "discount", "coupon",
				"shop now", "save up to",
			},
		},
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules
}
