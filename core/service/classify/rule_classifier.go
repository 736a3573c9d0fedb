package classify

import (
	"sort"
	"strings"
	"time"

	"jobscout/core/domain"
	"jobscout/pkg/logger"
)

// Group weights for rule scoring. Groups without patterns are excluded from
// the weight total, so the score is renormalized over present groups.
const (
	weightContent = 0.6
	weightFrom    = 0.3
	weightSubject = 0.1

	// maxRuleConfidence reserves headroom above every rule result so an AI
	// result can always outrank it.
	maxRuleConfidence = 0.98

	// noMatchConfidence deliberately signals "send to AI".
	noMatchConfidence = 0.3

	// errorConfidence is returned when scoring itself fails; the stream must
	// never block on a single bad input.
	errorConfidence = 0.1

	// bodyPrefixLen bounds how much body text participates in matching.
	bodyPrefixLen = 2000
)

// RuleClassifier scores messages against a static ruleset. It is free, fast,
// and deterministic, with no side effects.
type RuleClassifier struct {
	rules []domain.ClassificationRule
}

// NewRuleClassifier creates a classifier over the given rules, ordered by
// descending priority.
func NewRuleClassifier(rules []domain.ClassificationRule) *RuleClassifier {
	ordered := make([]domain.ClassificationRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return &RuleClassifier{rules: ordered}
}

// Classify scores a single message. The first rule (descending priority)
// whose score reaches its own threshold wins; if none fires the result is
// CategoryPersonal at low confidence so the hybrid layer escalates to AI.
func (c *RuleClassifier) Classify(msg domain.InboundMessage) (result domain.ClassificationResult) {
	start := time.Now()

	result = domain.ClassificationResult{
		MessageID:    msg.ID,
		Category:     domain.CategoryPersonal,
		Confidence:   noMatchConfidence,
		ClassifiedBy: domain.ClassifiedByRule,
	}

	defer func() {
		if r := recover(); r != nil {
			logger.WithMessage(msg.ID).Error("rule classifier panic: %v", r)
			result = domain.ClassificationResult{
				MessageID:    msg.ID,
				Category:     domain.CategoryPersonal,
				Confidence:   errorConfidence,
				ClassifiedBy: domain.ClassifiedByRule,
				Latency:      time.Since(start),
			}
		}
	}()

	body := msg.Body
	if len(body) > bodyPrefixLen {
		body = body[:bodyPrefixLen]
	}
	content := strings.ToLower(body)
	from := strings.ToLower(msg.From)
	subject := strings.ToLower(msg.Subject)

	for _, rule := range c.rules {
		score := scoreRule(rule, content, from, subject)
		if score >= rule.ConfidenceThreshold {
			result.Category = rule.Category
			result.Confidence = min(score, maxRuleConfidence)
			break
		}
	}

	result.Latency = time.Since(start)
	return result
}

// scoreRule computes the weighted score of one rule against normalized
// inputs. A group contributes its full weight on any pattern hit; groups
// with no patterns are left out of the denominator.
func scoreRule(rule domain.ClassificationRule, content, from, subject string) float64 {
	var score, total float64

	if len(rule.ContentPatterns) > 0 {
		total += weightContent
		if anyContains(content, rule.ContentPatterns) {
			score += weightContent
		}
	}
	if len(rule.FromPatterns) > 0 {
		total += weightFrom
		if anyContains(from, rule.FromPatterns) {
			score += weightFrom
		}
	}
	if len(rule.SubjectPatterns) > 0 {
		total += weightSubject
		if anyContains(subject, rule.SubjectPatterns) {
			score += weightSubject
		}
	}

	if total == 0 {
		return 0
	}
	return score / total
}

func anyContains(haystack string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
