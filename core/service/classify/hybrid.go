package classify

import (
	"context"

	"jobscout/core/domain"
	"jobscout/pkg/logger"
)

// HybridConfig holds tunables for the hybrid coordinator.
type HybridConfig struct {
	// RuleConfidenceThreshold is the global cutoff: rule results at or above
	// it are trusted, results below it are escalated to AI.
	RuleConfidenceThreshold float64

	// AIFallbackEnabled disables the AI stage entirely when false; low
	// confidence rule results are then kept as-is.
	AIFallbackEnabled bool
}

// Hybrid coordinates the rule classifier and the AI fallback so AI spend is
// bounded to the genuinely ambiguous subset of a run.
type Hybrid struct {
	rules *RuleClassifier
	ai    *AIClassifier
	cfg   HybridConfig
}

// NewHybrid creates the hybrid classification coordinator.
func NewHybrid(rules *RuleClassifier, ai *AIClassifier, cfg HybridConfig) *Hybrid {
	return &Hybrid{rules: rules, ai: ai, cfg: cfg}
}

// ClassifyAll runs the ruleset over every message, escalates low-confidence
// results to AI, and merges: an AI result replaces the rule result for its
// message, every other message keeps its rule result. The returned map has
// one entry per input message.
func (h *Hybrid) ClassifyAll(ctx context.Context, msgs []domain.InboundMessage, budget *Budget) map[string]domain.ClassificationResult {
	results := make(map[string]domain.ClassificationResult, len(msgs))

	var lowConfidence []domain.InboundMessage
	for _, msg := range msgs {
		res := h.rules.Classify(msg)
		results[msg.ID] = res
		if res.Confidence < h.cfg.RuleConfidenceThreshold {
			lowConfidence = append(lowConfidence, msg)
		}
	}

	if !h.cfg.AIFallbackEnabled || h.ai == nil || len(lowConfidence) == 0 {
		return results
	}

	logger.Debug("escalating %d/%d messages to AI classification", len(lowConfidence), len(msgs))

	for _, res := range h.ai.ClassifyBatch(ctx, lowConfidence, budget) {
		results[res.MessageID] = res
	}

	return results
}
