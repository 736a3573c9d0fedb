package classify

import (
	"context"
	"math"
	"time"

	"jobscout/core/domain"
	"jobscout/core/port/out"
	"jobscout/pkg/logger"
)

// fallbackAIConfidence is used when the provider returns an invalid or
// out-of-range confidence.
const fallbackAIConfidence = 0.7

// AIClassifierConfig holds tunables for the AI fallback stage.
type AIClassifierConfig struct {
	CostPerItem float64       // per-call cost estimate checked against the budget; must upper-bound actual cost
	CallDelay   time.Duration // fixed inter-call delay (provider rate limiting)
}

// AIClassifier classifies messages the ruleset could not, metered against a
// per-run budget. Items beyond budget, and items whose provider call fails,
// get a zero-cost fallback classification rather than being dropped.
type AIClassifier struct {
	client out.AIClient
	cfg    AIClassifierConfig

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// NewAIClassifier creates the AI fallback classifier.
func NewAIClassifier(client out.AIClient, cfg AIClassifierConfig) *AIClassifier {
	return &AIClassifier{
		client: client,
		cfg:    cfg,
		sleep:  time.Sleep,
	}
}

// ClassifyBatch classifies the batch, spending from budget. The returned
// slice has exactly one result per input message, in order.
func (c *AIClassifier) ClassifyBatch(ctx context.Context, msgs []domain.InboundMessage, budget *Budget) []domain.ClassificationResult {
	results := make([]domain.ClassificationResult, 0, len(msgs))

	for i, msg := range msgs {
		if ctx.Err() != nil {
			results = append(results, fallbackResult(msg.ID))
			continue
		}

		if !budget.Allow(c.cfg.CostPerItem) {
			logger.WithMessage(msg.ID).Debug("AI budget exhausted (spent=%.4f), using fallback", budget.Spent())
			results = append(results, fallbackResult(msg.ID))
			continue
		}

		if i > 0 && c.cfg.CallDelay > 0 {
			c.sleep(c.cfg.CallDelay)
		}

		start := time.Now()
		raw, cost, err := c.client.ClassifyMessage(ctx, msg)
		if err != nil {
			// Never abort the batch for one provider error.
			logger.WithMessage(msg.ID).WithError(err).Warn("AI classification failed, using fallback")
			results = append(results, fallbackResult(msg.ID))
			continue
		}
		budget.Add(cost)

		results = append(results, domain.ClassificationResult{
			MessageID:    msg.ID,
			Category:     domain.ParseCategory(raw.Category),
			Confidence:   coerceConfidence(raw.Confidence),
			ClassifiedBy: domain.ClassifiedByAI,
			Cost:         cost,
			Latency:      time.Since(start),
		})
	}

	return results
}

// fallbackResult is the zero-cost classification used when the budget is
// exhausted or the provider fails for an item.
func fallbackResult(messageID string) domain.ClassificationResult {
	return domain.ClassificationResult{
		MessageID:    messageID,
		Category:     domain.CategoryPersonal,
		Confidence:   0.5,
		ClassifiedBy: domain.ClassifiedByAI,
		Cost:         0,
	}
}

func coerceConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fallbackAIConfidence
	}
	return v
}
