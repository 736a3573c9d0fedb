// Package pipeline drives the end-to-end processing run: fetch, classify,
// extract, dedupe, score, notify, persist.
package pipeline

import (
	"time"

	"jobscout/core/service/classify"
)

// RunContext carries all per-run mutable state. It is created at run start
// and discarded at run end; nothing in it survives across runs, so counters
// and cost can never leak between runs.
type RunContext struct {
	RunID     string
	StartedAt time.Time
	Budget    *classify.Budget

	TotalMessages int
	Processed     int
	Skipped       int
	Duplicates    int
	Extracted     int
	Notified      int
	Failures      int
}

// NewRunContext seeds a fresh run context with its own AI budget.
func NewRunContext(runID string, maxCost float64) *RunContext {
	return &RunContext{
		RunID:     runID,
		StartedAt: time.Now(),
		Budget:    classify.NewBudget(maxCost),
	}
}
