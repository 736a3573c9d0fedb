// Package queue implements the durable Redis-backed run queue with
// single-flight semantics per run type.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// RunType identifies a pipeline run kind. Exactly one run per type may be
// waiting or active at a time.
type RunType string

const (
	RunProcessJobs  RunType = "process-jobs"
	RunDailySummary RunType = "daily-summary"
	RunCleanup      RunType = "cleanup-jobs"
)

// KnownRunTypes is the closed set of enqueueable run types.
var KnownRunTypes = map[RunType]bool{
	RunProcessJobs:  true,
	RunDailySummary: true,
	RunCleanup:      true,
}

// RunState is the lifecycle state of a queued run.
type RunState string

const (
	StateWaiting   RunState = "waiting"
	StateActive    RunState = "active"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
)

// Priority orders trigger sources. Manual and chat triggers outrank cron.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
)

// Run is one queued pipeline execution.
type Run struct {
	ID          string    `json:"id"`
	Type        RunType   `json:"type"`
	TriggeredBy string    `json:"triggered_by"`
	Priority    Priority  `json:"priority"`
	Progress    int       `json:"progress"`
	Note        string    `json:"note,omitempty"`
	State       RunState  `json:"state"`
	Attempts    int       `json:"attempts"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// NewRun creates a waiting run for the given type and trigger.
func NewRun(runType RunType, triggeredBy string, priority Priority) *Run {
	return &Run{
		ID:          uuid.New().String(),
		Type:        runType,
		TriggeredBy: triggeredBy,
		Priority:    priority,
		State:       StateWaiting,
		EnqueuedAt:  time.Now(),
	}
}

// backoffDelay returns the delay before the given retry attempt: the base
// delay doubled per prior attempt (attempt 1 → base, 2 → 2x, 3 → 4x).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
