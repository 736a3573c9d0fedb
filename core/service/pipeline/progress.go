package pipeline

import (
	"sync"

	"jobscout/core/port/out"
	"jobscout/pkg/logger"
)

// Progress percentage bands per stage. Per-message work interpolates inside
// the extract band proportional to processed/total.
const (
	pctInit     = 0
	pctFetch    = 5
	pctClassify = 15
	pctExtract  = 20
	pctNotify   = 85
	pctFinalize = 95
	pctDone     = 100
)

// LogSink reports progress to the structured log.
type LogSink struct{}

func (LogSink) ReportProgress(runID string, pct int, note string) {
	logger.WithRun(runID).WithField("pct", pct).Info("progress: %s", note)
}

// MultiSink fans progress out to several sinks.
type MultiSink []out.ProgressSink

func (m MultiSink) ReportProgress(runID string, pct int, note string) {
	for _, s := range m {
		s.ReportProgress(runID, pct, note)
	}
}

// monotonicSink clamps progress so reported percentages never decrease
// within a run.
type monotonicSink struct {
	mu   sync.Mutex
	last int
	next out.ProgressSink
}

func newMonotonicSink(next out.ProgressSink) *monotonicSink {
	return &monotonicSink{next: next}
}

func (s *monotonicSink) ReportProgress(runID string, pct int, note string) {
	s.mu.Lock()
	if pct < s.last {
		pct = s.last
	}
	s.last = pct
	s.mu.Unlock()
	if s.next != nil {
		s.next.ReportProgress(runID, pct, note)
	}
}

// bandPct interpolates a position inside [lo, hi] from done/total.
func bandPct(lo, hi, done, total int) int {
	if total <= 0 {
		return hi
	}
	return lo + (hi-lo)*done/total
}
