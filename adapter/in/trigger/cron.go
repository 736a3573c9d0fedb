// Package trigger provides the scheduled enqueue sources.
package trigger

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"jobscout/internal/queue"
	"jobscout/pkg/apperr"
	"jobscout/pkg/logger"
)

// SchedulerConfig holds the cron specs per run type. Empty specs disable
// that schedule.
type SchedulerConfig struct {
	ProcessJobsSpec  string
	DailySummarySpec string
	CleanupSpec      string
}

// Scheduler enqueues runs on cron schedules. A schedule firing while a run of
// the same type is still in flight is expected and logged, not an error; the
// queue's single-flight claim rejects the duplicate.
type Scheduler struct {
	cron  *cron.Cron
	queue *queue.Queue
	cfg   SchedulerConfig
}

// NewScheduler creates the scheduler over the run queue.
func NewScheduler(q *queue.Queue, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		queue: q,
		cfg:   cfg,
	}
}

// Start registers the schedules and starts the cron loop.
func (s *Scheduler) Start() error {
	schedules := []struct {
		spec    string
		runType queue.RunType
	}{
		{s.cfg.ProcessJobsSpec, queue.RunProcessJobs},
		{s.cfg.DailySummarySpec, queue.RunDailySummary},
		{s.cfg.CleanupSpec, queue.RunCleanup},
	}

	for _, sched := range schedules {
		if sched.spec == "" {
			continue
		}
		runType := sched.runType
		if _, err := s.cron.AddFunc(sched.spec, func() {
			s.enqueue(runType)
		}); err != nil {
			return apperr.ConfigError("invalid cron spec for " + string(runType) + ": " + sched.spec).WithError(err)
		}
		logger.Info("scheduled %s at %q", runType, sched.spec)
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for in-flight trigger callbacks.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) enqueue(runType queue.RunType) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run, err := s.queue.Enqueue(ctx, runType, "cron", queue.PriorityNormal)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeAlreadyQueued) {
			logger.Info("cron skipped %s: previous run still in flight", runType)
			return
		}
		logger.WithError(err).Error("cron enqueue failed for %s", runType)
		return
	}
	logger.WithRun(run.ID).Info("cron enqueued %s", runType)
}
