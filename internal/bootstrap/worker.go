package bootstrap

import (
	"context"
	"time"

	"jobscout/adapter/in/trigger"
	"jobscout/core/service/pipeline"
	"jobscout/internal/queue"
	"jobscout/pkg/apperr"
	"jobscout/pkg/logger"
)

// runDispatcher routes queued runs to the pipeline operations.
type runDispatcher struct {
	processor *pipeline.Processor
	retention time.Duration
}

func (d *runDispatcher) HandleRun(ctx context.Context, run *queue.Run) error {
	switch run.Type {
	case queue.RunProcessJobs:
		return d.processor.ProcessJobs(ctx, run.ID)
	case queue.RunDailySummary:
		return d.processor.DailySummary(ctx, run.ID)
	case queue.RunCleanup:
		return d.processor.Cleanup(ctx, run.ID, d.retention)
	default:
		return apperr.BadRequest("unknown run type: " + string(run.Type))
	}
}

// Worker bundles the queue consumer, the scheduler, and the token guardian
// background loop.
type Worker struct {
	deps      *Dependencies
	consumer  *queue.Worker
	scheduler *trigger.Scheduler
}

// NewWorker builds the worker process over shared dependencies.
func NewWorker(deps *Dependencies) *Worker {
	cfg := deps.Config

	dispatcher := &runDispatcher{
		processor: deps.Processor,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
	}

	consumer := queue.NewWorker(deps.Redis, deps.Queue, dispatcher, queue.WorkerConfig{
		Consumer:     cfg.WorkerID,
		BlockTime:    time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
		MaxAttempts:  cfg.MaxAttempts,
		BackoffBase:  time.Duration(cfg.BackoffBaseSec) * time.Second,
		PendingIdle:  time.Duration(cfg.PendingIdleSec) * time.Second,
		PendingCheck: time.Duration(cfg.PendingCheckSec) * time.Second,
	}, deps.ZLog)

	var scheduler *trigger.Scheduler
	if cfg.SchedulerEnabled {
		scheduler = trigger.NewScheduler(deps.Queue, trigger.SchedulerConfig{
			ProcessJobsSpec:  cfg.ProcessJobsCron,
			DailySummarySpec: cfg.DailySummaryCron,
			CleanupSpec:      cfg.CleanupCron,
		})
	}

	return &Worker{
		deps:      deps,
		consumer:  consumer,
		scheduler: scheduler,
	}
}

// Run starts the background loops and blocks consuming runs until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) error {
	go w.deps.Guardian.StartChecks(ctx)

	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
		defer w.scheduler.Stop()
	}

	logger.Info("worker %s consuming queue %q", w.deps.Config.WorkerID, w.deps.Config.QueueEnv)
	err := w.consumer.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}
