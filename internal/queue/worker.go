package queue

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RunHandler executes one run. The worker owns retries; handlers just fail.
type RunHandler interface {
	HandleRun(ctx context.Context, run *Run) error
}

// WorkerConfig holds worker tunables.
type WorkerConfig struct {
	Consumer     string        // consumer name within the group
	BlockTime    time.Duration // XREADGROUP block duration
	MaxAttempts  int           // attempts per run before it fails terminally
	BackoffBase  time.Duration // first retry delay; doubles per attempt
	PendingIdle  time.Duration // reclaim runs stuck pending longer than this
	PendingCheck time.Duration // how often to look for stuck runs
}

// Worker consumes the run stream with fixed concurrency 1: pipeline runs
// never execute concurrently with each other, because the extract/dedupe/
// notify sequence is not safe to interleave against the same mailbox and
// store. Retries happen inside a single delivery with exponential backoff;
// blocking during backoff is acceptable precisely because concurrency is 1.
type Worker struct {
	client  *redis.Client
	queue   *Queue
	handler RunHandler
	cfg     WorkerConfig
	log     zerolog.Logger
}

// NewWorker creates the single-consumer worker.
func NewWorker(client *redis.Client, q *Queue, handler RunHandler, cfg WorkerConfig, log zerolog.Logger) *Worker {
	if cfg.BlockTime == 0 {
		cfg.BlockTime = 5 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	if cfg.PendingIdle == 0 {
		cfg.PendingIdle = 2 * time.Minute
	}
	if cfg.PendingCheck == 0 {
		cfg.PendingCheck = 30 * time.Second
	}
	return &Worker{
		client:  client,
		queue:   q,
		handler: handler,
		cfg:     cfg,
		log:     log.With().Str("component", "worker").Str("consumer", cfg.Consumer).Logger(),
	}
}

// Run consumes until ctx is cancelled. Stuck-pending reclaim happens inline
// between deliveries, on this same goroutine, so reclaimed runs obey the same
// concurrency guarantee as fresh ones.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.queue.CreateGroup(ctx); err != nil {
		return err
	}

	w.log.Info().
		Str("stream", w.queue.streamKey()).
		Int("max_attempts", w.cfg.MaxAttempts).
		Dur("backoff_base", w.cfg.BackoffBase).
		Msg("worker started")

	nextReclaim := time.Now().Add(w.cfg.PendingCheck)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !time.Now().Before(nextReclaim) {
			w.reclaimPending(ctx)
			nextReclaim = time.Now().Add(w.cfg.PendingCheck)
		}

		streams, err := w.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: w.cfg.Consumer,
			Streams:  []string{w.queue.streamKey(), ">"},
			Count:    1,
			Block:    w.cfg.BlockTime,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("stream read error")
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				w.handleDelivery(ctx, msg)
			}
		}
	}
}

// handleDelivery executes one queued run with attempt-based retries, then
// acknowledges the stream entry. Terminal failure moves the entry to the DLQ
// first so it stays inspectable.
func (w *Worker) handleDelivery(ctx context.Context, msg redis.XMessage) {
	run, ok := w.decode(msg)
	if !ok {
		// Undecodable entries can never succeed; park them in the DLQ.
		w.moveToDLQ(ctx, msg)
		w.ack(ctx, msg.ID)
		return
	}

	log := w.log.With().Str("run_id", run.ID).Str("type", string(run.Type)).Logger()
	w.queue.markActive(ctx, run)

	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		run.Attempts = attempt
		if attempt > 1 {
			delay := backoffDelay(w.cfg.BackoffBase, attempt-1)
			log.Warn().Err(lastErr).Int("attempt", attempt).Dur("backoff", delay).Msg("retrying run after backoff")
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = w.cfg.MaxAttempts // give up; reclaim will not help a cancelled worker
			case <-time.After(delay):
			}
			w.queue.refreshClaim(ctx, run.Type)
		}

		lastErr = w.handler.HandleRun(ctx, run)
		if lastErr == nil {
			w.queue.markTerminal(ctx, run, StateCompleted, nil)
			w.ack(ctx, msg.ID)
			log.Info().Int("attempts", attempt).Msg("run completed")
			return
		}
		if ctx.Err() != nil {
			break
		}
	}

	log.Error().Err(lastErr).Int("attempts", run.Attempts).Msg("run failed terminally")
	w.queue.markTerminal(ctx, run, StateFailed, lastErr)
	w.moveToDLQ(ctx, msg)
	w.ack(ctx, msg.ID)
}

// reclaimPending recovers runs stuck pending (worker crash mid-run) by
// claiming idle entries back to this consumer and executing them here. It is
// only ever called from the consume loop's goroutine: a reclaimed run must
// not interleave with a regular delivery.
func (w *Worker) reclaimPending(ctx context.Context) {
	pending, err := w.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: w.queue.streamKey(),
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	if err != nil {
		if err != redis.Nil {
			w.log.Error().Err(err).Msg("pending lookup failed")
		}
		return
	}

	for _, p := range pending {
		if p.Idle < w.cfg.PendingIdle || p.Consumer == w.cfg.Consumer {
			continue
		}
		claimed, err := w.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   w.queue.streamKey(),
			Group:    group,
			Consumer: w.cfg.Consumer,
			MinIdle:  w.cfg.PendingIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			w.log.Error().Err(err).Str("id", p.ID).Msg("claim failed")
			continue
		}
		for _, msg := range claimed {
			w.log.Info().Str("id", msg.ID).Msg("reclaimed stuck run")
			w.handleDelivery(ctx, msg)
		}
	}
}

func (w *Worker) decode(msg redis.XMessage) (*Run, bool) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		w.log.Error().Str("id", msg.ID).Msg("stream entry missing data field")
		return nil, false
	}
	var run Run
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		w.log.Error().Err(err).Str("id", msg.ID).Msg("undecodable run payload")
		return nil, false
	}
	return &run, true
}

func (w *Worker) moveToDLQ(ctx context.Context, msg redis.XMessage) {
	if err := w.client.XAdd(ctx, &redis.XAddArgs{
		Stream: w.queue.dlqKey(),
		Values: msg.Values,
	}).Err(); err != nil {
		w.log.Error().Err(err).Str("id", msg.ID).Msg("failed to move entry to DLQ")
	}
}

// ack acknowledges the stream entry and deletes it. Terminal entries must
// leave the stream: XLEN minus pending is the waiting count the status
// surface reports, and an append-only stream would grow without bound.
func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.client.XAck(ctx, w.queue.streamKey(), group, id).Err(); err != nil {
		w.log.Error().Err(err).Str("id", id).Msg("ack failed")
	}
	if err := w.client.XDel(ctx, w.queue.streamKey(), id).Err(); err != nil {
		w.log.Error().Err(err).Str("id", id).Msg("failed to delete finished entry")
	}
}
