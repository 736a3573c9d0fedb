package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"jobscout/pkg/apperr"
)

// runStateTTL bounds how long per-run state is kept for inspection.
const runStateTTL = 7 * 24 * time.Hour

// QueueConfig holds queue tunables.
type QueueConfig struct {
	// Env namespaces all keys: one logical queue per deployment environment.
	Env string

	// ClaimTTL bounds how long the single-flight claim may outlive a dead
	// worker before the type unblocks on its own.
	ClaimTTL time.Duration

	CompletedHistory int64
	FailedHistory    int64
}

// Queue is the durable run queue. The single-flight invariant is enforced by
// an atomic SET NX EX claim per run type; the waiting/active lookup before it
// is only a fast path for a friendlier error.
type Queue struct {
	client *redis.Client
	cfg    QueueConfig
	log    zerolog.Logger
}

// NewQueue creates the queue over an existing Redis client.
func NewQueue(client *redis.Client, cfg QueueConfig, log zerolog.Logger) *Queue {
	if cfg.ClaimTTL == 0 {
		cfg.ClaimTTL = 30 * time.Minute
	}
	if cfg.CompletedHistory == 0 {
		cfg.CompletedHistory = 5
	}
	if cfg.FailedHistory == 0 {
		cfg.FailedHistory = 10
	}
	return &Queue{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "queue").Logger(),
	}
}

// Key layout, all namespaced by environment.
func (q *Queue) streamKey() string           { return fmt.Sprintf("jobscout:%s:runs", q.cfg.Env) }
func (q *Queue) dlqKey() string              { return fmt.Sprintf("jobscout:%s:runs:dlq", q.cfg.Env) }
func (q *Queue) claimKey(t RunType) string   { return fmt.Sprintf("jobscout:%s:claim:%s", q.cfg.Env, t) }
func (q *Queue) runKey(id string) string     { return fmt.Sprintf("jobscout:%s:run:%s", q.cfg.Env, id) }
func (q *Queue) activeKey() string           { return fmt.Sprintf("jobscout:%s:active", q.cfg.Env) }
func (q *Queue) historyKey(s RunState) string {
	return fmt.Sprintf("jobscout:%s:history:%s", q.cfg.Env, s)
}

// group is the consumer group name shared by all workers of a deployment.
const group = "jobscout-workers"

// Enqueue adds a run of the given type, enforcing single-flight: if a run of
// that type is already waiting or active the enqueue is rejected with an
// ALREADY_QUEUED error. The atomic claim is the real mutual exclusion; the
// preceding lookup only produces a better message for the common case.
func (q *Queue) Enqueue(ctx context.Context, runType RunType, triggeredBy string, priority Priority) (*Run, error) {
	if !KnownRunTypes[runType] {
		return nil, apperr.BadRequest(fmt.Sprintf("unknown run type: %s", runType))
	}

	// Fast path: a visible claim means a run of this type is in flight.
	if existing, err := q.client.Get(ctx, q.claimKey(runType)).Result(); err == nil && existing != "" {
		return nil, apperr.AlreadyQueued(string(runType)).WithDetail("run_id", existing)
	}

	run := NewRun(runType, triggeredBy, priority)

	// The claim is the atomic single-flight primitive. TTL guards against a
	// worker dying while holding it.
	ok, err := q.client.SetNX(ctx, q.claimKey(runType), run.ID, q.cfg.ClaimTTL).Result()
	if err != nil {
		return nil, apperr.QueueError("claim", err)
	}
	if !ok {
		return nil, apperr.AlreadyQueued(string(runType))
	}

	if err := q.saveRun(ctx, run); err != nil {
		q.client.Del(ctx, q.claimKey(runType))
		return nil, err
	}

	payload, err := json.Marshal(run)
	if err != nil {
		q.client.Del(ctx, q.claimKey(runType))
		return nil, apperr.QueueError("marshal run", err)
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey(),
		Values: map[string]any{"data": payload},
	}).Err(); err != nil {
		q.client.Del(ctx, q.claimKey(runType))
		return nil, apperr.QueueError("xadd", err)
	}

	q.log.Info().
		Str("run_id", run.ID).
		Str("type", string(runType)).
		Str("triggered_by", triggeredBy).
		Msg("run enqueued")
	return run, nil
}

// CreateGroup ensures the consumer group exists.
func (q *Queue) CreateGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.streamKey(), group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// releaseClaim frees the single-flight slot for a run type.
func (q *Queue) releaseClaim(ctx context.Context, runType RunType) {
	if err := q.client.Del(ctx, q.claimKey(runType)).Err(); err != nil {
		q.log.Error().Err(err).Str("type", string(runType)).Msg("failed to release claim")
	}
}

// refreshClaim extends the claim TTL while a run is active.
func (q *Queue) refreshClaim(ctx context.Context, runType RunType) {
	q.client.Expire(ctx, q.claimKey(runType), q.cfg.ClaimTTL)
}

// saveRun persists run state for the admin surface.
func (q *Queue) saveRun(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return apperr.QueueError("marshal run", err)
	}
	if err := q.client.Set(ctx, q.runKey(run.ID), data, runStateTTL).Err(); err != nil {
		return apperr.QueueError("save run", err)
	}
	return nil
}

// loadRun reads run state; nil when unknown.
func (q *Queue) loadRun(ctx context.Context, id string) (*Run, error) {
	data, err := q.client.Get(ctx, q.runKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.QueueError("load run", err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, apperr.QueueError("unmarshal run", err)
	}
	return &run, nil
}

// markActive transitions a run to active and records it as the current run.
func (q *Queue) markActive(ctx context.Context, run *Run) {
	run.State = StateActive
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if err := q.saveRun(ctx, run); err != nil {
		q.log.Error().Err(err).Str("run_id", run.ID).Msg("failed to save active run state")
	}
	q.client.Set(ctx, q.activeKey(), run.ID, q.cfg.ClaimTTL)
	q.refreshClaim(ctx, run.Type)
}

// markTerminal transitions a run to completed or failed, records bounded
// history, clears the active pointer, and releases the single-flight claim.
func (q *Queue) markTerminal(ctx context.Context, run *Run, state RunState, lastErr error) {
	run.State = state
	run.FinishedAt = time.Now()
	if state == StateCompleted {
		run.Progress = 100
	}
	if lastErr != nil {
		run.LastError = lastErr.Error()
	}
	if err := q.saveRun(ctx, run); err != nil {
		q.log.Error().Err(err).Str("run_id", run.ID).Msg("failed to save terminal run state")
	}

	historyLimit := q.cfg.CompletedHistory
	if state == StateFailed {
		historyLimit = q.cfg.FailedHistory
	}
	data, err := json.Marshal(run)
	if err == nil {
		pipe := q.client.Pipeline()
		pipe.LPush(ctx, q.historyKey(state), data)
		pipe.LTrim(ctx, q.historyKey(state), 0, historyLimit-1)
		if _, err := pipe.Exec(ctx); err != nil {
			q.log.Error().Err(err).Msg("failed to record run history")
		}
	}

	q.client.Del(ctx, q.activeKey())
	q.releaseClaim(ctx, run.Type)
}

// ReportProgress implements the pipeline's ProgressSink against run state,
// so the admin surface sees live progress.
func (q *Queue) ReportProgress(runID string, pct int, note string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	run, err := q.loadRun(ctx, runID)
	if err != nil || run == nil {
		return
	}
	if pct > run.Progress {
		run.Progress = pct
	}
	run.Note = note
	if err := q.saveRun(ctx, run); err != nil {
		q.log.Debug().Err(err).Str("run_id", runID).Msg("progress save failed")
	}
	q.refreshClaim(ctx, run.Type)
}

// Status is the operator-facing queue snapshot.
type Status struct {
	Waiting   int64      `json:"waiting"`
	Active    int64      `json:"active"`
	Completed int64      `json:"completed"`
	Failed    int64      `json:"failed"`
	ActiveRun *ActiveRun `json:"active_run,omitempty"`
}

// ActiveRun describes the currently executing run.
type ActiveRun struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Progress int    `json:"progress"`
	Note     string `json:"note,omitempty"`
}

// Status returns waiting/active/completed/failed counts and the active run.
func (q *Queue) Status(ctx context.Context) (*Status, error) {
	st := &Status{}

	length, err := q.client.XLen(ctx, q.streamKey()).Result()
	if err != nil && err != redis.Nil {
		return nil, apperr.QueueError("xlen", err)
	}

	var pending int64
	if info, err := q.client.XPending(ctx, q.streamKey(), group).Result(); err == nil {
		pending = info.Count
	}

	// Delivered-but-unacked entries are the active ones; the rest of the
	// stream is waiting.
	st.Active = pending
	st.Waiting = length - pending
	if st.Waiting < 0 {
		st.Waiting = 0
	}

	st.Completed, _ = q.client.LLen(ctx, q.historyKey(StateCompleted)).Result()
	st.Failed, _ = q.client.LLen(ctx, q.historyKey(StateFailed)).Result()

	if activeID, err := q.client.Get(ctx, q.activeKey()).Result(); err == nil && activeID != "" {
		if run, err := q.loadRun(ctx, activeID); err == nil && run != nil {
			st.ActiveRun = &ActiveRun{
				ID:       run.ID,
				Name:     string(run.Type),
				Progress: run.Progress,
				Note:     run.Note,
			}
		}
	}
	return st, nil
}

// RecentFailed returns the retained failed-run history, newest first.
func (q *Queue) RecentFailed(ctx context.Context) ([]Run, error) {
	raw, err := q.client.LRange(ctx, q.historyKey(StateFailed), 0, q.cfg.FailedHistory-1).Result()
	if err != nil && err != redis.Nil {
		return nil, apperr.QueueError("lrange", err)
	}
	runs := make([]Run, 0, len(raw))
	for _, item := range raw {
		var run Run
		if err := json.Unmarshal([]byte(item), &run); err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}
