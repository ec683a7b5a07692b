package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/blockdoc/blockdoc/common/logger"
)

// ErrDrop signals that a job must not be retried. Handlers return it when the
// failure is deterministic and re-running with the same input cannot succeed.
var ErrDrop = errors.New("queue: drop job")

// Job is the message carried through the queue. It holds only the record
// identifier; handlers re-fetch current state from the store on every attempt.
type Job struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Handler processes a job. A non-nil error other than ErrDrop schedules a
// retry until the attempt budget is exhausted.
type Handler func(ctx context.Context, job *Job) error

// Queue is a durable at-least-once job queue backed by Redis. Ready jobs live
// in a list, scheduled retries in a sorted set keyed by due time. Jobs being
// handled are parked in a processing list so a crashed worker loses nothing.
type Queue struct {
	redis       *redis.Client
	name        string
	maxAttempts int
	backoff     []time.Duration
	log         *logger.Logger
	onExhausted func(ctx context.Context, job *Job, err error)
}

// New creates a queue over the given Redis client
func New(rc *redis.Client, name string, maxAttempts int, backoff []time.Duration, log *logger.Logger) *Queue {
	return &Queue{
		redis:       rc,
		name:        name,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		log:         log,
	}
}

func (q *Queue) delayedKey() string {
	return q.name + ":delayed"
}

func (q *Queue) processingKey() string {
	return q.name + ":processing"
}

// OnExhausted registers a callback invoked when a job fails its final attempt
// with a retryable error. Must be set before Consume starts.
func (q *Queue) OnExhausted(fn func(ctx context.Context, job *Job, err error)) {
	q.onExhausted = fn
}

// Enqueue pushes a first-attempt job for the given document
func (q *Queue) Enqueue(ctx context.Context, documentID string) error {
	job := &Job{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
	return q.push(ctx, job)
}

func (q *Queue) push(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := q.redis.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	q.log.Info("job enqueued", "queue", q.name, "job_id", job.ID, "document_id", job.DocumentID, "attempt", job.Attempt)
	return nil
}

// scheduleRetry places the job in the delayed set, due after the backoff delay
// for its attempt number
func (q *Queue) scheduleRetry(ctx context.Context, job *Job) error {
	retry := &Job{
		ID:         job.ID,
		DocumentID: job.DocumentID,
		Attempt:    job.Attempt + 1,
		EnqueuedAt: job.EnqueuedAt,
	}

	delay := q.backoff[len(q.backoff)-1]
	if idx := job.Attempt - 1; idx < len(q.backoff) {
		delay = q.backoff[idx]
	}

	payload, err := json.Marshal(retry)
	if err != nil {
		return fmt.Errorf("marshal retry job: %w", err)
	}

	due := time.Now().Add(delay)
	if err := q.redis.ZAdd(ctx, q.delayedKey(), redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: payload,
	}).Err(); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}

	q.log.Warn("job retry scheduled",
		"queue", q.name,
		"job_id", job.ID,
		"document_id", job.DocumentID,
		"next_attempt", retry.Attempt,
		"delay", delay,
	)
	return nil
}

// promoteDue moves delayed jobs whose due time has passed back onto the ready list
func (q *Queue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	members, err := q.redis.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("read delayed jobs: %w", err)
	}

	for _, m := range members {
		// Remove first so a concurrent worker cannot promote the same job twice
		removed, err := q.redis.ZRem(ctx, q.delayedKey(), m).Result()
		if err != nil {
			return fmt.Errorf("remove delayed job: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.redis.LPush(ctx, q.name, m).Err(); err != nil {
			return fmt.Errorf("promote delayed job: %w", err)
		}
	}
	return nil
}

// requeueOrphans moves jobs a previous run left behind in the processing list
// back onto the ready list. Called once at consumer startup, before any pop.
func (q *Queue) requeueOrphans(ctx context.Context) error {
	for {
		_, err := q.redis.LMove(ctx, q.processingKey(), q.name, "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("requeue orphaned job: %w", err)
		}
		q.log.Warn("orphaned job requeued", "queue", q.name)
	}
}

// Consume blocks, processing jobs until the context is cancelled. Each job is
// atomically moved from the ready list into the processing list and removed
// only after the handler finishes, so a crash mid-handle leaves the payload
// parked for the next startup's requeueOrphans pass.
func (q *Queue) Consume(ctx context.Context, handler Handler) error {
	q.log.Info("consuming queue", "queue", q.name, "max_attempts", q.maxAttempts)

	if err := q.requeueOrphans(ctx); err != nil {
		q.log.Error("requeue orphaned jobs failed", "queue", q.name, "error", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := q.promoteDue(ctx); err != nil {
			q.log.Error("promote delayed jobs failed", "queue", q.name, "error", err)
		}

		payload, err := q.redis.BLMove(ctx, q.name, q.processingKey(), "RIGHT", "LEFT", time.Second).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.log.Error("queue pop failed", "queue", q.name, "error", err)
			time.Sleep(time.Second)
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			q.log.Error("malformed job dropped", "queue", q.name, "error", err)
			q.ack(ctx, payload)
			continue
		}

		q.process(ctx, &job, handler)
		if ctx.Err() != nil {
			// Shutdown mid-handle: leave the payload parked, the next
			// startup requeues it. Handlers re-read state, so a replay
			// of a finished job is harmless.
			return ctx.Err()
		}
		q.ack(ctx, payload)
	}
}

// ack removes a handled payload from the processing list
func (q *Queue) ack(ctx context.Context, payload string) {
	if err := q.redis.LRem(ctx, q.processingKey(), 1, payload).Err(); err != nil {
		q.log.Error("failed to ack job", "queue", q.name, "error", err)
	}
}

func (q *Queue) process(ctx context.Context, job *Job, handler Handler) {
	err := handler(ctx, job)
	if err == nil {
		return
	}

	if errors.Is(err, ErrDrop) {
		q.log.Info("job dropped", "queue", q.name, "job_id", job.ID, "document_id", job.DocumentID)
		return
	}

	if job.Attempt >= q.maxAttempts {
		q.log.Error("job attempts exhausted",
			"queue", q.name,
			"job_id", job.ID,
			"document_id", job.DocumentID,
			"attempts", job.Attempt,
			"error", err,
		)
		if q.onExhausted != nil {
			q.onExhausted(ctx, job, err)
		}
		return
	}

	if rerr := q.scheduleRetry(ctx, job); rerr != nil {
		q.log.Error("failed to schedule retry", "queue", q.name, "job_id", job.ID, "error", rerr)
	}
}

// Depth returns the number of ready jobs, for diagnostics
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.redis.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}
