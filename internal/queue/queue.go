// Package queue implements the durable payment job queue on Redis.
//
// Jobs travel through a Redis list (LPUSH/BRPOP) for at-least-once delivery;
// each job additionally owns a hash keyed by its id carrying the payload,
// lifecycle status and, once processed, the result JSON. The hash is what the
// job status endpoint reads, so a job remains inspectable after it has left
// the list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	queueKey         = "payments:queue"
	jobKeyPrefix     = "payments:job:"
	pendingKeyPrefix = "payments:pending:"

	// jobTTL bounds how long a finished job's status stays queryable.
	jobTTL = 24 * time.Hour
)

// ErrJobNotFound reports an unknown job id. Callers must distinguish it from
// a queue backend failure: the former is a 404, the latter a 503.
var ErrJobNotFound = errors.New("queue: job not found")

// Status is the job lifecycle state.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Card is the credit card block as submitted by the client and forwarded to
// the gateway. It lives only in the queue payload; it is never persisted.
type Card struct {
	Number          string `json:"number"`
	ExpirationMonth int    `json:"expiration_month"`
	ExpirationYear  int    `json:"expiration_year"`
	CVV             string `json:"cvv"`
	Name            string `json:"name"`
}

// Complete reports whether every required field is present.
func (c Card) Complete() bool {
	return c.Number != "" && c.CVV != "" && c.Name != "" &&
		c.ExpirationMonth != 0 && c.ExpirationYear != 0
}

// PaymentJob is the queue-resident work item for one payment attempt. The
// worker trusts only the charge amount and card data from here; everything
// else about the order is re-read from the store.
type PaymentJob struct {
	ID         string  `json:"id"`
	OrderID    int64   `json:"order_id"`
	Amount     float64 `json:"amount"`
	Card       Card    `json:"credit_card"`
	GatewayURL string  `json:"gateway_url"`
}

// JobInfo is the status-endpoint view of a job.
type JobInfo struct {
	ID     string          `json:"id"`
	Status Status          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// RedisQueue is the go-redis implementation of the payment queue.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func pendingKey(orderID int64) string {
	return fmt.Sprintf("%s%d", pendingKeyPrefix, orderID)
}

// Enqueue registers the job hash and pushes the id onto the work list.
// Returns the assigned job id.
func (q *RedisQueue) Enqueue(ctx context.Context, job *PaymentJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("queue: marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(job.ID),
		"payload", payload,
		"status", string(StatusQueued),
		"enqueued_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, jobKey(job.ID), jobTTL)
	pipe.LPush(ctx, queueKey, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("queue: enqueue job for order %d: %w", job.OrderID, err)
	}

	return job.ID, nil
}

// Dequeue blocks up to timeout waiting for work, marks the job running, and
// returns it. A nil job with nil error means the timeout elapsed; workers
// use that to re-check their context.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*PaymentJob, error) {
	res, err := q.client.BRPop(ctx, timeout, queueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: dequeue: %w", err)
	}

	// BRPop returns [key, value].
	jobID := res[1]

	payload, err := q.client.HGet(ctx, jobKey(jobID), "payload").Result()
	if err != nil {
		return nil, fmt.Errorf("queue: load job %s: %w", jobID, err)
	}

	var job PaymentJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		// Poison entry: mark it failed instead of crashing the worker loop.
		_ = q.client.HSet(ctx, jobKey(jobID), "status", string(StatusFailed)).Err()
		return nil, fmt.Errorf("queue: decode job %s: %w", jobID, err)
	}

	if err := q.client.HSet(ctx, jobKey(jobID), "status", string(StatusRunning)).Err(); err != nil {
		return nil, fmt.Errorf("queue: mark job %s running: %w", jobID, err)
	}

	return &job, nil
}

// SetResult records the outcome of a processed job.
func (q *RedisQueue) SetResult(ctx context.Context, jobID string, result []byte, status Status) error {
	err := q.client.HSet(ctx, jobKey(jobID),
		"status", string(status),
		"result", result,
		"finished_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("queue: set result for job %s: %w", jobID, err)
	}
	return nil
}

// Job returns the status view of a job. ErrJobNotFound for unknown ids; any
// other error means the queue backend itself is unreachable.
func (q *RedisQueue) Job(ctx context.Context, jobID string) (*JobInfo, error) {
	fields, err := q.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: fetch job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	info := &JobInfo{
		ID:     jobID,
		Status: Status(fields["status"]),
	}
	if res, ok := fields["result"]; ok && res != "" {
		info.Result = json.RawMessage(res)
	}
	return info, nil
}

// TryAcquirePending takes the per-order submission guard. Returns false when
// another payment attempt for the order is already in flight. The TTL bounds
// the lockout if a worker dies between dequeue and release.
func (q *RedisQueue) TryAcquirePending(ctx context.Context, orderID int64, ttl time.Duration) (bool, error) {
	ok, err := q.client.SetNX(ctx, pendingKey(orderID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("queue: acquire pending guard for order %d: %w", orderID, err)
	}
	return ok, nil
}

// ReleasePending frees the per-order guard after an attempt completes.
func (q *RedisQueue) ReleasePending(ctx context.Context, orderID int64) error {
	if err := q.client.Del(ctx, pendingKey(orderID)).Err(); err != nil {
		return fmt.Errorf("queue: release pending guard for order %d: %w", orderID, err)
	}
	return nil
}
