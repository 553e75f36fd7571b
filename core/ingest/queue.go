package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job is one unit of background work: generate artifacts and resolve the
// start location for an already-created route.
type Job struct {
	RouteID uint `json:"routeId"`
	Attempt int  `json:"attempt"`
}

// JobQueue is a durable queue of processing jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks up to the given timeout; it returns nil with no
	// error when the queue stayed empty.
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
}

const jobQueueKey = "ingest:jobs"

// RedisQueue is the Redis-list-backed job queue. Jobs are pushed on the
// left and popped from the right, giving FIFO at-least-once handling.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates the queue on top of an existing Redis client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, jobQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, jobQueueKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply: %v", res)
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
