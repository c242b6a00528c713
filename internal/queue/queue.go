// Package queue carries generation tasks to background workers over a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ryhan5/aicademy/internal/record"
)

//go:generate mockgen -source=queue.go -destination=../mocks/queue/mock_queue.go -package=mock_queue

// Task asks a worker to run one generation attempt for an existing record.
type Task struct {
	RecordID    string             `json:"recordId"`
	CourseID    string             `json:"courseId"`
	ContentType record.ContentType `json:"contentType"`
	Prompt      string             `json:"prompt,omitempty"`
	Attempt     int                `json:"attempt"`
	EnqueuedAt  time.Time          `json:"enqueuedAt"`
}

// Dispatcher hands tasks to the background facility.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

// Consumer receives tasks. Receive returns ErrEmpty when none arrived within its wait.
type Consumer interface {
	Receive(ctx context.Context) (Task, error)
}

// ErrEmpty is returned by Receive when the wait elapsed without a task.
var ErrEmpty = errors.New("queue is empty")

// RedisQueue is a FIFO on a Redis list: LPUSH to dispatch, BRPOP to receive.
type RedisQueue struct {
	client       redis.UniversalClient
	key          string
	blockTimeout time.Duration
	now          func() time.Time
}

// NewRedisQueue creates a queue on key.
func NewRedisQueue(client redis.UniversalClient, key string, blockTimeout time.Duration) *RedisQueue {
	return &RedisQueue{
		client:       client,
		key:          key,
		blockTimeout: blockTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch implements Dispatcher.
func (q *RedisQueue) Dispatch(ctx context.Context, task Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = q.now()
	}
	payload, err := Encode(task)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis.LPush(%s) > %w", q.key, err)
	}
	return nil
}

// Receive implements Consumer.
func (q *RedisQueue) Receive(ctx context.Context) (Task, error) {
	result, err := q.client.BRPop(ctx, q.blockTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return Task{}, ErrEmpty
	}
	if err != nil {
		return Task{}, fmt.Errorf("redis.BRPop(%s) > %w", q.key, err)
	}
	// BRPOP replies with [key, value].
	if len(result) != 2 {
		return Task{}, fmt.Errorf("unexpected BRPOP reply of %d elements", len(result))
	}
	return Decode([]byte(result[1]))
}

// Len returns the number of waiting tasks.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis.LLen(%s) > %w", q.key, err)
	}
	return n, nil
}

// Encode serializes a task for the wire.
func Encode(task Task) ([]byte, error) {
	if task.RecordID == "" {
		return nil, errors.New("task has no record id")
	}
	if !task.ContentType.Valid() {
		return nil, fmt.Errorf("task has unsupported content type %q", task.ContentType)
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal(task) > %w", err)
	}
	return payload, nil
}

// Decode parses a task produced by Encode.
func Decode(payload []byte) (Task, error) {
	var task Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return Task{}, fmt.Errorf("json.Unmarshal(task) > %w", err)
	}
	if task.RecordID == "" || !task.ContentType.Valid() {
		return Task{}, fmt.Errorf("invalid task payload: %s", payload)
	}
	return task, nil
}
