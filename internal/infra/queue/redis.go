package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chat-timeline/internal/domain"
	"chat-timeline/internal/infra/metrics"
)

const ackTimeout = 5 * time.Second

// RedisRebuildQueue реализует очередь задач пересчёта на базе Redis lists.
// Полученная задача лежит в списке <key>:processing, пока её не подтвердят,
// поэтому ack умеет вернуть задачу в очередь.
type RedisRebuildQueue struct {
	client     *redis.Client
	key        string
	processing string
	// pollTimeout ограничивает одно ожидание BLMOVE, чтобы Receive видел отмену ctx.
	pollTimeout time.Duration
}

// NewRedisRebuildQueue создаёт очередь по указанному ключу.
func NewRedisRebuildQueue(client *redis.Client, key string) *RedisRebuildQueue {
	return &RedisRebuildQueue{
		client:      client,
		key:         key,
		processing:  key + ":processing",
		pollTimeout: time.Second,
	}
}

// Enqueue публикует задачу в хвост очереди.
func (q *RedisRebuildQueue) Enqueue(ctx context.Context, job domain.RebuildJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу и переносит её в список обработки.
func (q *RedisRebuildQueue) Receive(ctx context.Context) (domain.RebuildJob, domain.RebuildAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.RebuildJob{}, nil, err
		}

		raw, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", q.pollTimeout).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.RebuildJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.RebuildJob{}, nil, err
		}

		var job domain.RebuildJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// битое сообщение не вернётся в очередь
			_ = q.settle(raw, domain.AckReject)
			return domain.RebuildJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		return job, func(outcome domain.AckOutcome) error {
			return q.settle(raw, outcome)
		}, nil
	}
}

// settle убирает задачу из списка обработки. При AckRequeue задача
// возвращается в голову очереди и будет получена следующей.
// Работает и после отмены контекста воркера.
func (q *RedisRebuildQueue) settle(raw string, outcome domain.AckOutcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()

	start := time.Now()
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processing, 1, raw)
		if outcome == domain.AckRequeue {
			pipe.RPush(ctx, q.key, raw)
		}
		return nil
	})
	metrics.ObserveNetworkRequest("redis", "ack_"+outcome.String(), q.key, start, err)
	if err != nil {
		return fmt.Errorf("settle job: %w", err)
	}
	return nil
}
