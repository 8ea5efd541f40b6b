package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"roadAccident/internal/domain"
	"roadAccident/pkg/e"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SMSQueue is a FIFO list of delivery jobs: LPUSH on enqueue, BRPOP on consume.
type SMSQueue struct {
	client *redis.Client
	key    string
}

func NewSMSQueue(client *redis.Client, key string) *SMSQueue {
	return &SMSQueue{client: client, key: key}
}

func (q *SMSQueue) Enqueue(ctx context.Context, job domain.SMSJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
		return e.Wrap("redis.SMSQueue.Enqueue", errors.Join(e.ErrDependency, err))
	}
	return nil
}

func (q *SMSQueue) BRPop(ctx context.Context, timeout time.Duration) (domain.SMSJob, error) {
	var job domain.SMSJob

	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return job, e.ErrQueueEmpty
		}
		return job, err
	}
	if len(res) < 2 {
		return job, e.ErrQueueEmpty
	}
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return job, err
	}
	return job, nil
}

// Claim takes a short-lived per-report lock so that a job re-enqueued by the
// sweeper is not delivered twice while the first attempt is still running.
func (q *SMSQueue) Claim(ctx context.Context, id uuid.UUID, ttl time.Duration) (bool, error) {
	return q.client.SetNX(ctx, q.key+":claim:"+id.String(), 1, ttl).Result()
}

func (q *SMSQueue) Release(ctx context.Context, id uuid.UUID) error {
	return q.client.Del(ctx, q.key+":claim:"+id.String()).Err()
}

func (q *SMSQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
