// Package queue moves pipeline run jobs through a Redis list so a scheduler
// or a user can hand work to long-running workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client is the subset of *redis.Client the queue uses.
type Client interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Job asks a worker for one pipeline run.
type Job struct {
	ID         string `json:"id"`
	Theme      string `json:"theme,omitempty"`
	Publish    bool   `json:"publish"`
	Privacy    string `json:"privacy,omitempty"`
	EnqueuedAt string `json:"enqueued_at"`
}

// Handler runs one job.
type Handler func(ctx context.Context, job Job) error

type Queue struct {
	client  Client
	name    string
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewRedisClient accepts a redis:// URL or a bare host:port.
func NewRedisClient(url string) (*redis.Client, error) {
	if !strings.Contains(url, "://") {
		return redis.NewClient(&redis.Options{Addr: url}), nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func New(client Client, name string, log *zap.Logger) *Queue {
	return &Queue{client: client, name: name, timeout: 5 * time.Second, now: time.Now, log: log.Named("queue")}
}

// Enqueue pushes job, filling in its ID and timestamp.
func (q *Queue) Enqueue(ctx context.Context, job Job) (Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()[:8]
	}
	job.EnqueuedAt = q.now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(job)
	if err != nil {
		return job, err
	}
	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		return job, fmt.Errorf("enqueue to %s: %w", q.name, err)
	}
	q.log.Info("job queued", zap.String("job", job.ID), zap.String("theme", job.Theme))
	return job, nil
}

// Listen pops jobs until ctx is done. A failing job is logged and the worker
// moves on.
func (q *Queue) Listen(ctx context.Context, handle Handler) error {
	q.log.Info("listening", zap.String("queue", q.name))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := q.client.BRPop(ctx, q.timeout, q.name).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.log.Warn("pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		// res[0] is the list name, res[1] the payload
		if len(res) != 2 {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.log.Warn("dropping malformed job", zap.Error(err))
			continue
		}
		q.log.Info("job received", zap.String("job", job.ID))
		if err := handle(ctx, job); err != nil {
			q.log.Error("job failed", zap.String("job", job.ID), zap.Error(err))
		}
	}
}
