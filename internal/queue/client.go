package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/docingest/internal/config"
)

// Client enqueues admin tasks. Admin tasks are never retried.
type Client struct {
	client *asynq.Client
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(RedisOpt(cfg)),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueRequeue schedules a requeue of fileID and returns the task id.
func (c *Client) EnqueueRequeue(ctx context.Context, fileID uuid.UUID) (string, error) {
	task, err := NewRequeueTask(fileID)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task, asynq.MaxRetry(0), asynq.Timeout(5*time.Minute))
}

func (c *Client) EnqueueReconcile(ctx context.Context, fileID uuid.UUID) (string, error) {
	task, err := NewReconcileTask(fileID)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task, asynq.MaxRetry(0), asynq.Timeout(time.Minute))
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (string, error) {
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return info.ID, nil
}
