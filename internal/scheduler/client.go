package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realty_portal_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// RedisConnOpt builds the asynq connection options from the configured
// Redis URL.
func RedisConnOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// Client enqueues routing tasks. It implements the engine's TaskScheduler.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(connOpt asynq.RedisConnOpt, queue string) *Client {
	return &Client{client: asynq.NewClient(connOpt), queue: queue}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ScheduleReservationExpiry enqueues an expiry check for the reservation
// deadline. The task id carries the deadline so a later re-reservation of
// the same lead schedules its own task instead of colliding.
func (c *Client) ScheduleReservationExpiry(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	task, err := newLeadTask(TypeReservationExpire, leadID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(fmt.Sprintf("expire:%s:%d", leadID, at.Unix())),
		asynq.ProcessAt(at),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// ScheduleRedispatch enqueues an immediate dispatch re-attempt. One pending
// re-attempt per lead; racing releases collapse into the task already
// waiting, and dispatch itself tolerates a lead that moved on.
func (c *Client) ScheduleRedispatch(ctx context.Context, leadID uuid.UUID) error {
	task, err := newLeadTask(TypeLeadRedispatch, leadID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID("redispatch:"+leadID.String()),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// ScheduleBoardSelect enqueues a debounced winner selection. One pending
// selection per lead: bursts of candidatures collapse into the task already
// waiting.
func (c *Client) ScheduleBoardSelect(ctx context.Context, leadID uuid.UUID, delay time.Duration) error {
	task, err := newLeadTask(TypeBoardSelect, leadID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID("board-select:"+leadID.String()),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
