// SPDX-License-Identifier: MIT

// Package queue consumes join requests from a Redis FIFO list. The
// consumer is the second ingestion path next to the HTTP API and races
// on the same admission gate.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/meetkit/botd/internal/domain/session/model"
	"github.com/meetkit/botd/internal/domain/session/runner"
	"github.com/meetkit/botd/internal/log"
	"github.com/meetkit/botd/internal/metrics"
)

// Consumer pops join requests from a Redis list and hands them to the
// session manager. A message is only popped while the admission slot
// looks free; once popped it is never dropped, the consumer holds it
// and retries until the slot admits it.
type Consumer struct {
	client  *redis.Client
	manager *runner.Manager
	list    string

	// pollInterval is how often the gate is re-checked while busy.
	pollInterval time.Duration
	// popTimeout bounds each blocking pop so shutdown is responsive.
	popTimeout time.Duration
}

// Config for the queue consumer.
type Config struct {
	List         string
	PollInterval time.Duration
	PopTimeout   time.Duration
}

// NewConsumer builds a consumer for the given list.
func NewConsumer(client *redis.Client, m *runner.Manager, cfg Config) *Consumer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 2 * time.Second
	}
	return &Consumer{
		client:       client,
		manager:      m,
		list:         cfg.List,
		pollInterval: cfg.PollInterval,
		popTimeout:   cfg.PopTimeout,
	}
}

// Run consumes until ctx is cancelled. It returns nil on a clean
// shutdown and the last redis error if the connection is gone.
func (c *Consumer) Run(ctx context.Context) error {
	logger := log.WithComponent("queue")
	logger.Info().Str("list", c.list).Msg("queue consumer started")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		// Leave messages in the list while a session is in flight so
		// another fleet member can claim them.
		if c.manager.Busy() {
			if !sleepCtx(ctx, c.pollInterval) {
				return nil
			}
			continue
		}

		raw, err := c.pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn().Err(err).Msg("queue pop failed, backing off")
			if !sleepCtx(ctx, c.pollInterval) {
				return nil
			}
			continue
		}
		if raw == "" {
			continue
		}

		c.deliver(ctx, logger, raw)
	}
}

// pop blocks up to popTimeout for one message. Empty string means the
// timeout elapsed with nothing queued.
func (c *Consumer) pop(ctx context.Context) (string, error) {
	vals, err := c.client.BRPop(ctx, c.popTimeout, c.list).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	// BRPOP returns [list, value].
	if len(vals) != 2 {
		return "", nil
	}
	return vals[1], nil
}

// deliver owns a popped message until it is admitted or rejected as
// malformed. The gate may have been claimed between the busy check and
// the pop; in that case the message is held and retried, never dropped.
func (c *Consumer) deliver(ctx context.Context, logger zerolog.Logger, raw string) {
	var req model.JoinRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		logger.Warn().Err(err).Msg("discarding malformed queue message")
		return
	}

	for {
		correlationID, err := c.manager.TryStart(req)
		switch {
		case err == nil:
			logger.Info().
				Str("correlation_id", correlationID).
				Str("provider", string(req.Provider)).
				Msg("queued session admitted")
			return
		case errors.Is(err, runner.ErrBusy):
			metrics.IncAdmissionReject("queue")
			if !sleepCtx(ctx, c.pollInterval) {
				return
			}
		default:
			logger.Warn().Err(err).Msg("discarding invalid queue message")
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
