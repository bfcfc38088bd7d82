package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Queue pushes the payload to a set of redis lists. Consumers pop with
// BRPOP, so LPUSH keeps per-list FIFO order.
type Queue struct {
	client *redis.Client
	lists  []string
}

// NewQueue creates a queue channel publishing to the given lists.
func NewQueue(client *redis.Client, lists []string) *Queue {
	return &Queue{client: client, lists: lists}
}

// Name implements Channel.
func (q *Queue) Name() string { return "queue" }

// Send implements Channel.
func (q *Queue) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	var firstErr error
	for _, list := range q.lists {
		if err := q.client.LPush(ctx, list, body).Err(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("lpush %s: %w", list, err)
		}
	}
	return firstErr
}
