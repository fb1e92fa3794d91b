package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// EventQueue is an analytics sink that appends events to a Redis list for a
// separate uploader to drain.
type EventQueue struct {
	client *backend.Client
	key    string
	limit  int64
}

// NewEventQueue queues onto key. A positive limit caps the list length,
// dropping the oldest events.
func NewEventQueue(client *backend.Client, key string, limit int64) *EventQueue {
	return &EventQueue{client: client, key: key, limit: limit}
}

// Track implements ports.EventSink.
func (q *EventQueue) Track(ctx context.Context, e domain.LifecycleEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.RPush(ctx, q.key, data)
	if q.limit > 0 {
		pipe.LTrim(ctx, q.key, -q.limit, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to queue event: %w", err)
	}
	return nil
}

// Drain pops up to max events in the order they were queued.
func (q *EventQueue) Drain(ctx context.Context, max int) ([]domain.LifecycleEvent, error) {
	raw, err := q.client.LPopCount(ctx, q.key, max).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to drain events: %w", err)
	}

	events := make([]domain.LifecycleEvent, 0, len(raw))
	for _, item := range raw {
		var e domain.LifecycleEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return events, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// Len is the number of queued events.
func (q *EventQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
