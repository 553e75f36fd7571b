package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RouteStatus is the live processing state of one route, kept in Redis so
// status polling and the WebSocket stream don't hit MySQL.
type RouteStatus struct {
	RouteID   uint      `json:"routeId"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusCache tracks per-route processing status and publishes updates for
// subscribers.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusCache creates the status cache.
func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client, ttl: 24 * time.Hour}
}

func statusKey(routeID uint) string {
	return fmt.Sprintf("route:status:%d", routeID)
}

func statusChannel(routeID uint) string {
	return fmt.Sprintf("route:status:updates:%d", routeID)
}

// Set stores the current status and publishes it to subscribers.
func (c *StatusCache) Set(ctx context.Context, routeID uint, status, detail string) error {
	if c.client == nil {
		return nil
	}
	payload, err := json.Marshal(RouteStatus{
		RouteID:   routeID,
		Status:    status,
		Detail:    detail,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal route status: %w", err)
	}
	if err := c.client.Set(ctx, statusKey(routeID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store route status: %w", err)
	}
	// Best effort: a missed publish only delays the next poll.
	c.client.Publish(ctx, statusChannel(routeID), payload)
	return nil
}

// Get returns the stored status, or nil when none is tracked (old routes
// whose status entry expired are simply done).
func (c *StatusCache) Get(ctx context.Context, routeID uint) (*RouteStatus, error) {
	if c.client == nil {
		return nil, nil
	}
	val, err := c.client.Get(ctx, statusKey(routeID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read route status: %w", err)
	}
	var st RouteStatus
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal route status: %w", err)
	}
	return &st, nil
}

// Subscribe returns a channel of status updates for one route. Cancel the
// context to unsubscribe.
func (c *StatusCache) Subscribe(ctx context.Context, routeID uint) (<-chan RouteStatus, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	sub := c.client.Subscribe(ctx, statusChannel(routeID))

	out := make(chan RouteStatus, 8)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var st RouteStatus
				if err := json.Unmarshal([]byte(msg.Payload), &st); err != nil {
					continue
				}
				select {
				case out <- st:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
