package notification

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes notification:new events over redis pub/sub.
// Frontend bridges subscribe to notifications:<user_id>.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a redis-backed publisher.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishNew(ctx context.Context, userID uuid.UUID, n *NotificationResponse, unreadCount int) error {
	if p == nil || p.client == nil {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"type": "notification:new",
		"data": map[string]interface{}{
			"notification": n,
			"unread_count": unreadCount,
		},
	})
	if err != nil {
		return err
	}

	return p.client.Publish(ctx, "notifications:"+userID.String(), payload).Err()
}
