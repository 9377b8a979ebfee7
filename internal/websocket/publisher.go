package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"blinkfit-backend/internal/models"
)

func channelFor(userID uuid.UUID) string {
	return "user_updates:" + userID.String()
}

// Publisher fans messages out through Redis so every server instance holding
// one of the user's sockets delivers them.
type Publisher struct {
	redis *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redis: redisClient}
}

func (p *Publisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal ws message: %w", err)
	}
	return p.redis.Publish(ctx, channelFor(userID), data).Err()
}
