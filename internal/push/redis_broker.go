package push

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisChannelPrefix = "push:"

// RedisBroker relays messages through Redis pub/sub so subscribers connected
// to any instance receive them. Messages reach the local hub only via the
// Redis subscription, never directly from Publish.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

// NewRedisBroker creates a broker delivering into hub.
func NewRedisBroker(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, hub: hub, logger: logger}
}

// Publish implements Publisher.
func (b *RedisBroker) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, redisChannelPrefix+msg.Channel, data).Err()
}

// Run forwards Redis messages to the local hub until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("push broker subscribed", zap.String("pattern", redisChannelPrefix+"*"))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				b.logger.Warn("discarding malformed push message", zap.String("channel", raw.Channel), zap.Error(err))
				continue
			}
			if msg.Channel == "" {
				msg.Channel = strings.TrimPrefix(raw.Channel, redisChannelPrefix)
			}
			b.hub.Deliver(msg)
		}
	}
}
