package notify

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context, event Event) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.channel, err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, handler func(Event)) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	// wait for the subscription confirmation so no event is lost after return
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", n.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := Unmarshal([]byte(msg.Payload))
			if err != nil {
				n.logger.Warn("Dropping malformed change event", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			handler(event)
		}
	}
}
