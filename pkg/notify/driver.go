package notify

import (
	"fmt"

	"github.com/example/tablepos/pkg/config"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type PubSub interface {
	Publisher
	Subscriber
}

// Open builds the transport named by cfg.Driver: "redis" (the default),
// "rabbitmq", or "local" for a single process. The returned func releases the
// transport.
func Open(cfg config.NotifyConfig, rabbit config.RabbitMQConfig, client *redis.Client, logger *zap.Logger) (PubSub, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case "", "redis":
		if client == nil {
			return nil, nil, fmt.Errorf("redis notifier needs a redis client")
		}
		return NewRedisNotifier(client, cfg.Channel, logger), noop, nil
	case "rabbitmq":
		n, err := DialRabbit(rabbit.URL, rabbit.Exchange, logger)
		if err != nil {
			return nil, nil, err
		}
		return n, n.Close, nil
	case "local":
		return NewHub(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}
