package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitNotifier fans change events out over a fanout exchange. Every
// subscriber gets its own exclusive auto-delete queue.
type RabbitNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *zap.Logger
	mu       sync.Mutex
}

func DialRabbit(url, exchange string, logger *zap.Logger) (*RabbitNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &RabbitNotifier{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

func (n *RabbitNotifier) Publish(ctx context.Context, event Event) error {
	body, err := event.Marshal()
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	return n.ch.PublishWithContext(ctx, n.exchange, "", false, false, amqp.Publishing{
		DeliveryMode: amqp.Transient,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Type:         string(event.Type),
		Body:         body,
	})
}

func (n *RabbitNotifier) Subscribe(ctx context.Context, handler func(Event)) error {
	ch, err := n.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", n.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			event, err := Unmarshal(d.Body)
			if err != nil {
				n.logger.Warn("Dropping malformed change event", zap.ByteString("body", d.Body), zap.Error(err))
				continue
			}
			handler(event)
		}
	}
}

func (n *RabbitNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
