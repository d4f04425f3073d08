package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConfig locates the notification queue.
type AMQPConfig struct {
	URL       string
	QueueName string
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes messages as persistent JSON to a durable queue that a
// mail worker consumes.
type AMQPNotifier struct {
	conn    *amqp.Connection
	channel publisher
	closer  func() error
	queue   string
	now     func() time.Time
}

// DialAMQP connects and declares the queue.
func DialAMQP(cfg AMQPConfig) (*AMQPNotifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("notify: amqp url is required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "booking.notifications"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("notify: connect to broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(cfg.QueueName, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("notify: declare queue: %w", err)
	}

	return &AMQPNotifier{
		conn:    conn,
		channel: channel,
		closer:  channel.Close,
		queue:   cfg.QueueName,
		now:     time.Now,
	}, nil
}

// Send implements Notifier.
func (n *AMQPNotifier) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal message: %w", err)
	}
	err = n.channel.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.now(),
	})
	if err != nil {
		return fmt.Errorf("notify: publish to %s: %w", n.queue, err)
	}
	return nil
}

// Close releases the channel and connection.
func (n *AMQPNotifier) Close() error {
	var errs []error
	if n.closer != nil {
		errs = append(errs, n.closer())
	}
	if n.conn != nil {
		errs = append(errs, n.conn.Close())
	}
	return errors.Join(errs...)
}
