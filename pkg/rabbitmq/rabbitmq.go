package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/streadway/amqp"
)

// DefaultQueue is the queue asset removal requests are published to.
const DefaultQueue = "asset_cleanup_queue"

// DefaultRetryDelay is how long a failed request waits before it is requeued.
const DefaultRetryDelay = 5 * time.Second

// AssetRemoval asks a worker to delete an object from the asset store.
type AssetRemoval struct {
	Ref         string    `json:"ref"`
	Kind        string    `json:"kind"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queue      string
	retryDelay time.Duration
	logger     *slog.Logger
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL        string
	Queue      string
	RetryDelay time.Duration
}

// NewClient connects to RabbitMQ, opens a channel and declares the queue.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declare(ch, cfg.Queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("RabbitMQ client connected", "queue", cfg.Queue)

	return &Client{
		conn:       conn,
		channel:    ch,
		queue:      cfg.Queue,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}, nil
}

func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", queue, err)
	}
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during RabbitMQ client close: %v", errs)
	}
	return nil
}

// PublishAssetRemoval publishes a persistent removal request.
func (c *Client) PublishAssetRemoval(ctx context.Context, msg AssetRemoval) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.RequestedAt.IsZero() {
		msg.RequestedAt = time.Now()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal asset removal: %w", err)
	}

	err = c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    msg.RequestedAt,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("asset removal published", "ref", msg.Ref, "kind", msg.Kind, "reason", msg.Reason)
	return nil
}

// Handler processes one removal request. A returned error requeues the message.
type Handler func(ctx context.Context, msg AssetRemoval) error

// ConsumeAssetRemovals delivers removal requests to handler until ctx is done
// or the channel closes. Messages that cannot be decoded are dropped.
func (c *Client) ConsumeAssetRemovals(ctx context.Context, handler Handler) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("waiting for asset removal requests", "queue", c.queue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("stopping asset removal consumer")
				return
			case d, ok := <-msgs:
				if !ok {
					c.logger.Warn("RabbitMQ delivery channel closed")
					return
				}
				c.dispatch(ctx, d, handler)
			}
		}
	}()

	return nil
}

func (c *Client) dispatch(ctx context.Context, d amqp.Delivery, handler Handler) {
	var msg AssetRemoval
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error("dropping malformed asset removal", "delivery_tag", d.DeliveryTag, "error", err)
		if err := d.Nack(false, false); err != nil {
			c.logger.Error("failed to nack message", "delivery_tag", d.DeliveryTag, "error", err)
		}
		return
	}

	if err := handler(ctx, msg); err != nil {
		c.logger.Warn("asset removal failed, requeueing", "ref", msg.Ref, "redelivered", d.Redelivered, "retry_in", c.retryDelay, "error", err)
		// Hold the message so an unavailable store is not retried in a tight loop.
		timer := time.NewTimer(c.retryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
		if err := d.Nack(false, true); err != nil {
			c.logger.Error("failed to nack message", "delivery_tag", d.DeliveryTag, "error", err)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "delivery_tag", d.DeliveryTag, "error", err)
	}
}
