// Package queue carries faculty notifications between the API and the mail
// worker over RabbitMQ.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/pkg/jobs"
)

const publishTimeout = 5 * time.Second

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyReturn(c chan amqp.Return) chan amqp.Return
	Close() error
}

type consumeChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Dial connects to the broker and declares the durable queue.
func Dial(url, queue string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	defer ch.Close()
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return conn, nil
}

// Publisher sends persistent JSON messages to one queue. Messages are
// published mandatory; the broker hands unroutable ones back and they are
// logged.
type Publisher struct {
	mu     sync.Mutex
	ch     publishChannel
	queue  string
	logger *zap.Logger
}

// NewPublisher opens a channel for publishing.
func NewPublisher(conn *amqp.Connection, queue string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	return newPublisher(ch, queue, logger), nil
}

func newPublisher(ch publishChannel, queue string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{ch: ch, queue: queue, logger: logger.With(zap.String("queue", queue))}
	go p.watchReturns(ch.NotifyReturn(make(chan amqp.Return, 1)))
	return p
}

// watchReturns runs until the channel is closed, which closes returns.
func (p *Publisher) watchReturns(returns <-chan amqp.Return) {
	for r := range returns {
		p.logger.Error("message returned by broker",
			zap.String("message_id", r.MessageId),
			zap.String("routing_key", r.RoutingKey),
			zap.Uint16("reply_code", r.ReplyCode),
			zap.String("reply_text", r.ReplyText),
		)
	}
}

// Publish sends body through the default exchange. Channels are not safe
// for concurrent publishing, so calls are serialised.
func (p *Publisher) Publish(ctx context.Context, messageID string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.PublishWithContext(ctx, "", p.queue, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	return nil
}

// Close closes the channel.
func (p *Publisher) Close() error {
	return p.ch.Close()
}

// Handler processes one message body. Returning an error marked with
// jobs.Permanent drops the message; any other error requeues it.
type Handler func(ctx context.Context, body []byte) error

// Consumer reads messages with manual acknowledgement.
type Consumer struct {
	ch       consumeChannel
	queue    string
	prefetch int
	logger   *zap.Logger
}

// NewConsumer opens a channel for consuming.
func NewConsumer(conn *amqp.Connection, queue string, prefetch int, logger *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	return newConsumer(ch, queue, prefetch, logger), nil
}

func newConsumer(ch consumeChannel, queue string, prefetch int, logger *zap.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{ch: ch, queue: queue, prefetch: prefetch, logger: logger.With(zap.String("queue", queue))}
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.Info("consumer started", zap.Int("prefetch", c.prefetch))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d, handler)
		}
	}
}

// Close closes the channel.
func (c *Consumer) Close() error {
	return c.ch.Close()
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, handler Handler) {
	err := handler(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Warn("ack failed", zap.String("message_id", d.MessageId), zap.Error(ackErr))
		}
	case jobs.IsPermanent(err):
		c.logger.Error("dropping message", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
	default:
		c.logger.Warn("message failed, requeueing", zap.String("message_id", d.MessageId), zap.Bool("redelivered", d.Redelivered), zap.Error(err))
		_ = d.Nack(false, true)
	}
}
