package mq

import (
	"context"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tally/pkg/domainerrors"
)

// Handler processes one delivery. Returning an error triggers the
// application-level retry machine; it never causes broker redelivery.
type Handler func(ctx context.Context, m *Message) error

const reconnectDelay = time.Second

// Consumer pulls deliveries from one bound queue and applies a handler
// synchronously per delivery. Retries are implemented by re-publishing the
// message to its own routing key with a scheduled-visibility time; the
// broker delivery itself is acknowledged in all cases.
type Consumer struct {
	cfg ConsumeConfig
	log *slog.Logger

	// now and republish are swappable for tests.
	now       func() time.Time
	republish func(ctx context.Context, routingKey string, m *Message) error
}

func NewConsumer(cfg ConsumeConfig, log *slog.Logger) *Consumer {
	pub := NewPublisher(cfg.ConnConfig, log)
	return &Consumer{
		cfg:       cfg,
		log:       log.With("queue", cfg.Queue),
		now:       time.Now,
		republish: pub.Publish,
	}
}

// Consume binds the queue and processes deliveries until ctx is cancelled.
// Connection failures are classified: a broker-initiated connection close or
// a generic connection error sleeps briefly and resumes; a channel-level
// protocol error is fatal and stops consumption. The initial connection
// failing at all returns ErrConnect so the supervisor can give up early.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	first := true
	for {
		conn, err := dialConsume(c.cfg)
		if err != nil {
			if first {
				return err
			}
			c.log.Error("connection was closed, retrying", "error", err)
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}
		first = false

		connClosed := conn.conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := conn.ch.NotifyClose(make(chan *amqp.Error, 1))
		deliveries, err := conn.ch.ConsumeWithContext(ctx, c.cfg.Queue, "", false, false, false, false, nil)
		if err != nil {
			conn.close()
			if fatal := c.classify(err); fatal != nil {
				return fatal
			}
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		c.log.Info("start consuming",
			"exchange", c.cfg.Exchange, "bindingKey", c.cfg.BindingKey)

		open := true
		for open {
			select {
			case <-ctx.Done():
				c.log.Info("stop consuming")
				conn.close()
				return nil
			case d, ok := <-deliveries:
				if !ok {
					open = false
					break
				}
				c.handleDelivery(ctx, d, h)
			}
		}

		// Delivery stream ended without cancellation: inspect the close
		// notifications to decide between resume and fatal stop.
		amqpErr := closeReason(chClosed, connClosed)
		conn.close()
		if amqpErr == nil {
			c.log.Error("connection was closed, retrying")
		} else {
			if fatal := c.classify(amqpErr); fatal != nil {
				return fatal
			}
			c.log.Error("connection was closed by broker, retrying", "error", amqpErr)
		}
		if !c.sleep(ctx) {
			return nil
		}
	}
}

// closeReason drains the channel- and connection-close notifications after
// the delivery stream ends. The channel notification is checked first: a
// channel-level protocol error must stop consumption even when the
// connection looks healthy.
func closeReason(chClosed, connClosed <-chan *amqp.Error) *amqp.Error {
	select {
	case err := <-chClosed:
		return err
	default:
	}
	select {
	case err := <-connClosed:
		return err
	default:
	}
	return nil
}

// classify returns a non-nil fatal error for channel-level protocol
// failures and nil for everything recoverable.
func (c *Consumer) classify(err error) error {
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) && amqpErr.Recover {
		c.log.Error("caught a channel error, stopping", "error", amqpErr)
		return domainerrors.Wrap(err, domainerrors.CodeProtocol, "channel error")
	}
	return nil
}

func (c *Consumer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(reconnectDelay):
		return true
	}
}

// handleDelivery runs the retry state machine for one delivery. The broker
// ack happens in every branch: success, reschedule, and terminal failure.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery, h Handler) {
	m, err := DecodeMessage(d.Body)
	if err != nil {
		c.log.Error("discard undecodable delivery", "error", err)
		_ = d.Ack(false)
		return
	}

	// A future visibility time means the message is not due yet: requeue it
	// unmodified without invoking the handler.
	if m.Started != nil && m.Started.After(c.now()) {
		c.requeue(ctx, d, m)
		return
	}

	c.log.Info("message", "traceId", m.TraceID, "functionName", m.FunctionName)
	if err := h(ctx, m); err != nil {
		c.retry(ctx, d, m, err)
		return
	}
	messagesConsumed.WithLabelValues(c.cfg.Queue).Inc()
	_ = d.Ack(false)
}

func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, m *Message, cause error) {
	started := c.now().Add(time.Duration(m.RetryDelaySecond) * time.Second)
	m.Started = &started

	if m.AttemptNumber == UnlimitedAttempts {
		c.log.Warn("consume failed", "error", cause, "traceId", m.TraceID)
		c.log.Info("retry message", "traceId", m.TraceID)
		messageRetries.WithLabelValues(c.cfg.Queue).Inc()
		c.requeue(ctx, d, m)
		return
	}

	m.AttemptNumber--
	if m.AttemptNumber > 0 {
		c.log.Warn("consume failed", "error", cause, "traceId", m.TraceID)
		c.log.Info("retry message", "remaining", m.AttemptNumber, "traceId", m.TraceID)
		messageRetries.WithLabelValues(c.cfg.Queue).Inc()
		c.requeue(ctx, d, m)
		return
	}

	c.log.Error("consume failed, giving up", "error", cause, "traceId", m.TraceID)
	messagesDead.WithLabelValues(c.cfg.Queue).Inc()
	_ = d.Ack(false)
}

// requeue re-publishes to the delivery's own routing key and acks the
// original. If the re-publish fails the original is nacked back onto the
// queue so the message is not lost.
func (c *Consumer) requeue(ctx context.Context, d amqp.Delivery, m *Message) {
	if err := c.republish(ctx, d.RoutingKey, m); err != nil {
		c.log.Error("requeue failed", "error", err, "traceId", m.TraceID)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
