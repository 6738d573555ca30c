package mq

import (
	"context"
	"log/slog"
)

// Publisher accumulates outbound messages for one request, deduplicating by
// merge, and flushes them to the broker after the owning unit of work has
// committed. One Publisher per request or consumer delivery; the batch is
// never shared across tasks.
type Publisher struct {
	cfg ConnConfig
	log *slog.Logger

	// routing key -> merge key -> message
	messages map[string]map[string]*Message
}

func NewPublisher(cfg ConnConfig, log *slog.Logger) *Publisher {
	return &Publisher{
		cfg:      cfg,
		log:      log,
		messages: make(map[string]map[string]*Message),
	}
}

// Push queues a message for the routing key. The first message for a
// (routing key, trace id, function name) bucket is stored as-is; later ones
// merge into it by data concatenation. Merge failures surface to the caller
// instead of dropping silently.
func (p *Publisher) Push(routingKey string, m *Message) error {
	bucket, ok := p.messages[routingKey]
	if !ok {
		bucket = make(map[string]*Message)
		p.messages[routingKey] = bucket
	}
	if existing, ok := bucket[m.key()]; ok {
		return existing.Merge(m)
	}
	bucket[m.key()] = m
	return nil
}

// Publish sends one message immediately, bypassing the batch and any merge.
func (p *Publisher) Publish(ctx context.Context, routingKey string, m *Message) error {
	conn, err := dialPublish(p.cfg)
	if err != nil {
		return err
	}
	defer conn.close()
	return p.publishOne(ctx, conn, routingKey, m)
}

// Flush opens one broker connection and publishes a point-in-time copy of
// the pending batch. Each message leaves the live batch right after its own
// publish succeeds; a mid-batch failure is logged and stops the loop, so
// already-sent messages are gone and the rest stay pending for a later
// attempt. Delivery is at-least-once per message, not transactional across
// the batch.
func (p *Publisher) Flush(ctx context.Context) error {
	conn, err := dialPublish(p.cfg)
	if err != nil {
		p.log.Error("publish messages error", "error", err)
		return err
	}
	defer conn.close()

	for routingKey, bucket := range p.snapshot() {
		for key, m := range bucket {
			if err := p.publishOne(ctx, conn, routingKey, m); err != nil {
				p.log.Error("publish messages error", "error", err, "traceId", m.TraceID)
				return err
			}
			delete(p.messages[routingKey], key)
		}
		delete(p.messages, routingKey)
	}
	return nil
}

// Clear drops the whole pending batch. Called when the owning request or
// transaction fails so no partial message surfaces.
func (p *Publisher) Clear() {
	p.messages = make(map[string]map[string]*Message)
}

// Messages returns a flattened copy of the pending batch, grouped by nothing
// in particular. Diagnostic use only; Flush works off the live batch.
func (p *Publisher) Messages() []*Message {
	var out []*Message
	for _, bucket := range p.messages {
		for _, m := range bucket {
			out = append(out, m)
		}
	}
	return out
}

// Pending counts queued messages.
func (p *Publisher) Pending() int {
	n := 0
	for _, bucket := range p.messages {
		n += len(bucket)
	}
	return n
}

func (p *Publisher) publishOne(ctx context.Context, conn *connection, routingKey string, m *Message) error {
	payload, err := m.Payload()
	if err != nil {
		return err
	}
	p.log.Info("publish message", "routingKey", routingKey, "traceId", m.TraceID, "functionName", m.FunctionName)
	if err := conn.ch.PublishWithContext(ctx, p.cfg.Exchange, routingKey, false, false, amqpPublishing(payload)); err != nil {
		return connectErr(err)
	}
	messagesPublished.WithLabelValues(routingKey).Inc()
	p.log.Info("publish complete", "traceId", m.TraceID)
	return nil
}

func (p *Publisher) snapshot() map[string]map[string]*Message {
	out := make(map[string]map[string]*Message, len(p.messages))
	for routingKey, bucket := range p.messages {
		c := make(map[string]*Message, len(bucket))
		for key, m := range bucket {
			c[key] = m
		}
		out[routingKey] = c
	}
	return out
}

type ctxKey struct{}

// WithPublisher stores the request's publisher in context so event handlers
// can queue outbound messages.
func WithPublisher(ctx context.Context, p *Publisher) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext extracts the request's publisher.
func FromContext(ctx context.Context) (*Publisher, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Publisher)
	return p, ok
}
