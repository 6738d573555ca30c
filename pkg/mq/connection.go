package mq

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"tally/pkg/domainerrors"
)

// ErrConnect marks a broker connection that could not be established at all.
// The consumer supervisor treats it as unrecoverable and burns its whole
// restart budget.
var ErrConnect = errors.New("mq: failed to create connection")

// ConnConfig describes the publishing side of the topology: one topic-style
// exchange per service.
type ConnConfig struct {
	URL          string
	Exchange     string
	ExchangeType string
}

func (c ConnConfig) exchangeType() string {
	if c.ExchangeType == "" {
		return "topic"
	}
	return c.ExchangeType
}

// ConsumeConfig adds the consuming side: a durable queue bound to the
// exchange with a wildcard routing pattern scoped to the service name.
type ConsumeConfig struct {
	ConnConfig
	Queue      string
	BindingKey string
}

// connection pairs an AMQP connection with a channel whose topology has been
// declared. Connections are short-lived: publishers open one per flush, the
// consumer redials after connection-level failures.
type connection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func dialPublish(cfg ConnConfig) (*connection, error) {
	c, err := dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := c.ch.ExchangeDeclare(cfg.Exchange, cfg.exchangeType(), false, false, false, false, nil); err != nil {
		c.close()
		return nil, connectErr(err)
	}
	return c, nil
}

func dialConsume(cfg ConsumeConfig) (*connection, error) {
	c, err := dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := c.ch.ExchangeDeclare(cfg.Exchange, cfg.exchangeType(), false, false, false, false, nil); err != nil {
		c.close()
		return nil, connectErr(err)
	}
	if _, err := c.ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		c.close()
		return nil, connectErr(err)
	}
	if err := c.ch.QueueBind(cfg.Queue, cfg.BindingKey, cfg.Exchange, false, nil); err != nil {
		c.close()
		return nil, connectErr(err)
	}
	return c, nil
}

func dial(url string) (*connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, connectErr(err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, connectErr(err)
	}
	return &connection{conn: conn, ch: ch}, nil
}

func connectErr(err error) error {
	return domainerrors.Wrap(fmt.Errorf("%w: %v", ErrConnect, err), domainerrors.CodeTransient, "open broker connection")
}

func amqpPublishing(body []byte) amqp.Publishing {
	return amqp.Publishing{ContentType: "application/json", Body: body}
}

func (c *connection) close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		_ = c.conn.Close()
	}
}
