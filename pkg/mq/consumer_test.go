package mq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/pkg/domainerrors"
)

// fakeAcknowledger records broker acknowledgements.
type fakeAcknowledger struct {
	acks     int
	nacks    int
	requeued bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error { a.acks++; return nil }
func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeued = requeue
	return nil
}
func (a *fakeAcknowledger) Reject(uint64, bool) error { return nil }

type consumerFixture struct {
	consumer    *Consumer
	ack         *fakeAcknowledger
	republished []*Message
	routingKeys []string
	now         time.Time
}

func newConsumerFixture(t *testing.T) *consumerFixture {
	t.Helper()
	f := &consumerFixture{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	f.ack = &fakeAcknowledger{}
	f.consumer = NewConsumer(ConsumeConfig{
		ConnConfig: ConnConfig{Exchange: "test-exchange"},
		Queue:      "test-queue",
		BindingKey: "#.test.#",
	}, slog.Default())
	f.consumer.now = func() time.Time { return f.now }
	f.consumer.republish = func(_ context.Context, routingKey string, m *Message) error {
		f.routingKeys = append(f.routingKeys, routingKey)
		f.republished = append(f.republished, m)
		return nil
	}
	return f
}

func (f *consumerFixture) delivery(t *testing.T, m *Message) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(m)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: f.ack, Body: body, RoutingKey: "billing.test"}
}

func TestHandleDeliverySuccessAcks(t *testing.T) {
	f := newConsumerFixture(t)
	var handled *Message

	f.consumer.handleDelivery(context.Background(), f.delivery(t, NewMessage("t", "f", []any{"x"})),
		func(_ context.Context, m *Message) error { handled = m; return nil })

	require.NotNil(t, handled)
	assert.Equal(t, 1, f.ack.acks)
	assert.Empty(t, f.republished)
}

func TestHandleDeliveryAcksUndecodableBody(t *testing.T) {
	f := newConsumerFixture(t)
	handled := false

	f.consumer.handleDelivery(context.Background(),
		amqp.Delivery{Acknowledger: f.ack, Body: []byte("not json")},
		func(context.Context, *Message) error { handled = true; return nil })

	assert.False(t, handled, "undecodable deliveries never reach the handler")
	assert.Equal(t, 1, f.ack.acks)
}

func TestHandleDeliveryReschedulesFutureMessage(t *testing.T) {
	f := newConsumerFixture(t)
	future := f.now.Add(time.Minute)
	m := NewMessage("t", "f", []any{"x"})
	m.Started = &future
	handled := false

	f.consumer.handleDelivery(context.Background(), f.delivery(t, m),
		func(context.Context, *Message) error { handled = true; return nil })

	assert.False(t, handled, "a not-yet-due message skips the handler")
	require.Len(t, f.republished, 1)
	assert.Equal(t, "billing.test", f.routingKeys[0], "requeued to its own routing key")
	assert.Equal(t, DefaultAttempts, f.republished[0].AttemptNumber, "requeued unmodified")
	assert.True(t, future.Equal(*f.republished[0].Started))
	assert.Equal(t, 1, f.ack.acks)
}

func TestHandleDeliveryRunsDueMessage(t *testing.T) {
	f := newConsumerFixture(t)
	past := f.now.Add(-time.Second)
	m := NewMessage("t", "f", []any{"x"})
	m.Started = &past
	handled := false

	f.consumer.handleDelivery(context.Background(), f.delivery(t, m),
		func(context.Context, *Message) error { handled = true; return nil })

	assert.True(t, handled, "a due message runs")
	assert.Equal(t, 1, f.ack.acks)
}

func TestRetryDecrementsAndReschedules(t *testing.T) {
	f := newConsumerFixture(t)

	f.consumer.handleDelivery(context.Background(), f.delivery(t, NewMessage("t", "f", []any{"x"})),
		func(context.Context, *Message) error { return errors.New("handler failed") })

	require.Len(t, f.republished, 1)
	got := f.republished[0]
	assert.Equal(t, DefaultAttempts-1, got.AttemptNumber)
	require.NotNil(t, got.Started)
	wantStarted := f.now.Add(time.Duration(DefaultRetryDelaySeconds) * time.Second)
	assert.True(t, wantStarted.Equal(*got.Started), "visibility pushed past the retry delay")
	assert.Equal(t, 1, f.ack.acks)
}

func TestRetryLastAttemptIsTerminal(t *testing.T) {
	f := newConsumerFixture(t)
	m := NewMessage("t", "f", []any{"x"})
	m.AttemptNumber = 1

	f.consumer.handleDelivery(context.Background(), f.delivery(t, m),
		func(context.Context, *Message) error { return errors.New("handler failed") })

	assert.Empty(t, f.republished, "the final attempt is not rescheduled")
	assert.Equal(t, 1, f.ack.acks, "terminal failures still ack")
}

func TestRetryUnlimitedNeverExhausts(t *testing.T) {
	f := newConsumerFixture(t)
	m := NewMessage("t", "f", []any{"x"})
	m.AttemptNumber = UnlimitedAttempts

	f.consumer.handleDelivery(context.Background(), f.delivery(t, m),
		func(context.Context, *Message) error { return errors.New("handler failed") })

	require.Len(t, f.republished, 1)
	assert.Equal(t, UnlimitedAttempts, f.republished[0].AttemptNumber, "unlimited stays unlimited")
	assert.Equal(t, 1, f.ack.acks)
}

func TestRequeueFailureNacksBackToQueue(t *testing.T) {
	f := newConsumerFixture(t)
	f.consumer.republish = func(context.Context, string, *Message) error {
		return errors.New("broker gone")
	}

	f.consumer.handleDelivery(context.Background(), f.delivery(t, NewMessage("t", "f", []any{"x"})),
		func(context.Context, *Message) error { return errors.New("handler failed") })

	assert.Zero(t, f.ack.acks)
	assert.Equal(t, 1, f.ack.nacks)
	assert.True(t, f.ack.requeued, "the original delivery goes back onto the queue")
}

func TestCloseReasonSurfacesChannelError(t *testing.T) {
	f := newConsumerFixture(t)
	chClosed := make(chan *amqp.Error, 1)
	connClosed := make(chan *amqp.Error, 1)
	chClosed <- &amqp.Error{Code: 406, Recover: true}
	connClosed <- &amqp.Error{Code: 320, Recover: false}

	reason := closeReason(chClosed, connClosed)
	require.NotNil(t, reason)
	assert.Equal(t, 406, reason.Code, "the channel notification wins over the connection one")

	err := f.consumer.classify(reason)
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeProtocol),
		"a mid-consumption channel error is fatal, not a reconnect")
}

func TestCloseReasonFallsBackToConnectionError(t *testing.T) {
	chClosed := make(chan *amqp.Error, 1)
	connClosed := make(chan *amqp.Error, 1)
	connClosed <- &amqp.Error{Code: 320, Recover: false}

	reason := closeReason(chClosed, connClosed)
	require.NotNil(t, reason)
	assert.Equal(t, 320, reason.Code)

	assert.Nil(t, closeReason(chClosed, connClosed), "drained notifications leave no reason")
}

func TestClassify(t *testing.T) {
	f := newConsumerFixture(t)

	assert.Error(t, f.consumer.classify(&amqp.Error{Code: 406, Recover: true}),
		"channel-level protocol errors are fatal")
	assert.NoError(t, f.consumer.classify(&amqp.Error{Code: 320, Recover: false}),
		"connection-level closes are recoverable")
	assert.NoError(t, f.consumer.classify(errors.New("plain error")))
}
