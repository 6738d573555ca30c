package mq

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher() *Publisher {
	return NewPublisher(ConnConfig{Exchange: "test-exchange"}, slog.Default())
}

func TestPushMergesSameBucket(t *testing.T) {
	p := newTestPublisher()

	require.NoError(t, p.Push("billing", NewMessage("trace-1", "do_thing", []any{"a"})))
	require.NoError(t, p.Push("billing", NewMessage("trace-1", "do_thing", []any{"b"})))

	assert.Equal(t, 1, p.Pending(), "same routing key, trace and function merge into one message")
	assert.Equal(t, []any{"a", "b"}, p.messages["billing"]["trace-1_do_thing"].Data)
}

func TestPushKeepsDistinctBucketsApart(t *testing.T) {
	p := newTestPublisher()

	require.NoError(t, p.Push("billing", NewMessage("trace-1", "do_thing", []any{"a"})))
	require.NoError(t, p.Push("billing", NewMessage("trace-1", "other_thing", []any{"b"})))
	require.NoError(t, p.Push("billing", NewMessage("trace-2", "do_thing", []any{"c"})))
	require.NoError(t, p.Push("shipping", NewMessage("trace-1", "do_thing", []any{"d"})))

	assert.Equal(t, 4, p.Pending())
}

func TestPushSurfacesMergeFailure(t *testing.T) {
	p := newTestPublisher()

	first := &Message{TraceID: "trace-1", FunctionName: "do_thing", Data: map[string]any{"k": "v"}}
	require.NoError(t, p.Push("billing", first))

	err := p.Push("billing", NewMessage("trace-1", "do_thing", []any{"a"}))
	assert.Error(t, err, "merging onto object-shaped data fails loudly")
	assert.Equal(t, 1, p.Pending())
}

func TestClearDropsEverything(t *testing.T) {
	p := newTestPublisher()
	require.NoError(t, p.Push("billing", NewMessage("trace-1", "do_thing", []any{"a"})))
	require.NoError(t, p.Push("shipping", NewMessage("trace-2", "do_thing", []any{"b"})))

	p.Clear()
	assert.Zero(t, p.Pending())
}

func TestPublisherContextCarry(t *testing.T) {
	p := newTestPublisher()
	ctx := WithPublisher(t.Context(), p)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, p, got)

	_, ok = FromContext(t.Context())
	assert.False(t, ok)
}
