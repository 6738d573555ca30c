package ddd

import (
	"time"

	"github.com/google/uuid"
)

// Tracer is the causal identity attached to every domain event: a fresh span
// id, an optional parent span id set when the event was caused by another
// event, and a trace id shared by every event in one causal chain. The trace
// id defaults to the event's own span id until tracing is applied.
type Tracer struct {
	spanID       string
	parentSpanID string
	traceID      string
	createdAt    time.Time
}

// NewTracer generates a tracer with a fresh span id. CreatedAt is fixed here
// and never changes afterwards.
func NewTracer() *Tracer {
	span := uuid.NewString()
	return &Tracer{
		spanID:    span,
		traceID:   span,
		createdAt: time.Now(),
	}
}

func (t *Tracer) SpanID() string       { return t.spanID }
func (t *Tracer) TraceID() string      { return t.traceID }
func (t *Tracer) CreatedAt() time.Time { return t.createdAt }

// ParentSpanID returns the causing event's span id, empty when the event is
// a causal root.
func (t *Tracer) ParentSpanID() string { return t.parentSpanID }

// SetParentSpanID records the span id of the event that caused this one.
func (t *Tracer) SetParentSpanID(spanID string) { t.parentSpanID = spanID }

// SetTraceID adopts a trace id inherited from a causing event or an external
// request trace.
func (t *Tracer) SetTraceID(traceID string) { t.traceID = traceID }
