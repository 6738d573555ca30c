package ddd

import (
	"encoding/json"
	"time"

	"tally/pkg/domainerrors"
)

// EventVersion is the schema version stamped on every persisted event.
const EventVersion = 1

// Actor identifies who performed the state change. All fields are optional;
// system-initiated changes carry only a name.
type Actor struct {
	ID             string `json:"id,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Mobile         string `json:"mobile,omitempty"`
}

// Event is an immutable fact describing a state change to an aggregate.
// Concrete events are plain structs with JSON tags; their marshalled form is
// the persisted event body (time fields serialize to RFC 3339 text and
// enum-like fields are string types, so the body is already normalized).
type Event interface {
	// Name is the event type discriminator, e.g. "InvoiceVoided".
	Name() string
	// Doer is the actor responsible for the change.
	Doer() Actor
	// Tracer is the event's causal identity. Mutable until persisted.
	Tracer() *Tracer
}

// EventModel is embedded by concrete events to carry the tracer. Events must
// be built through their constructors so the tracer is always initialized.
type EventModel struct {
	tracer *Tracer
}

// NewEventModel seeds a concrete event with a fresh tracer.
func NewEventModel() EventModel {
	return EventModel{tracer: NewTracer()}
}

// Tracer returns the event's causal identity.
func (m EventModel) Tracer() *Tracer { return m.tracer }

// Record is the persisted event-log row shape.
type Record struct {
	Name         string          `json:"name"`
	Body         json.RawMessage `json:"body"`
	CreatedAt    time.Time       `json:"createdAt"`
	Version      int             `json:"version"`
	SpanID       string          `json:"spanId"`
	ParentSpanID string          `json:"parentSpanId,omitempty"`
	TraceID      string          `json:"traceId"`
}

// NewRecord serializes an event into its event-log row. The body is the JSON
// form of the concrete event struct.
func NewRecord(e Event) (Record, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return Record{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "serialize event body")
	}
	t := e.Tracer()
	return Record{
		Name:         e.Name(),
		Body:         body,
		CreatedAt:    t.CreatedAt(),
		Version:      EventVersion,
		SpanID:       t.SpanID(),
		ParentSpanID: t.ParentSpanID(),
		TraceID:      t.TraceID(),
	}, nil
}
