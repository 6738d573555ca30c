package ddd

import "github.com/google/uuid"

// Aggregate is implemented by every aggregate root. Root supplies everything
// except MarkAsDelete, which each concrete aggregate must provide itself so
// deletion stays an explicit domain decision.
type Aggregate interface {
	AddEvent(e Event)
	Events() []Event
	ClearEvents()
	Deleted() bool
	Archived() bool
	MarkAsDelete()
}

// Root is the embeddable aggregate base. It accumulates the domain events
// produced by the aggregate's own mutations and exposes them for persistence
// and dispatch. Invariant: Archived() == (len(Events()) > 0) at all times
// between mutations and persistence.
type Root struct {
	deleted  bool
	archived bool
	events   []Event
}

// AddEvent appends a pending event and marks the aggregate for archival.
func (r *Root) AddEvent(e Event) {
	r.events = append(r.events, e)
	r.archived = true
}

// Events returns a copy of the pending events in append order.
func (r *Root) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ClearEvents drops pending events and resets the archive flag. The
// persistence boundary emits events, it does not clear them; clearing is a
// terminal-error-path concern, so one flush equals one emission window.
func (r *Root) ClearEvents() {
	r.events = nil
	r.archived = false
}

// Deleted reports whether domain logic marked the aggregate for deletion.
// The flag is never unset.
func (r *Root) Deleted() bool { return r.deleted }

// Archived reports whether at least one pending event exists.
func (r *Root) Archived() bool { return r.archived }

// MarkDeleted is called by the concrete aggregate's MarkAsDelete.
func (r *Root) MarkDeleted() { r.deleted = true }

// SaveEventsTracing rewrites the pending events' tracers for one causal
// chain. A parent event takes precedence: every pending event inherits the
// parent's span id as parent span id and the parent's trace id. Otherwise a
// bare trace id, when given, is adopted as-is. Exactly one input is honored
// per call.
func (r *Root) SaveEventsTracing(parent Event, traceID string) {
	switch {
	case parent != nil:
		pt := parent.Tracer()
		for _, e := range r.events {
			e.Tracer().SetParentSpanID(pt.SpanID())
			e.Tracer().SetTraceID(pt.TraceID())
		}
	case traceID != "":
		for _, e := range r.events {
			e.Tracer().SetTraceID(traceID)
		}
	}
}

// NewID generates an aggregate identifier.
func NewID() string { return uuid.NewString() }
