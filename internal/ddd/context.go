package ddd

import "context"

type parentEventKey struct{}

// WithParentEvent records the event that caused the current handler chain so
// cascading saves inherit its span and trace.
func WithParentEvent(ctx context.Context, e Event) context.Context {
	if e == nil {
		return ctx
	}
	return context.WithValue(ctx, parentEventKey{}, e)
}

// ParentEvent extracts the causing event, if any.
func ParentEvent(ctx context.Context) (Event, bool) {
	e, ok := ctx.Value(parentEventKey{}).(Event)
	return e, ok
}
