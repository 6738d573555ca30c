// Package requestcontext provides transport-independent accessors for
// request-scoped values: the trace id, the acting user, and the request time.
//
// Values are set once per incoming HTTP request or consumer delivery and are
// never shared across concurrent tasks. Middleware writes them, services and
// event handlers read them; tests inject them directly.
package requestcontext

import (
	"context"
	"time"

	"tally/internal/ddd"
)

type (
	traceIDKey     struct{}
	actorKey       struct{}
	requestTimeKey struct{}
)

// TraceID retrieves the request trace id, empty if unset.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithTraceID injects the request trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// Actor retrieves the acting user, zero value if unset.
func Actor(ctx context.Context) ddd.Actor {
	if a, ok := ctx.Value(actorKey{}).(ddd.Actor); ok {
		return a
	}
	return ddd.Actor{}
}

// WithActor injects the acting user.
func WithActor(ctx context.Context, a ddd.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// Now retrieves the request-scoped time, falling back to time.Now for
// non-request contexts such as workers and tests.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time. Used by middleware and by tests that need
// deterministic timestamps.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
