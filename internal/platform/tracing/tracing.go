// Package tracing seeds request trace ids. An incoming OpenTelemetry span
// context wins over a freshly generated id so traces started upstream stay
// connected through events and outbound messages.
package tracing

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// SeedTraceID picks the trace id for an incoming request: an explicit id
// (e.g. from an X-Trace-Id header) first, then the active otel span's trace
// id, then a fresh uuid.
func SeedTraceID(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}
