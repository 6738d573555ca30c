package testutil

import (
	"net/http"
	"time"

	"tally/internal/ddd"
	"tally/pkg/requestcontext"
)

// WithActor adds an acting user to the request context, simulating what the
// auth middleware does for authenticated requests.
func WithActor(req *http.Request, actor ddd.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithTraceID adds a trace id to the request context.
func WithTraceID(req *http.Request, traceID string) *http.Request {
	return req.WithContext(requestcontext.WithTraceID(req.Context(), traceID))
}

// WithTime pins the request time for deterministic timestamps.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
