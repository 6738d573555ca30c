package middleware

import (
	"net/http"
	"time"

	"tally/internal/platform/tracing"
	"tally/pkg/requestcontext"
)

// TraceHeader carries the caller-provided trace id.
const TraceHeader = "X-Trace-Id"

// Trace seeds the request trace id and pins the request time so every write
// within the request shares one timestamp. The chosen trace id is echoed back
// on the response.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		traceID := tracing.SeedTraceID(ctx, r.Header.Get(TraceHeader))
		ctx = requestcontext.WithTraceID(ctx, traceID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
