// Package reactions wires the invoicing context's event-bus subscribers.
// Handlers run inside the publishing request's scope: they open a nested
// unit-of-work level sharing the outer transaction, and their failures roll
// the whole request back.
package reactions

import (
	"context"
	"log/slog"

	"tally/internal/ddd"
	invoicemetrics "tally/internal/invoice/metrics"
	"tally/internal/invoice/messages"
	"tally/internal/invoice/models"
	"tally/internal/invoice/service"
	"tally/internal/platform/uow"
	"tally/pkg/domainerrors"
	"tally/pkg/mq"
	"tally/pkg/requestcontext"
)

// Reactions holds the subscriber dependencies.
type Reactions struct {
	store      service.Store
	routingKey string
	metrics    *invoicemetrics.Metrics
	log        *slog.Logger
}

// Register subscribes all invoice reactions on the bus. Called once at
// process startup.
func Register(bus *ddd.Bus, st service.Store, routingKey string, m *invoicemetrics.Metrics, log *slog.Logger) {
	r := &Reactions{store: st, routingKey: routingKey, metrics: m, log: log}
	bus.Subscribe(models.EventInvoiceVoided, r.onInvoiceVoided)
	bus.SubscribeAll(r.onAnyEvent)
}

// onInvoiceVoided queues the outbound voided notification. The message is
// flushed to the broker only after the outer unit of work commits.
func (r *Reactions) onInvoiceVoided(ctx context.Context, e ddd.Event) error {
	voided, ok := e.(*models.Voided)
	if !ok {
		return domainerrors.Newf(domainerrors.CodeInternal, "unexpected event %s", e.Name())
	}

	u, ok := uow.From(ctx)
	if !ok {
		return domainerrors.New(domainerrors.CodeInternal, "no active unit of work")
	}
	return u.Run(ctx, func(ctx context.Context) error {
		ctx = ddd.WithParentEvent(ctx, e)

		inv, err := r.store.Load(ctx, voided.InvoiceID, false)
		if err != nil {
			return err
		}
		if inv.Status() != models.StatusVoided {
			return nil
		}

		pub, ok := mq.FromContext(ctx)
		if !ok {
			return domainerrors.New(domainerrors.CodeInternal, "no publisher in scope")
		}
		traceID := requestcontext.TraceID(ctx)
		if traceID == "" {
			traceID = e.Tracer().TraceID()
		}
		return pub.Push(r.routingKey, mq.NewMessage(traceID, messages.FunctionInvoiceVoided,
			[]any{messages.VoidedPayload{InvoiceID: voided.InvoiceID}}))
	})
}

// onAnyEvent observes the full event stream for counting and debugging.
func (r *Reactions) onAnyEvent(ctx context.Context, e ddd.Event) error {
	if r.metrics != nil {
		r.metrics.EventsPublished.WithLabelValues(e.Name()).Inc()
	}
	r.log.DebugContext(ctx, "domain event",
		"event", e.Name(),
		"spanId", e.Tracer().SpanID(),
		"traceId", e.Tracer().TraceID())
	return nil
}
