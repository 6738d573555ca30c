// Package consumer dispatches broker messages to invoice use cases by
// function name.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"tally/internal/ddd"
	"tally/internal/invoice/messages"
	"tally/internal/invoice/models"
	"tally/internal/invoice/service"
	"tally/internal/platform/idempotency"
	"tally/internal/platform/scope"
	"tally/pkg/domainerrors"
	"tally/pkg/mq"
	"tally/pkg/requestcontext"
)

// Router maps message function names to handlers. Each handled message runs
// in its own operation scope, acting as the configured consumer principal
// under the message's trace id.
type Router struct {
	svc   *service.Service
	scope *scope.Runner
	guard *idempotency.Guard
	actor ddd.Actor
	log   *slog.Logger
}

func NewRouter(svc *service.Service, runner *scope.Runner, guard *idempotency.Guard, consumerName string, log *slog.Logger) *Router {
	return &Router{
		svc:   svc,
		scope: runner,
		guard: guard,
		actor: ddd.Actor{ID: consumerName, Name: consumerName},
		log:   log,
	}
}

// Handle implements mq.Handler. Unknown function names are logged and
// dropped rather than retried: rescheduling cannot make a function we do not
// implement succeed.
func (r *Router) Handle(ctx context.Context, m *mq.Message) error {
	ctx = requestcontext.WithTraceID(ctx, m.TraceID)
	ctx = requestcontext.WithActor(ctx, r.actor)

	switch m.FunctionName {
	case messages.FunctionInvoiceVoided:
		return r.onInvoiceVoided(ctx, m)
	default:
		r.log.Warn("unknown function, dropping message",
			"functionName", m.FunctionName, "traceId", m.TraceID)
		return nil
	}
}

// onInvoiceVoided applies upstream void notifications to local invoices.
// Already-voided and missing invoices are skipped so redeliveries and
// self-produced notifications converge instead of looping.
func (r *Router) onInvoiceVoided(ctx context.Context, m *mq.Message) error {
	payloads, err := decode[messages.VoidedPayload](m.Data)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s_%s", m.TraceID, m.FunctionName)
	return r.guard.Once(ctx, key, func(ctx context.Context) error {
		return r.scope.Do(ctx, func(ctx context.Context) error {
			for _, p := range payloads {
				inv, err := r.svc.Get(ctx, p.InvoiceID)
				if err != nil {
					if domainerrors.HasCode(err, domainerrors.CodeNotFound) {
						r.log.Warn("invoice not found, skipping",
							"invoiceId", p.InvoiceID, "traceId", m.TraceID)
						continue
					}
					return err
				}
				if inv.Status() == models.StatusVoided {
					continue
				}
				if err := r.svc.Void(ctx, p.InvoiceID); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// decode re-marshals the loosely typed data sequence into concrete payloads.
func decode[T any](data any) ([]T, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "serialize message data")
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInvalidState, "decode message data")
	}
	return out, nil
}
