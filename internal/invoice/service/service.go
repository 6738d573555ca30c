// Package service implements the invoice use cases: load, mutate, persist,
// and dispatch the resulting domain events, all inside the caller's unit of
// work.
package service

import (
	"context"
	"log/slog"

	"tally/internal/ddd"
	invoicemetrics "tally/internal/invoice/metrics"
	"tally/internal/invoice/models"
	"tally/internal/invoice/store"
	"tally/pkg/requestcontext"
)

// Store is the repository surface the service needs.
type Store interface {
	Save(ctx context.Context, inv *models.Invoice) error
	Load(ctx context.Context, id string, lock bool) (*models.Invoice, error)
	Search(ctx context.Context, q store.Query) (int, []*models.Invoice, error)
}

// Service orchestrates invoice mutations.
type Service struct {
	store   Store
	bus     *ddd.Bus
	metrics *invoicemetrics.Metrics
	log     *slog.Logger
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithMetrics(m *invoicemetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(st Store, bus *ddd.Bus, log *slog.Logger, opts ...Option) *Service {
	s := &Service{store: st, bus: bus, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// save applies event tracing, persists the aggregate, and publishes its
// pending events on the bus. A causing event from the context wins over the
// request trace id, so cascades share one trace.
func (s *Service) save(ctx context.Context, inv *models.Invoice) error {
	if parent, ok := ddd.ParentEvent(ctx); ok {
		inv.SaveEventsTracing(parent, "")
	} else if traceID := requestcontext.TraceID(ctx); traceID != "" {
		inv.SaveEventsTracing(nil, traceID)
	}
	if err := s.store.Save(ctx, inv); err != nil {
		return err
	}
	return s.bus.PublishAll(ctx, inv.Events())
}

// Create builds and persists a new invoice, returning its id.
func (s *Service) Create(ctx context.Context, details models.Details) (string, error) {
	inv := models.Create(ddd.NewID(), details, requestcontext.Actor(ctx), requestcontext.Now(ctx))
	if err := s.save(ctx, inv); err != nil {
		return "", err
	}
	if s.metrics != nil {
		s.metrics.InvoicesCreated.Inc()
	}
	return inv.ID(), nil
}

// Update replaces the invoice details under an exclusive row lock.
func (s *Service) Update(ctx context.Context, id string, details models.Details) error {
	inv, err := s.store.Load(ctx, id, true)
	if err != nil {
		return err
	}
	if err := inv.Update(details, requestcontext.Actor(ctx), requestcontext.Now(ctx)); err != nil {
		return err
	}
	return s.save(ctx, inv)
}

// Void transitions the invoice to voided under an exclusive row lock.
func (s *Service) Void(ctx context.Context, id string) error {
	inv, err := s.store.Load(ctx, id, true)
	if err != nil {
		return err
	}
	if err := inv.Void(requestcontext.Actor(ctx), requestcontext.Now(ctx)); err != nil {
		return err
	}
	if err := s.save(ctx, inv); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.InvoicesVoided.Inc()
	}
	return nil
}

// Delete removes the invoice row, leaving its archive and event trail.
func (s *Service) Delete(ctx context.Context, id string) error {
	inv, err := s.store.Load(ctx, id, true)
	if err != nil {
		return err
	}
	inv.Delete(requestcontext.Actor(ctx))
	return s.save(ctx, inv)
}

// Get reads one invoice without locking.
func (s *Service) Get(ctx context.Context, id string) (*models.Invoice, error) {
	return s.store.Load(ctx, id, false)
}

// Search pages through invoices.
func (s *Service) Search(ctx context.Context, q store.Query) (int, []*models.Invoice, error) {
	return s.store.Search(ctx, q)
}
