package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tally/internal/ddd"
	"tally/internal/invoice/models"
	"tally/pkg/domainerrors"
)

// ArchiveRow mirrors the persisted snapshot for assertions in tests.
type ArchiveRow struct {
	ArchiveID    string
	InvoiceID    string
	Status       models.Status
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	EventName    string
	EventSpanID  string
	EventTraceID string
}

// MemoryStore is the in-memory test double for the invoice repository. It
// applies the same save semantics (delete/upsert, archive snapshot, event
// log) without transactional visibility.
type MemoryStore struct {
	mu       sync.Mutex
	invoices map[string]*models.Invoice
	archives []ArchiveRow
	records  []ddd.Record

	// FailSave, when set, makes the next Save return this error.
	FailSave error
}

func NewMemory() *MemoryStore {
	return &MemoryStore{invoices: make(map[string]*models.Invoice)}
}

func (s *MemoryStore) Save(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSave != nil {
		err := s.FailSave
		s.FailSave = nil
		return err
	}

	if inv.Deleted() {
		delete(s.invoices, inv.ID())
	} else {
		s.invoices[inv.ID()] = snapshot(inv)
	}

	if inv.Archived() {
		row := ArchiveRow{
			ArchiveID: uuid.NewString(),
			InvoiceID: inv.ID(),
			Status:    inv.Status(),
			CreatedAt: inv.CreatedAt(),
			UpdatedAt: inv.UpdatedAt(),
		}
		if events := inv.Events(); len(events) > 0 {
			last := events[len(events)-1]
			row.EventName = last.Name()
			row.EventSpanID = last.Tracer().SpanID()
			row.EventTraceID = last.Tracer().TraceID()
		}
		s.archives = append(s.archives, row)
	}

	for _, e := range inv.Events() {
		rec, err := ddd.NewRecord(e)
		if err != nil {
			return err
		}
		s.records = append(s.records, rec)
	}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string, _ bool) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, domainerrors.Newf(domainerrors.CodeNotFound, "invoice %s not found", id)
	}
	return snapshot(inv), nil
}

func (s *MemoryStore) Search(_ context.Context, q Query) (int, []*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.Invoice
	for _, inv := range s.invoices {
		if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, string(inv.Status())) {
			continue
		}
		if len(q.IDs) > 0 && !slices.Contains(q.IDs, inv.ID()) {
			continue
		}
		all = append(all, snapshot(inv))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt().After(all[j].CreatedAt()) })

	total := len(all)
	if q.Offset < len(all) {
		all = all[q.Offset:]
	} else {
		all = nil
	}
	if q.Limit > 0 && q.Limit < len(all) {
		all = all[:q.Limit]
	}
	return total, all, nil
}

// Archives returns the recorded snapshot rows.
func (s *MemoryStore) Archives() []ArchiveRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ArchiveRow(nil), s.archives...)
}

// EventRecords returns the recorded event-log rows.
func (s *MemoryStore) EventRecords() []ddd.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ddd.Record(nil), s.records...)
}

func snapshot(inv *models.Invoice) *models.Invoice {
	return models.New(inv.ID(), inv.Details(), inv.Status(), inv.OperationHistories(),
		inv.Creator(), inv.CreatedAt(), inv.UpdatedAt())
}
