// Package store persists the Invoice aggregate: current state, historical
// archive snapshots, and the domain event log, all written atomically inside
// the request's unit of work.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tally/internal/ddd"
	"tally/internal/invoice/models"
	"tally/internal/platform/uow"
	"tally/pkg/domainerrors"
)

// PostgresStore is the invoice repository. Every method runs on the active
// unit of work's transaction; calling without one is a programming error.
type PostgresStore struct{}

func NewPostgres() *PostgresStore { return &PostgresStore{} }

func txFrom(ctx context.Context) (*sql.Tx, error) {
	u, ok := uow.From(ctx)
	if !ok || u.Tx() == nil {
		return nil, domainerrors.New(domainerrors.CodeInternal, "no active unit of work")
	}
	return u.Tx(), nil
}

// Save flushes the aggregate in one unit: state row (upsert or delete), one
// archive snapshot when events are pending, and one event-log row per
// pending event. Nothing becomes visible before the unit of work commits.
func (s *PostgresStore) Save(ctx context.Context, inv *models.Invoice) error {
	tx, err := txFrom(ctx)
	if err != nil {
		return err
	}

	if inv.Deleted() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, inv.ID()); err != nil {
			return storageErr(err, "delete invoice")
		}
	} else {
		details, err := json.Marshal(inv.Details())
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "serialize details")
		}
		histories, err := json.Marshal(inv.OperationHistories())
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "serialize operation histories")
		}
		creator, err := json.Marshal(inv.Creator())
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "serialize creator")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoices (id, details, status, operation_histories, creator, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				details = EXCLUDED.details,
				status = EXCLUDED.status,
				operation_histories = EXCLUDED.operation_histories,
				updated_at = EXCLUDED.updated_at`,
			inv.ID(), details, string(inv.Status()), histories, creator, inv.CreatedAt(), inv.UpdatedAt())
		if err != nil {
			return storageErr(err, "upsert invoice")
		}
	}

	if inv.Archived() {
		var last ddd.Event
		if events := inv.Events(); len(events) > 0 {
			last = events[len(events)-1]
		}
		if err := s.archive(ctx, tx, inv, last); err != nil {
			return err
		}
	}

	for _, e := range inv.Events() {
		rec, err := ddd.NewRecord(e)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO domain_events (name, body, version, created_at, span_id, parent_span_id, trace_id)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
			rec.Name, []byte(rec.Body), rec.Version, rec.CreatedAt, rec.SpanID, rec.ParentSpanID, rec.TraceID)
		if err != nil {
			return storageErr(err, "append domain event")
		}
	}
	return nil
}

// archive writes one snapshot row per save, copying the state columns and
// tagging the last event's actor and identity for provenance.
func (s *PostgresStore) archive(ctx context.Context, tx *sql.Tx, inv *models.Invoice, last ddd.Event) error {
	details, err := json.Marshal(inv.Details())
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "serialize details")
	}
	histories, err := json.Marshal(inv.OperationHistories())
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "serialize operation histories")
	}
	creator, err := json.Marshal(inv.Creator())
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "serialize creator")
	}

	var doer []byte
	var eventName, eventSpanID, eventTraceID sql.NullString
	if last != nil {
		if doer, err = json.Marshal(last.Doer()); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "serialize doer")
		}
		eventName = sql.NullString{String: last.Name(), Valid: true}
		eventSpanID = sql.NullString{String: last.Tracer().SpanID(), Valid: true}
		eventTraceID = sql.NullString{String: last.Tracer().TraceID(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoice_archives
			(archive_id, id, details, status, operation_histories, creator, created_at, updated_at,
			 doer, event_name, event_span_id, event_trace_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.NewString(), inv.ID(), details, string(inv.Status()), histories, creator,
		inv.CreatedAt(), inv.UpdatedAt(), doer, eventName, eventSpanID, eventTraceID)
	if err != nil {
		return storageErr(err, "archive invoice")
	}
	return nil
}

// Load reads one invoice. lock acquires an exclusive row lock so concurrent
// mutators of the same invoice serialize; reads must not lock.
func (s *PostgresStore) Load(ctx context.Context, id string, lock bool) (*models.Invoice, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, details, status, operation_histories, creator, created_at, updated_at
		FROM invoices WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoice(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.Newf(domainerrors.CodeNotFound, "invoice %s not found", id)
	}
	if err != nil {
		return nil, storageErr(err, "load invoice")
	}
	return inv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var (
		id, status                     string
		detailsB, historiesB, creatorB []byte
		createdAt                      time.Time
		updatedAt                      sql.NullTime
	)
	if err := row.Scan(&id, &detailsB, &status, &historiesB, &creatorB, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var details models.Details
	if err := json.Unmarshal(detailsB, &details); err != nil {
		return nil, err
	}
	var histories []models.OperationHistory
	if len(historiesB) > 0 {
		if err := json.Unmarshal(historiesB, &histories); err != nil {
			return nil, err
		}
	}
	var creator ddd.Actor
	if len(creatorB) > 0 {
		if err := json.Unmarshal(creatorB, &creator); err != nil {
			return nil, err
		}
	}

	var updated *time.Time
	if updatedAt.Valid {
		updated = &updatedAt.Time
	}
	return models.New(id, details, models.Status(status), histories, creator, createdAt, updated), nil
}

// storageErr maps driver failures onto the error taxonomy: constraint
// violations become conflicts, the rest stay internal.
func storageErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return domainerrors.Wrap(err, domainerrors.CodeConflict, msg)
	}
	return domainerrors.Wrap(err, domainerrors.CodeInternal, msg)
}
