// Package models holds the Invoice aggregate, its value objects, and the
// domain events it emits.
package models

import (
	"time"

	"tally/internal/ddd"
	"tally/pkg/domainerrors"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusCreated Status = "created"
	StatusVoided  Status = "voided"
)

// Details is the invoice's value object.
type Details struct {
	Customer    string `json:"customer"`
	AmountCents int64  `json:"amountCents"`
}

// HistoryType tags an operation history entry.
type HistoryType string

const (
	HistoryCreated HistoryType = "created"
	HistoryUpdated HistoryType = "updated"
	HistoryVoided  HistoryType = "voided"
)

// FieldChange records one changed field, before and after.
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// OperationHistory is one audited mutation of the invoice.
type OperationHistory struct {
	Type      HistoryType  `json:"type"`
	Data      []FieldChange `json:"data"`
	Doer      ddd.Actor    `json:"doer"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Invoice is the aggregate root of the invoicing context.
type Invoice struct {
	ddd.Root

	id        string
	details   Details
	status    Status
	histories []OperationHistory
	creator   ddd.Actor
	createdAt time.Time
	updatedAt *time.Time
}

// New reconstructs an invoice from storage. It carries no pending events.
func New(id string, details Details, status Status, histories []OperationHistory,
	creator ddd.Actor, createdAt time.Time, updatedAt *time.Time) *Invoice {
	return &Invoice{
		id:        id,
		details:   details,
		status:    status,
		histories: histories,
		creator:   creator,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// Create builds a fresh invoice, recording the creation in the operation
// history and emitting InvoiceCreated.
func Create(id string, details Details, creator ddd.Actor, now time.Time) *Invoice {
	inv := &Invoice{
		id:        id,
		details:   details,
		status:    StatusCreated,
		creator:   creator,
		createdAt: now,
	}
	// A new invoice cannot be voided, so the history append cannot fail.
	_ = inv.addHistory(HistoryCreated, nil, creator, now)
	inv.AddEvent(NewCreated(id, details, creator))
	return inv
}

func (i *Invoice) ID() string          { return i.id }
func (i *Invoice) Details() Details    { return i.details }
func (i *Invoice) Status() Status      { return i.status }
func (i *Invoice) Creator() ddd.Actor  { return i.creator }
func (i *Invoice) CreatedAt() time.Time { return i.createdAt }
func (i *Invoice) UpdatedAt() *time.Time { return i.updatedAt }

// OperationHistories returns a copy of the audited mutations in order.
func (i *Invoice) OperationHistories() []OperationHistory {
	out := make([]OperationHistory, len(i.histories))
	copy(out, i.histories)
	return out
}

// MarkAsDelete flags the invoice for deletion. The flag is never unset.
func (i *Invoice) MarkAsDelete() { i.MarkDeleted() }

// Update replaces the details, recording only the fields that changed.
func (i *Invoice) Update(details Details, doer ddd.Actor, now time.Time) error {
	changes := diffDetails(i.details, details)
	if err := i.addHistory(HistoryUpdated, changes, doer, now); err != nil {
		return err
	}
	i.details = details
	i.updatedAt = &now
	i.AddEvent(NewUpdated(i.id, details, doer))
	return nil
}

// Void transitions the invoice to voided. Voiding twice fails the
// status-guard in addHistory.
func (i *Invoice) Void(doer ddd.Actor, now time.Time) error {
	change := FieldChange{Field: "status", Before: string(i.status), After: string(StatusVoided)}
	if err := i.addHistory(HistoryVoided, []FieldChange{change}, doer, now); err != nil {
		return err
	}
	i.status = StatusVoided
	i.updatedAt = &now
	i.AddEvent(NewVoided(i.id, doer))
	return nil
}

// Delete marks the invoice for removal and emits InvoiceDeleted.
func (i *Invoice) Delete(doer ddd.Actor) {
	i.MarkAsDelete()
	i.AddEvent(NewDeleted(i.id, doer))
}

// addHistory appends one audited mutation. A voided invoice accepts no
// further mutations.
func (i *Invoice) addHistory(t HistoryType, changes []FieldChange, doer ddd.Actor, now time.Time) error {
	if i.status == StatusVoided {
		return domainerrors.Newf(domainerrors.CodeInvalidState, "invoice %s is in voided status", i.id)
	}
	i.histories = append(i.histories, OperationHistory{
		Type:      t,
		Data:      changes,
		Doer:      doer,
		CreatedAt: now,
	})
	return nil
}

func diffDetails(before, after Details) []FieldChange {
	var changes []FieldChange
	if before.Customer != after.Customer {
		changes = append(changes, FieldChange{Field: "customer", Before: before.Customer, After: after.Customer})
	}
	if before.AmountCents != after.AmountCents {
		changes = append(changes, FieldChange{Field: "amountCents", Before: before.AmountCents, After: after.AmountCents})
	}
	return changes
}
