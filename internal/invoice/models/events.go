package models

import "tally/internal/ddd"

// Event names double as event-bus subscription keys.
const (
	EventInvoiceCreated = "InvoiceCreated"
	EventInvoiceUpdated = "InvoiceUpdated"
	EventInvoiceVoided  = "InvoiceVoided"
	EventInvoiceDeleted = "InvoiceDeleted"
)

// Created is emitted when an invoice comes into existence.
type Created struct {
	ddd.EventModel
	InvoiceID string    `json:"invoiceId"`
	Details   Details   `json:"details"`
	CreatedBy ddd.Actor `json:"doer"`
}

func NewCreated(invoiceID string, details Details, doer ddd.Actor) *Created {
	return &Created{EventModel: ddd.NewEventModel(), InvoiceID: invoiceID, Details: details, CreatedBy: doer}
}

func (e *Created) Name() string    { return EventInvoiceCreated }
func (e *Created) Doer() ddd.Actor { return e.CreatedBy }

// Updated is emitted when the invoice details change.
type Updated struct {
	ddd.EventModel
	InvoiceID string    `json:"invoiceId"`
	Details   Details   `json:"details"`
	UpdatedBy ddd.Actor `json:"doer"`
}

func NewUpdated(invoiceID string, details Details, doer ddd.Actor) *Updated {
	return &Updated{EventModel: ddd.NewEventModel(), InvoiceID: invoiceID, Details: details, UpdatedBy: doer}
}

func (e *Updated) Name() string    { return EventInvoiceUpdated }
func (e *Updated) Doer() ddd.Actor { return e.UpdatedBy }

// Voided is emitted when the invoice transitions to voided.
type Voided struct {
	ddd.EventModel
	InvoiceID string    `json:"invoiceId"`
	VoidedBy  ddd.Actor `json:"doer"`
}

func NewVoided(invoiceID string, doer ddd.Actor) *Voided {
	return &Voided{EventModel: ddd.NewEventModel(), InvoiceID: invoiceID, VoidedBy: doer}
}

func (e *Voided) Name() string    { return EventInvoiceVoided }
func (e *Voided) Doer() ddd.Actor { return e.VoidedBy }

// Deleted is emitted when the invoice is marked for removal.
type Deleted struct {
	ddd.EventModel
	InvoiceID string    `json:"invoiceId"`
	DeletedBy ddd.Actor `json:"doer"`
}

func NewDeleted(invoiceID string, doer ddd.Actor) *Deleted {
	return &Deleted{EventModel: ddd.NewEventModel(), InvoiceID: invoiceID, DeletedBy: doer}
}

func (e *Deleted) Name() string    { return EventInvoiceDeleted }
func (e *Deleted) Doer() ddd.Actor { return e.DeletedBy }
