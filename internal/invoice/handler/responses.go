package handler

import (
	"time"

	"tally/internal/ddd"
	"tally/internal/invoice/models"
)

// InvoiceResponse is the wire shape of one invoice.
type InvoiceResponse struct {
	ID                 string                     `json:"id"`
	Customer           string                     `json:"customer"`
	AmountCents        int64                      `json:"amountCents"`
	Status             string                     `json:"status"`
	OperationHistories []models.OperationHistory  `json:"operationHistories"`
	Creator            ddd.Actor                  `json:"creator"`
	CreatedAt          time.Time                  `json:"createdAt"`
	UpdatedAt          *time.Time                 `json:"updatedAt,omitempty"`
}

func toInvoiceResponse(inv *models.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                 inv.ID(),
		Customer:           inv.Details().Customer,
		AmountCents:        inv.Details().AmountCents,
		Status:             string(inv.Status()),
		OperationHistories: inv.OperationHistories(),
		Creator:            inv.Creator(),
		CreatedAt:          inv.CreatedAt(),
		UpdatedAt:          inv.UpdatedAt(),
	}
}

// CreateInvoiceResponse is the body of a successful create.
type CreateInvoiceResponse struct {
	ID string `json:"id"`
}

// SearchInvoicesResponse is one page of search results.
type SearchInvoicesResponse struct {
	Total    int               `json:"total"`
	Invoices []InvoiceResponse `json:"invoices"`
}
