// Package messages defines the broker-facing function names and payload
// shapes of the invoicing context.
package messages

// FunctionInvoiceVoided notifies downstream services that an invoice was
// voided. Data items are VoidedPayload.
const FunctionInvoiceVoided = "invoice_voided"

// VoidedPayload is one data item of an invoice_voided message.
type VoidedPayload struct {
	InvoiceID string `json:"invoiceId"`
}
