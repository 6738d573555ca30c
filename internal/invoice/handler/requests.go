package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/internal/invoice/models"
	"tally/internal/invoice/store"
)

// CreateInvoiceRequest is the body of POST /v1/invoices.
type CreateInvoiceRequest struct {
	Customer    string `json:"customer"`
	AmountCents int64  `json:"amountCents"`
}

func (r CreateInvoiceRequest) Details() models.Details {
	return models.Details{Customer: r.Customer, AmountCents: r.AmountCents}
}

// UpdateInvoiceRequest is the body of PUT /v1/invoices/{id}.
type UpdateInvoiceRequest struct {
	Customer    string `json:"customer"`
	AmountCents int64  `json:"amountCents"`
}

func (r UpdateInvoiceRequest) Details() models.Details {
	return models.Details{Customer: r.Customer, AmountCents: r.AmountCents}
}

const defaultPageSize = 50

// parseSearchQuery maps the GET /v1/invoices query string onto a store query.
// List-valued parameters are comma separated; timestamps are RFC 3339.
func parseSearchQuery(r *http.Request) (store.Query, error) {
	q := store.Query{
		IDs:             splitParam(r, "ids"),
		Statuses:        splitParam(r, "statuses"),
		SearchKeyFields: splitParam(r, "searchKeyFields"),
		SearchKeys:      splitParam(r, "searchKeys"),
		SortBy:          splitParam(r, "sortBy"),
		Limit:           defaultPageSize,
	}

	if v := r.URL.Query().Get("createdFrom"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.Query{}, err
		}
		q.CreatedFrom = &t
	}
	if v := r.URL.Query().Get("createdTo"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.Query{}, err
		}
		q.CreatedTo = &t
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return store.Query{}, errBadOffset
		}
		q.Offset = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return store.Query{}, errBadLimit
		}
		q.Limit = n
	}
	return q, nil
}

func splitParam(r *http.Request, name string) []string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
