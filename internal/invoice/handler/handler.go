// Package handler exposes the invoice use cases over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tally/internal/invoice/models"
	"tally/internal/invoice/store"
	"tally/internal/platform/middleware"
	"tally/internal/platform/scope"
	"tally/pkg/domainerrors"
	"tally/pkg/requestcontext"
)

var (
	errBadOffset = errors.New("offset must be a non-negative integer")
	errBadLimit  = errors.New("limit must be a positive integer")
)

// Service defines the invoice operations the handler needs.
type Service interface {
	Create(ctx context.Context, details models.Details) (string, error)
	Update(ctx context.Context, id string, details models.Details) error
	Void(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Invoice, error)
	Search(ctx context.Context, q store.Query) (int, []*models.Invoice, error)
}

// Handler handles the invoice endpoints. Every operation, reads included,
// runs through the scope runner so stores always see a transaction.
type Handler struct {
	logger    *slog.Logger
	svc       Service
	scope     *scope.Runner
	validator middleware.Validator
}

func New(svc Service, runner *scope.Runner, validator middleware.Validator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, svc: svc, scope: runner, validator: validator}
}

// Register registers the invoice routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	ir := chi.NewRouter()
	ir.Use(middleware.Trace)
	ir.Use(middleware.RequireAuth(h.validator, h.logger))
	ir.Post("/v1/invoices", h.handleCreate)
	ir.Get("/v1/invoices", h.handleSearch)
	ir.Get("/v1/invoices/{id}", h.handleGet)
	ir.Put("/v1/invoices/{id}", h.handleUpdate)
	ir.Post("/v1/invoices/{id}/void", h.handleVoid)
	ir.Delete("/v1/invoices/{id}", h.handleDelete)

	r.Mount("/", ir)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, "invalid request body", err)
		return
	}

	var id string
	err := h.scope.Do(ctx, func(ctx context.Context) error {
		var err error
		id, err = h.svc.Create(ctx, req.Details())
		return err
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusCreated, CreateInvoiceResponse{ID: id})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var inv *models.Invoice
	err := h.scope.Do(ctx, func(ctx context.Context) error {
		var err error
		inv, err = h.svc.Get(ctx, id)
		return err
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := parseSearchQuery(r)
	if err != nil {
		h.badRequest(ctx, w, "invalid search query", err)
		return
	}

	var (
		total    int
		invoices []*models.Invoice
	)
	err = h.scope.Do(ctx, func(ctx context.Context) error {
		var err error
		total, invoices, err = h.svc.Search(ctx, q)
		return err
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	resp := SearchInvoicesResponse{Total: total, Invoices: make([]InvoiceResponse, 0, len(invoices))}
	for _, inv := range invoices {
		resp.Invoices = append(resp.Invoices, toInvoiceResponse(inv))
	}
	h.writeJSON(ctx, w, http.StatusOK, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req UpdateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, "invalid request body", err)
		return
	}

	err := h.scope.Do(ctx, func(ctx context.Context) error {
		return h.svc.Update(ctx, id, req.Details())
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	err := h.scope.Do(ctx, func(ctx context.Context) error {
		return h.svc.Void(ctx, id)
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	err := h.scope.Do(ctx, func(ctx context.Context) error {
		return h.svc.Delete(ctx, id)
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusOf maps an error code to its HTTP status.
func statusOf(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeNotFound:
		return http.StatusNotFound
	case domainerrors.CodeConflict:
		return http.StatusConflict
	case domainerrors.CodeInvalidState:
		return http.StatusUnprocessableEntity
	case domainerrors.CodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	status := statusOf(code)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		// The scope runner already logged the cause; do not leak internals.
		msg = "internal error"
	}
	h.writeJSON(ctx, w, status, map[string]string{
		"error":   string(code),
		"message": msg,
	})
}

func (h *Handler) badRequest(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"traceId", requestcontext.TraceID(ctx))
	h.writeJSON(ctx, w, http.StatusBadRequest, map[string]string{
		"error":   "bad_request",
		"message": msg,
	})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.ErrorContext(ctx, "failed to write response",
			"error", err,
			"traceId", requestcontext.TraceID(ctx))
	}
}
