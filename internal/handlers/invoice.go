package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ledgerline/ledgerline/internal/auth"
	"github.com/ledgerline/ledgerline/internal/httpx"
	"github.com/ledgerline/ledgerline/internal/models"
	"github.com/ledgerline/ledgerline/internal/services"
)

// InvoiceHandler exposes the invoice ledger over REST.
type InvoiceHandler struct {
	Svc *services.InvoiceService
}

func NewInvoiceHandler(svc *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{Svc: svc}
}

// List: GET /api/invoices?status=&client_id=&limit=&page=
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	q := services.ListQuery{Status: r.URL.Query().Get("status")}
	if v := r.URL.Query().Get("client_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			q.ClientID = uint(id)
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = n
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Page = n
		}
	}

	invoices, total, err := h.Svc.List(r.Context(), userID, q)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": invoices, "total": total})
}

// Create: POST /api/invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var in services.InvoiceInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	inv, err := h.Svc.Create(r.Context(), userID, in)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

// Get: GET /api/invoices/{id}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := h.Svc.Get(r.Context(), userID, id)
	if err != nil {
		serviceError(w, err)
		return
	}
	// expose the read-only due-date derivations alongside the record
	now := time.Now()
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoice":        inv,
		"is_overdue":     inv.IsOverdue(now),
		"days_until_due": inv.DaysUntilDue(now),
	})
}

// Update: PUT /api/invoices/{id}
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var in services.InvoiceInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	inv, err := h.Svc.Update(r.Context(), userID, id, in)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Delete: DELETE /api/invoices/{id}
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.Delete(r.Context(), userID, id); err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddPayment: POST /api/invoices/{id}/payments
func (h *InvoiceHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var in services.PaymentInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	inv, err := h.Svc.AddPayment(r.Context(), userID, id, in)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Send: POST /api/invoices/{id}/send
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.statusOp(w, r, h.Svc.MarkAsSent)
}

// View: POST /api/invoices/{id}/view
func (h *InvoiceHandler) View(w http.ResponseWriter, r *http.Request) {
	h.statusOp(w, r, h.Svc.MarkAsViewed)
}

// Cancel: POST /api/invoices/{id}/cancel
func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.statusOp(w, r, h.Svc.Cancel)
}

// Pay: POST /api/invoices/{id}/pay marks the invoice paid, optionally recording a
// payment from the request body.
func (h *InvoiceHandler) Pay(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	// No body settles without recording a payment; malformed JSON is a
	// caller error, never a settlement.
	var in *services.PaymentInput
	var body services.PaymentInput
	switch err := httpx.Decode(r, &body); {
	case err == nil:
		in = &body
	case errors.Is(err, httpx.ErrEmptyBody):
	default:
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	inv, err := h.Svc.MarkAsPaid(r.Context(), userID, id, in)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// statusOp runs one of the explicit status transitions and returns the
// refreshed invoice.
func (h *InvoiceHandler) statusOp(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, userID, id uint) (*models.Invoice, error)) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := op(r.Context(), userID, id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}
