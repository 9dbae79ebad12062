package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline/internal/auth"
	"github.com/ledgerline/ledgerline/internal/models"
	"github.com/ledgerline/ledgerline/internal/services"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}, &models.Client{}, &models.Invoice{}, &models.InvoiceItem{}, &models.Payment{}, &models.InvoiceSequence{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedFixtures(t *testing.T, conn *gorm.DB) (models.User, models.Client) {
	t.Helper()
	user := models.User{Email: "inv@test", Password: "x"}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	client := models.Client{UserID: user.ID, Name: "ClientCo"}
	if err := conn.Create(&client).Error; err != nil {
		t.Fatalf("client: %v", err)
	}
	return user, client
}

func authedRequest(user models.User, method, target, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(auth.WithUserID(req.Context(), user.ID))
}

func TestInvoiceCreateJSON(t *testing.T) {
	conn := setupHandlerTestDB(t)
	user, client := seedFixtures(t, conn)
	h := NewInvoiceHandler(services.NewInvoiceService(conn))

	due := time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339)
	body := fmt.Sprintf(`{"client_id":%d,"due_date":%q,"items":[{"description":"Consulting","quantity":1,"unit_price":1000}]}`, client.ID, due)

	req := authedRequest(user, http.MethodPost, "/api/invoices", body)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var created models.Invoice
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.Status != models.InvoiceStatusDraft {
		t.Errorf("status = %s, want draft", created.Status)
	}
	if created.Total != 1000 {
		t.Errorf("total = %f, want 1000", created.Total)
	}
	if !strings.HasPrefix(created.Number, "INV-") {
		t.Errorf("number = %q, want INV- prefix", created.Number)
	}
}

func TestInvoiceCreateValidationError(t *testing.T) {
	conn := setupHandlerTestDB(t)
	user, client := seedFixtures(t, conn)
	h := NewInvoiceHandler(services.NewInvoiceService(conn))

	body := fmt.Sprintf(`{"client_id":%d,"items":[]}`, client.ID)
	req := authedRequest(user, http.MethodPost, "/api/invoices", body)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["error"] != "validation_failed" {
		t.Errorf("error = %v, want validation_failed", resp["error"])
	}
	details, _ := resp["details"].(map[string]any)
	if _, ok := details["items"]; !ok {
		t.Errorf("details missing items violation: %v", resp["details"])
	}
}

func TestInvoicePaymentFlow(t *testing.T) {
	conn := setupHandlerTestDB(t)
	user, client := seedFixtures(t, conn)
	svc := services.NewInvoiceService(conn)
	h := NewInvoiceHandler(svc)

	due := time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339)
	createBody := fmt.Sprintf(`{"client_id":%d,"due_date":%q,"items":[{"description":"Work","quantity":2,"unit_price":250}]}`, client.ID, due)
	req := authedRequest(user, http.MethodPost, "/api/invoices", createBody)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var created models.Invoice
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	payReq := authedRequest(user, http.MethodPost, fmt.Sprintf("/api/invoices/%d/payments", created.ID), `{"amount":500,"method":"credit_card"}`)
	payReq.SetPathValue("id", fmt.Sprint(created.ID))
	w = httptest.NewRecorder()
	h.AddPayment(w, payReq)
	if w.Code != http.StatusOK {
		t.Fatalf("payment: expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var paid models.Invoice
	if err := json.Unmarshal(w.Body.Bytes(), &paid); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if paid.Status != models.InvoiceStatusPaid {
		t.Errorf("status = %s, want paid", paid.Status)
	}
	if paid.RemainingBalance != 0 {
		t.Errorf("remaining = %f, want 0", paid.RemainingBalance)
	}
}

func TestInvoicePay(t *testing.T) {
	conn := setupHandlerTestDB(t)
	user, client := seedFixtures(t, conn)
	svc := services.NewInvoiceService(conn)
	h := NewInvoiceHandler(svc)

	newDraft := func(t *testing.T) *models.Invoice {
		t.Helper()
		inv, err := svc.Create(authedRequest(user, http.MethodGet, "/", "").Context(), user.ID, services.InvoiceInput{
			ClientID: client.ID,
			DueDate:  time.Now().Add(24 * time.Hour),
			Items:    []services.ItemInput{{Description: "Audit", Quantity: 1, UnitPrice: 1000}},
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return inv
	}
	pay := func(inv *models.Invoice, body string) *httptest.ResponseRecorder {
		req := authedRequest(user, http.MethodPost, fmt.Sprintf("/api/invoices/%d/pay", inv.ID), body)
		req.SetPathValue("id", fmt.Sprint(inv.ID))
		w := httptest.NewRecorder()
		h.Pay(w, req)
		return w
	}

	t.Run("empty body settles without a payment record", func(t *testing.T) {
		inv := newDraft(t)
		w := pay(inv, "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
		}
		var paid models.Invoice
		if err := json.Unmarshal(w.Body.Bytes(), &paid); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if paid.Status != models.InvoiceStatusPaid || paid.RemainingBalance != 0 {
			t.Errorf("status = %s remaining = %f, want paid/0", paid.Status, paid.RemainingBalance)
		}
		if len(paid.Payments) != 0 {
			t.Errorf("recorded %d payments, want 0", len(paid.Payments))
		}
	})

	t.Run("malformed body never settles", func(t *testing.T) {
		inv := newDraft(t)
		w := pay(inv, `{"amount": "abc"`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
		}
		var resp map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp["error"] != "invalid_json" {
			t.Errorf("error = %v, want invalid_json", resp["error"])
		}
		got, err := svc.Get(authedRequest(user, http.MethodGet, "/", "").Context(), user.ID, inv.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != models.InvoiceStatusDraft {
			t.Errorf("status = %s, want draft untouched", got.Status)
		}
		if got.TotalPaid != 0 {
			t.Errorf("total_paid = %f, want 0", got.TotalPaid)
		}
	})

	t.Run("with details records the balance as a payment", func(t *testing.T) {
		inv := newDraft(t)
		w := pay(inv, `{"method":"check","reference":"CHK-7"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
		}
		var paid models.Invoice
		if err := json.Unmarshal(w.Body.Bytes(), &paid); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(paid.Payments) != 1 || paid.Payments[0].Reference != "CHK-7" {
			t.Errorf("payments = %+v, want one with reference CHK-7", paid.Payments)
		}
	})
}

func TestInvoiceGetNotFoundForOtherOwner(t *testing.T) {
	conn := setupHandlerTestDB(t)
	user, client := seedFixtures(t, conn)
	stranger := models.User{Email: "stranger@test", Password: "x"}
	if err := conn.Create(&stranger).Error; err != nil {
		t.Fatalf("stranger: %v", err)
	}
	svc := services.NewInvoiceService(conn)
	h := NewInvoiceHandler(svc)

	inv, err := svc.Create(authedRequest(user, http.MethodGet, "/", "").Context(), user.ID, services.InvoiceInput{
		ClientID: client.ID,
		DueDate:  time.Now().Add(24 * time.Hour),
		Items:    []services.ItemInput{{Description: "x", Quantity: 1, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req := authedRequest(stranger, http.MethodGet, fmt.Sprintf("/api/invoices/%d", inv.ID), "")
	req.SetPathValue("id", fmt.Sprint(inv.ID))
	w := httptest.NewRecorder()
	h.Get(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestInvoiceSendTransition(t *testing.T) {
	conn := setupHandlerTestDB(t)
	user, client := seedFixtures(t, conn)
	svc := services.NewInvoiceService(conn)
	h := NewInvoiceHandler(svc)

	inv, err := svc.Create(authedRequest(user, http.MethodGet, "/", "").Context(), user.ID, services.InvoiceInput{
		ClientID: client.ID,
		DueDate:  time.Now().Add(24 * time.Hour),
		Items:    []services.ItemInput{{Description: "x", Quantity: 1, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	send := func() *httptest.ResponseRecorder {
		req := authedRequest(user, http.MethodPost, fmt.Sprintf("/api/invoices/%d/send", inv.ID), "")
		req.SetPathValue("id", fmt.Sprint(inv.ID))
		w := httptest.NewRecorder()
		h.Send(w, req)
		return w
	}

	if w := send(); w.Code != http.StatusOK {
		t.Fatalf("send: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	// already sent: transition is draft-only
	if w := send(); w.Code != http.StatusConflict {
		t.Fatalf("resend: expected 409 got %d body=%s", w.Code, w.Body.String())
	}
}
