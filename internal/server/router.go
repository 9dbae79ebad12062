// Package server wires handlers, middleware and routes into the root
// http.Handler.
package server

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline/internal/auth"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/handlers"
	"github.com/ledgerline/ledgerline/internal/httpx"
	"github.com/ledgerline/ledgerline/internal/services"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, authCfg config.AuthConfig) http.Handler {
	mux := http.NewServeMux()

	// --- Health endpoints ---
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	ah := handlers.NewAuthHandler(db, authCfg)
	ch := handlers.NewClientHandler(services.NewClientService(db))
	ih := handlers.NewInvoiceHandler(services.NewInvoiceService(db))

	// Public
	mux.HandleFunc("POST /api/signup", ah.Signup)
	mux.HandleFunc("POST /api/login", ah.Login)

	// Authenticated
	protected := func(h http.HandlerFunc) http.Handler {
		return auth.RequireAuth(h)
	}
	mux.Handle("GET /api/me", protected(ah.Me))

	mux.Handle("GET /api/clients", protected(ch.List))
	mux.Handle("POST /api/clients", protected(ch.Create))
	mux.Handle("GET /api/clients/{id}", protected(ch.Get))
	mux.Handle("PUT /api/clients/{id}", protected(ch.Update))
	mux.Handle("DELETE /api/clients/{id}", protected(ch.Delete))
	mux.Handle("GET /api/clients/{id}/summary", protected(ch.Summary))

	mux.Handle("GET /api/invoices", protected(ih.List))
	mux.Handle("POST /api/invoices", protected(ih.Create))
	mux.Handle("GET /api/invoices/{id}", protected(ih.Get))
	mux.Handle("PUT /api/invoices/{id}", protected(ih.Update))
	mux.Handle("DELETE /api/invoices/{id}", protected(ih.Delete))
	mux.Handle("POST /api/invoices/{id}/payments", protected(ih.AddPayment))
	mux.Handle("POST /api/invoices/{id}/send", protected(ih.Send))
	mux.Handle("POST /api/invoices/{id}/view", protected(ih.View))
	mux.Handle("POST /api/invoices/{id}/cancel", protected(ih.Cancel))
	mux.Handle("POST /api/invoices/{id}/pay", protected(ih.Pay))

	return withRequestID(withLogging(auth.Middleware(authCfg.JWTSecret)(mux)))
}
