package models

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

// InvoiceStatus represents the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusViewed    InvoiceStatus = "viewed"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// DiscountType selects how the invoice-level discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// PaymentMethod is the fixed enumeration of accepted payment methods.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCheck        PaymentMethod = "check"
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentPaypal       PaymentMethod = "paypal"
	PaymentOther        PaymentMethod = "other"
)

// ValidPaymentMethod reports whether m is one of the accepted methods.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCash, PaymentCheck, PaymentCreditCard, PaymentBankTransfer, PaymentPaypal, PaymentOther:
		return true
	}
	return false
}

// MaxInvoiceItems caps the number of line items per invoice.
const MaxInvoiceItems = 100

// paidTolerance absorbs sub-cent residue when deciding whether an invoice
// is fully paid.
const paidTolerance = 0.01

// Invoice represents a billing invoice and its full financial ledger.
// Implements the Ownable interface for ownership-based authorization.
//
// All derived fields (Subtotal, DiscountAmount, TaxAmount, Total,
// RemainingBalance and the per-item amounts) are recomputed by Recalculate
// before every save; values supplied by callers are never authoritative.
type Invoice struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// UserID is the owner of this invoice (for multi-tenant isolation)
	UserID uint `gorm:"index;not null;uniqueIndex:idx_invoices_owner_number" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"-"`

	// Number is unique per owner. Auto-assigned from the owner's yearly
	// sequence when left empty at creation.
	Number string `gorm:"size:50;not null;uniqueIndex:idx_invoices_owner_number" json:"number"`

	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	IssueDate time.Time `gorm:"not null" json:"issue_date"`
	DueDate   time.Time `gorm:"not null" json:"due_date"`

	// Currency is a 3-letter code, stored uppercased. Not checked against
	// a real ISO list.
	Currency string `gorm:"size:3;not null;default:'USD'" json:"currency"`

	Status   InvoiceStatus `gorm:"size:20;not null;default:'draft'" json:"status"`
	SentAt   *time.Time    `json:"sent_at,omitempty"`
	ViewedAt *time.Time    `json:"viewed_at,omitempty"`
	PaidAt   *time.Time    `json:"paid_at,omitempty"`

	// Invoice-level financial parameters
	TaxRate       float64      `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	DiscountType  DiscountType `gorm:"size:20;not null;default:'percentage'" json:"discount_type"`
	DiscountValue float64      `gorm:"type:decimal(10,2);not null;default:0" json:"discount_value"`
	ShippingCost  float64      `gorm:"type:decimal(10,2);not null;default:0" json:"shipping_cost"`

	// Derived financial fields, rounded to 2 decimals
	Subtotal         float64 `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	DiscountAmount   float64 `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	TaxAmount        float64 `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	Total            float64 `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	TotalPaid        float64 `gorm:"type:decimal(12,2);not null;default:0" json:"total_paid"`
	RemainingBalance float64 `gorm:"type:decimal(12,2);not null;default:0" json:"remaining_balance"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`

	Items    []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payments []Payment     `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"payments,omitempty"`
}

// GetUserID implements the Ownable interface for authorization.
func (i *Invoice) GetUserID() uint {
	return i.UserID
}

// IsDraft returns true if the invoice is in draft status.
func (i *Invoice) IsDraft() bool {
	return i.Status == InvoiceStatusDraft
}

// IsClosed returns true once the invoice reached a terminal status.
// Closed invoices are never moved by the save-time auto-transitions.
func (i *Invoice) IsClosed() bool {
	return i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusCancelled
}

// Settled reports whether the remaining balance is within the paid
// tolerance, i.e. there is nothing left to collect.
func (i *Invoice) Settled() bool {
	return i.RemainingBalance <= paidTolerance
}

// Round2 rounds a monetary amount to 2 decimal places, ties away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recalculate recomputes every derived financial field from the current
// items, parameters and payments, then re-derives the overdue status.
// It must run before every persistence of the invoice so stored totals are
// never stale. Line items carry full precision; only the invoice-level
// aggregates are rounded.
//
// A discount larger than the subtotal produces a negative taxable amount
// that flows through to the tax and total unclamped.
func (i *Invoice) Recalculate(now time.Time) {
	var subtotal float64
	for idx := range i.Items {
		i.Items[idx].Compute()
		subtotal += i.Items[idx].Subtotal
	}

	var discount float64
	if i.DiscountValue != 0 {
		if i.DiscountType == DiscountPercentage {
			discount = subtotal * i.DiscountValue / 100
		} else {
			discount = i.DiscountValue
		}
	}

	taxable := subtotal - discount
	tax := taxable * i.TaxRate / 100
	total := taxable + tax + i.ShippingCost

	i.Subtotal = Round2(subtotal)
	i.DiscountAmount = Round2(discount)
	i.TaxAmount = Round2(tax)
	i.Total = Round2(total)
	i.TotalPaid = Round2(i.TotalPaid)
	i.RemainingBalance = Round2(i.Total - i.TotalPaid)

	i.deriveOverdue(now)
}

// deriveOverdue flips a sent/viewed invoice to overdue once the due date has
// passed. Terminal and draft statuses are left alone.
func (i *Invoice) deriveOverdue(now time.Time) {
	if i.Status == InvoiceStatusSent || i.Status == InvoiceStatusViewed {
		if now.After(i.DueDate) {
			i.Status = InvoiceStatusOverdue
		}
	}
}

// ApplyPayment appends a payment record and updates the running balance.
// The caller validates the payment first. When the remaining balance drops
// within the paid tolerance the invoice converges to paid; repeated
// payments on a paid invoice never un-pay it.
func (i *Invoice) ApplyPayment(p Payment, now time.Time) {
	i.Payments = append(i.Payments, p)

	var paid float64
	for _, pay := range i.Payments {
		paid += pay.Amount
	}
	i.TotalPaid = Round2(paid)
	i.RemainingBalance = Round2(i.Total - i.TotalPaid)

	if i.Settled() && i.Status != InvoiceStatusPaid {
		i.Status = InvoiceStatusPaid
		t := now
		i.PaidAt = &t
	}
}

// MarkAsSent transitions a draft invoice to sent. Returns false if the
// invoice is not in draft.
func (i *Invoice) MarkAsSent(now time.Time) bool {
	if i.Status != InvoiceStatusDraft {
		return false
	}
	i.Status = InvoiceStatusSent
	t := now
	i.SentAt = &t
	return true
}

// MarkAsViewed transitions a sent invoice to viewed. Returns false if the
// invoice is not in sent.
func (i *Invoice) MarkAsViewed(now time.Time) bool {
	if i.Status != InvoiceStatusSent {
		return false
	}
	i.Status = InvoiceStatusViewed
	t := now
	i.ViewedAt = &t
	return true
}

// MarkAsPaid forces the invoice to paid without going through the payment
// ledger: total paid is pinned to the total and the balance zeroed. Used
// for manual reconciliation.
func (i *Invoice) MarkAsPaid(now time.Time) {
	i.Status = InvoiceStatusPaid
	i.TotalPaid = i.Total
	i.RemainingBalance = 0
	t := now
	i.PaidAt = &t
}

// Cancel moves the invoice to cancelled from any status.
func (i *Invoice) Cancel() {
	i.Status = InvoiceStatusCancelled
}

// IsOverdue reports whether the invoice is past due. Pure read: unlike the
// save-time derivation it never mutates status.
func (i *Invoice) IsOverdue(now time.Time) bool {
	if i.Status == InvoiceStatusOverdue {
		return true
	}
	if i.Status == InvoiceStatusSent || i.Status == InvoiceStatusViewed {
		return now.After(i.DueDate)
	}
	return false
}

// DaysUntilDue returns the number of whole days until the due date,
// negative once past due.
func (i *Invoice) DaysUntilDue(now time.Time) int {
	return int(math.Floor(i.DueDate.Sub(now).Hours() / 24))
}

// InvoiceItem represents a single billable line on an invoice.
type InvoiceItem struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	InvoiceID uint     `gorm:"index;not null" json:"invoice_id"`
	Invoice   *Invoice `gorm:"foreignKey:InvoiceID" json:"-"`

	Description string  `gorm:"size:500;not null" json:"description"`
	Quantity    float64 `gorm:"type:decimal(10,3);not null" json:"quantity"`
	UnitPrice   float64 `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TaxRate     float64 `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	Discount    float64 `gorm:"type:decimal(5,2);not null;default:0" json:"discount"`
	Category    string  `gorm:"size:100" json:"category,omitempty"`
	Unit        string  `gorm:"size:50" json:"unit,omitempty"`

	// Derived, unrounded. Rounding happens only at invoice aggregation so
	// line sums do not drift from the displayed totals.
	Subtotal  float64 `gorm:"type:decimal(14,4);not null;default:0" json:"subtotal"`
	TaxAmount float64 `gorm:"type:decimal(14,4);not null;default:0" json:"tax_amount"`
	Total     float64 `gorm:"type:decimal(14,4);not null;default:0" json:"total"`
}

// Compute fills the derived amounts from quantity, price, discount and tax.
func (it *InvoiceItem) Compute() {
	raw := it.Quantity * it.UnitPrice
	sub := raw
	if it.Discount > 0 {
		sub = raw - raw*it.Discount/100
	}
	it.Subtotal = sub
	it.TaxAmount = sub * it.TaxRate / 100
	it.Total = it.Subtotal + it.TaxAmount
}

// Payment is a single entry in an invoice's append-only payment history.
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InvoiceID uint     `gorm:"index;not null" json:"invoice_id"`
	Invoice   *Invoice `gorm:"foreignKey:InvoiceID" json:"-"`

	Amount    float64       `gorm:"type:decimal(12,2);not null" json:"amount"`
	Date      time.Time     `gorm:"not null" json:"date"`
	Method    PaymentMethod `gorm:"size:20;not null" json:"method"`
	Reference string        `gorm:"size:100" json:"reference,omitempty"`
	Notes     string        `gorm:"size:500" json:"notes,omitempty"`
}

// InvoiceNumber formats an invoice number from a year and sequence value.
// Format: INV-YYYY-NNNN (e.g., INV-2026-0001)
func InvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%04d", year, seq)
}
