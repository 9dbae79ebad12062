package models

import (
	"time"

	"gorm.io/gorm"
)

// Client represents a customer in the billing system.
// Implements the Ownable interface for ownership-based authorization.
type Client struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// UserID is the owner of this client (for multi-tenant isolation)
	UserID uint `gorm:"index;not null" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"-"`

	Name    string `gorm:"size:255;not null" json:"name"`
	Email   string `gorm:"size:255" json:"email,omitempty"`
	Phone   string `gorm:"size:50" json:"phone,omitempty"`
	Company string `gorm:"size:255" json:"company,omitempty"`

	Address    string `gorm:"size:500" json:"address,omitempty"`
	City       string `gorm:"size:100" json:"city,omitempty"`
	PostalCode string `gorm:"size:20" json:"postal_code,omitempty"`
	Country    string `gorm:"size:100" json:"country,omitempty"`

	// Aggregated financial counters, recomputed on demand from the
	// client's invoice set (see ClientService.RefreshFinancials).
	TotalInvoiced      float64    `gorm:"type:decimal(14,2);not null;default:0" json:"total_invoiced"`
	TotalPaid          float64    `gorm:"type:decimal(14,2);not null;default:0" json:"total_paid"`
	OutstandingBalance float64    `gorm:"type:decimal(14,2);not null;default:0" json:"outstanding_balance"`
	InvoiceCount       int64      `gorm:"not null;default:0" json:"invoice_count"`
	LastInvoiceDate    *time.Time `json:"last_invoice_date,omitempty"`

	Invoices []Invoice `gorm:"foreignKey:ClientID" json:"invoices,omitempty"`
}

// GetUserID implements the Ownable interface for authorization.
func (c *Client) GetUserID() uint {
	return c.UserID
}

// RefreshFinancials recomputes the aggregated counters from the given
// invoice set. Cancelled invoices count toward neither the invoiced total
// nor the outstanding balance, but paid amounts already collected stay in.
func (c *Client) RefreshFinancials(invoices []Invoice) {
	var invoiced, paid, outstanding float64
	var last *time.Time

	for idx := range invoices {
		inv := &invoices[idx]
		paid += inv.TotalPaid
		if inv.Status != InvoiceStatusCancelled {
			invoiced += inv.Total
			outstanding += inv.RemainingBalance
		}
		if last == nil || inv.IssueDate.After(*last) {
			t := inv.IssueDate
			last = &t
		}
	}

	c.TotalInvoiced = Round2(invoiced)
	c.TotalPaid = Round2(paid)
	c.OutstandingBalance = Round2(outstanding)
	c.InvoiceCount = int64(len(invoices))
	c.LastInvoiceDate = last
}
