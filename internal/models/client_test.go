package models

import (
	"testing"
	"time"
)

func TestClient_RefreshFinancials(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
	}

	invoices := []Invoice{
		{Status: InvoiceStatusPaid, Total: 1000, TotalPaid: 1000, RemainingBalance: 0, IssueDate: day(1)},
		{Status: InvoiceStatusSent, Total: 500, TotalPaid: 200, RemainingBalance: 300, IssueDate: day(10)},
		{Status: InvoiceStatusCancelled, Total: 750, TotalPaid: 0, RemainingBalance: 750, IssueDate: day(5)},
	}

	var c Client
	c.RefreshFinancials(invoices)

	if c.TotalInvoiced != 1500 { // cancelled excluded
		t.Errorf("TotalInvoiced = %f, want 1500", c.TotalInvoiced)
	}
	if c.TotalPaid != 1200 {
		t.Errorf("TotalPaid = %f, want 1200", c.TotalPaid)
	}
	if c.OutstandingBalance != 300 {
		t.Errorf("OutstandingBalance = %f, want 300", c.OutstandingBalance)
	}
	if c.InvoiceCount != 3 {
		t.Errorf("InvoiceCount = %d, want 3", c.InvoiceCount)
	}
	if c.LastInvoiceDate == nil || !c.LastInvoiceDate.Equal(day(10)) {
		t.Errorf("LastInvoiceDate = %v, want %v", c.LastInvoiceDate, day(10))
	}
}

func TestClient_RefreshFinancials_Empty(t *testing.T) {
	c := Client{TotalInvoiced: 99, InvoiceCount: 7}
	c.RefreshFinancials(nil)
	if c.TotalInvoiced != 0 || c.TotalPaid != 0 || c.OutstandingBalance != 0 || c.InvoiceCount != 0 {
		t.Errorf("counters not reset: %+v", c)
	}
	if c.LastInvoiceDate != nil {
		t.Errorf("LastInvoiceDate = %v, want nil", c.LastInvoiceDate)
	}
}
