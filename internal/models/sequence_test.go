package models

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func sequenceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&InvoiceSequence{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestNextInvoiceNumber(t *testing.T) {
	conn := sequenceTestDB(t)

	for i, want := range []string{"INV-2026-0001", "INV-2026-0002", "INV-2026-0003"} {
		got, err := NextInvoiceNumber(conn, 1, 2026)
		if err != nil {
			t.Fatalf("allocation %d: %v", i+1, err)
		}
		if got != want {
			t.Errorf("allocation %d = %q, want %q", i+1, got, want)
		}
	}

	// other owners and other years keep their own counters
	if got, _ := NextInvoiceNumber(conn, 2, 2026); got != "INV-2026-0001" {
		t.Errorf("owner 2 = %q, want INV-2026-0001", got)
	}
	if got, _ := NextInvoiceNumber(conn, 1, 2027); got != "INV-2027-0001" {
		t.Errorf("year 2027 = %q, want INV-2027-0001", got)
	}

	var count int64
	if err := conn.Model(&InvoiceSequence{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("sequence rows = %d, want 3", count)
	}
}

// A counter row that already exists is incremented in place: the upsert on
// allocation must not error or reset it.
func TestNextInvoiceNumber_ExistingRow(t *testing.T) {
	conn := sequenceTestDB(t)
	if err := conn.Create(&InvoiceSequence{UserID: 5, Year: 2026, LastValue: 41}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := NextInvoiceNumber(conn, 5, 2026)
	if err != nil {
		t.Fatalf("NextInvoiceNumber: %v", err)
	}
	if got != "INV-2026-0042" {
		t.Errorf("got %q, want INV-2026-0042", got)
	}

	var count int64
	if err := conn.Model(&InvoiceSequence{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("sequence rows = %d, want 1", count)
	}
}
