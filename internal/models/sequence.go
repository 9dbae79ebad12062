package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceSequence is the per-owner, per-year counter backing automatic
// invoice numbering. Keeping the counter in its own row lets creation lock
// and increment it atomically instead of racing a count-then-format read.
type InvoiceSequence struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID    uint  `gorm:"not null;uniqueIndex:idx_invoice_seq_owner_year"`
	Year      int   `gorm:"not null;uniqueIndex:idx_invoice_seq_owner_year"`
	LastValue int64 `gorm:"not null;default:0"`
}

// NextInvoiceNumber allocates the next number for the owner/year pair.
// Must be called inside the transaction that creates the invoice, so a
// failed create releases the sequence value together with the row lock.
//
// The counter row is upserted before the locked read: two concurrent first
// allocations for a fresh owner/year pair both land on the lock instead of
// racing the insert.
func NextInvoiceNumber(tx *gorm.DB, userID uint, year int) (string, error) {
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&InvoiceSequence{UserID: userID, Year: year}).Error
	if err != nil {
		return "", err
	}

	q := tx
	if tx.Dialector.Name() == "postgres" {
		// sqlite serializes writers on its own and rejects FOR UPDATE
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var seq InvoiceSequence
	if err := q.Where("user_id = ? AND year = ?", userID, year).First(&seq).Error; err != nil {
		return "", err
	}

	seq.LastValue++
	if err := tx.Save(&seq).Error; err != nil {
		return "", err
	}
	return InvoiceNumber(year, seq.LastValue), nil
}
