package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline/internal/models"
	"github.com/ledgerline/ledgerline/internal/validation"
)

// InvoiceService owns the invoice write path. Every mutation recomputes the
// invoice's derived totals through Recalculate before persisting, so stored
// figures are never stale relative to items and parameters.
type InvoiceService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewInvoiceService(db *gorm.DB) *InvoiceService {
	return &InvoiceService{db: db, now: time.Now}
}

// ItemInput is a caller-supplied line item. Derived amounts are always
// recomputed server-side, never taken from the caller.
type ItemInput struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"`
	Discount    float64 `json:"discount"`
	Category    string  `json:"category"`
	Unit        string  `json:"unit"`
}

// InvoiceInput is the caller-supplied invoice payload for create/update.
type InvoiceInput struct {
	ClientID      uint        `json:"client_id"`
	Number        string      `json:"number"`
	IssueDate     time.Time   `json:"issue_date"`
	DueDate       time.Time   `json:"due_date"`
	Currency      string      `json:"currency"`
	TaxRate       float64     `json:"tax_rate"`
	DiscountType  string      `json:"discount_type"`
	DiscountValue float64     `json:"discount_value"`
	ShippingCost  float64     `json:"shipping_cost"`
	Notes         string      `json:"notes"`
	Items         []ItemInput `json:"items"`
}

// PaymentInput is a caller-supplied payment record.
type PaymentInput struct {
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Method    string    `json:"method"`
	Reference string    `json:"reference"`
	Notes     string    `json:"notes"`
}

// ListQuery captures filter and paging options for listing invoices.
type ListQuery struct {
	Status   string
	ClientID uint
	Limit    int
	Page     int
}

// Create validates the input, allocates a number from the owner's yearly
// sequence when none is given, computes all totals and persists the new
// draft invoice in one transaction.
func (s *InvoiceService) Create(ctx context.Context, userID uint, in InvoiceInput) (*models.Invoice, error) {
	normalizeInput(&in, s.now())
	if v := validateInvoice(&in); !v.Empty() {
		return nil, validationErr(v)
	}

	inv := buildInvoice(userID, in)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cnt int64
		if err := tx.Model(&models.Client{}).
			Where("id = ? AND user_id = ?", in.ClientID, userID).
			Count(&cnt).Error; err != nil {
			return err
		}
		if cnt == 0 {
			return validationErr(validation.Violations{"client_id": "unknown"})
		}

		if inv.Number == "" {
			number, err := models.NextInvoiceNumber(tx, userID, inv.IssueDate.Year())
			if err != nil {
				return err
			}
			inv.Number = number
		}

		inv.Recalculate(s.now())
		if err := tx.Create(inv).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Get loads an invoice by id within the owner's scope.
func (s *InvoiceService) Get(ctx context.Context, userID, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Items").Preload("Payments").Preload("Client").
		First(&inv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// List returns a page of the owner's invoices plus the unpaged total.
func (s *InvoiceService) List(ctx context.Context, userID uint, q ListQuery) ([]models.Invoice, int64, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	offset := 0
	if q.Page > 1 {
		offset = (q.Page - 1) * q.Limit
	}

	dbq := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if q.Status != "" {
		dbq = dbq.Where("status = ?", q.Status)
	}
	if q.ClientID != 0 {
		dbq = dbq.Where("client_id = ?", q.ClientID)
	}

	var total int64
	if err := dbq.Model(&models.Invoice{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var invoices []models.Invoice
	err := dbq.Preload("Items").
		Order("created_at DESC").Limit(q.Limit).Offset(offset).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// Update replaces the invoice's attributes and line items, then recomputes
// and persists. Status is untouched: lifecycle moves only through the
// dedicated operations and the save-time overdue derivation.
func (s *InvoiceService) Update(ctx context.Context, userID, id uint, in InvoiceInput) (*models.Invoice, error) {
	normalizeInput(&in, s.now())
	if v := validateInvoice(&in); !v.Empty() {
		return nil, validationErr(v)
	}

	var inv *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = s.lockInvoice(tx, userID, id)
		if err != nil {
			return err
		}

		inv.ClientID = in.ClientID
		inv.IssueDate = in.IssueDate
		inv.DueDate = in.DueDate
		inv.Currency = strings.ToUpper(in.Currency)
		inv.TaxRate = in.TaxRate
		inv.DiscountType = models.DiscountType(in.DiscountType)
		inv.DiscountValue = in.DiscountValue
		inv.ShippingCost = in.ShippingCost
		inv.Notes = in.Notes
		if in.Number != "" {
			inv.Number = in.Number
		}

		// Replace the item set wholesale; derived amounts are recomputed
		// from scratch anyway.
		if err := tx.Where("invoice_id = ?", inv.ID).Unscoped().Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		inv.Items = buildItems(in.Items)

		return s.save(tx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Delete removes a draft invoice. Finalized documents are never deletable.
func (s *InvoiceService) Delete(ctx context.Context, userID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.lockInvoice(tx, userID, id)
		if err != nil {
			return err
		}
		if !inv.IsDraft() {
			return ErrInvalidStatus
		}
		return tx.Delete(inv).Error
	})
}

// AddPayment appends a validated payment to the invoice's ledger and
// updates the running balance. When the remaining balance falls within the
// paid tolerance the invoice converges to paid.
func (s *InvoiceService) AddPayment(ctx context.Context, userID, id uint, in PaymentInput) (*models.Invoice, error) {
	if v := validatePayment(&in); !v.Empty() {
		return nil, validationErr(v)
	}
	return s.mutate(ctx, userID, id, func(inv *models.Invoice) error {
		inv.ApplyPayment(buildPayment(in, s.now()), s.now())
		return nil
	})
}

// MarkAsSent moves a draft invoice to sent.
func (s *InvoiceService) MarkAsSent(ctx context.Context, userID, id uint) (*models.Invoice, error) {
	return s.mutate(ctx, userID, id, func(inv *models.Invoice) error {
		if !inv.MarkAsSent(s.now()) {
			return ErrInvalidStatus
		}
		return nil
	})
}

// MarkAsViewed moves a sent invoice to viewed.
func (s *InvoiceService) MarkAsViewed(ctx context.Context, userID, id uint) (*models.Invoice, error) {
	return s.mutate(ctx, userID, id, func(inv *models.Invoice) error {
		if !inv.MarkAsViewed(s.now()) {
			return ErrInvalidStatus
		}
		return nil
	})
}

// Cancel moves the invoice to cancelled from any status.
func (s *InvoiceService) Cancel(ctx context.Context, userID, id uint) (*models.Invoice, error) {
	return s.mutate(ctx, userID, id, func(inv *models.Invoice) error {
		inv.Cancel()
		return nil
	})
}

// MarkAsPaid settles the invoice. With payment details it records a real
// payment, defaulting the amount to the current remaining balance; without
// them it forces the paid state directly, bypassing the payment ledger
// (manual reconciliation).
func (s *InvoiceService) MarkAsPaid(ctx context.Context, userID, id uint, in *PaymentInput) (*models.Invoice, error) {
	if in != nil {
		if in.Method == "" {
			in.Method = string(models.PaymentOther)
		}
		return s.mutate(ctx, userID, id, func(inv *models.Invoice) error {
			if inv.Settled() {
				// nothing left to collect
				return nil
			}
			p := *in
			if p.Amount == 0 {
				p.Amount = inv.RemainingBalance
			}
			if v := validatePayment(&p); !v.Empty() {
				return validationErr(v)
			}
			inv.ApplyPayment(buildPayment(p, s.now()), s.now())
			return nil
		})
	}
	return s.mutate(ctx, userID, id, func(inv *models.Invoice) error {
		inv.MarkAsPaid(s.now())
		return nil
	})
}

// mutate is the shared write path: load owner-scoped, apply the operation,
// recompute and save, all in one transaction.
func (s *InvoiceService) mutate(ctx context.Context, userID, id uint, op func(*models.Invoice) error) (*models.Invoice, error) {
	var inv *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = s.lockInvoice(tx, userID, id)
		if err != nil {
			return err
		}
		if err := op(inv); err != nil {
			return err
		}
		return s.save(tx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// lockInvoice loads an invoice with items and payments inside tx.
func (s *InvoiceService) lockInvoice(tx *gorm.DB, userID, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := tx.Where("user_id = ?", userID).
		Preload("Items").Preload("Payments").
		First(&inv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// save recomputes all derived fields and persists invoice plus associations.
func (s *InvoiceService) save(tx *gorm.DB, inv *models.Invoice) error {
	inv.Recalculate(s.now())
	err := tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(inv).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

func normalizeInput(in *InvoiceInput, now time.Time) {
	if in.IssueDate.IsZero() {
		in.IssueDate = now
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if in.DiscountType == "" {
		in.DiscountType = string(models.DiscountPercentage)
	}
}

func validateInvoice(in *InvoiceInput) validation.Violations {
	v := make(validation.Violations)
	if in.ClientID == 0 {
		v.Add("client_id", "required")
	}
	if in.DueDate.IsZero() {
		v.Add("due_date", "required")
	} else if in.DueDate.Before(in.IssueDate) {
		v.Add("due_date", "before_issue_date")
	}
	validation.CurrencyCode("currency", in.Currency, v)
	validation.RangeFloat("tax_rate", in.TaxRate, 0, 100, v)
	validation.NonNegativeFloat("discount_value", in.DiscountValue, v)
	validation.NonNegativeFloat("shipping_cost", in.ShippingCost, v)
	switch models.DiscountType(in.DiscountType) {
	case models.DiscountPercentage, models.DiscountFixed:
	default:
		v.Add("discount_type", "invalid")
	}
	if in.DiscountType == string(models.DiscountPercentage) {
		validation.RangeFloat("discount_value", in.DiscountValue, 0, 100, v)
	}

	if len(in.Items) == 0 {
		v.Add("items", "required")
	} else if len(in.Items) > models.MaxInvoiceItems {
		v.Add("items", "too_many")
	}
	for i := range in.Items {
		it := &in.Items[i]
		prefix := fmt.Sprintf("items[%d].", i)
		validation.Required(prefix+"description", it.Description, v)
		validation.PositiveFloat(prefix+"quantity", it.Quantity, v)
		validation.NonNegativeFloat(prefix+"unit_price", it.UnitPrice, v)
		validation.RangeFloat(prefix+"tax_rate", it.TaxRate, 0, 100, v)
		validation.RangeFloat(prefix+"discount", it.Discount, 0, 100, v)
	}
	return v
}

func validatePayment(in *PaymentInput) validation.Violations {
	v := make(validation.Violations)
	validation.PositiveFloat("amount", in.Amount, v)
	if !models.ValidPaymentMethod(models.PaymentMethod(in.Method)) {
		v.Add("method", "invalid_method")
	}
	return v
}

func buildInvoice(userID uint, in InvoiceInput) *models.Invoice {
	return &models.Invoice{
		UserID:        userID,
		ClientID:      in.ClientID,
		Number:        in.Number,
		IssueDate:     in.IssueDate,
		DueDate:       in.DueDate,
		Currency:      strings.ToUpper(in.Currency),
		Status:        models.InvoiceStatusDraft,
		TaxRate:       in.TaxRate,
		DiscountType:  models.DiscountType(in.DiscountType),
		DiscountValue: in.DiscountValue,
		ShippingCost:  in.ShippingCost,
		Notes:         in.Notes,
		Items:         buildItems(in.Items),
	}
}

func buildItems(items []ItemInput) []models.InvoiceItem {
	out := make([]models.InvoiceItem, 0, len(items))
	for _, it := range items {
		out = append(out, models.InvoiceItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			Discount:    it.Discount,
			Category:    it.Category,
			Unit:        it.Unit,
		})
	}
	return out
}

func buildPayment(in PaymentInput, now time.Time) models.Payment {
	date := in.Date
	if date.IsZero() {
		date = now
	}
	return models.Payment{
		Amount:    in.Amount,
		Date:      date,
		Method:    models.PaymentMethod(in.Method),
		Reference: in.Reference,
		Notes:     in.Notes,
	}
}
