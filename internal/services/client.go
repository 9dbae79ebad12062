package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline/internal/models"
	"github.com/ledgerline/ledgerline/internal/validation"
)

// ClientService handles client CRUD and the on-demand financial rollup.
type ClientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) *ClientService {
	return &ClientService{db: db}
}

// ClientInput is the caller-supplied client payload for create/update.
type ClientInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Company    string `json:"company"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func validateClient(in *ClientInput) validation.Violations {
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		v.Add("email", "invalid_email")
	}
	return v
}

func (s *ClientService) Create(ctx context.Context, userID uint, in ClientInput) (*models.Client, error) {
	if v := validateClient(&in); !v.Empty() {
		return nil, validationErr(v)
	}
	c := &models.Client{
		UserID:     userID,
		Name:       in.Name,
		Email:      in.Email,
		Phone:      in.Phone,
		Company:    in.Company,
		Address:    in.Address,
		City:       in.City,
		PostalCode: in.PostalCode,
		Country:    in.Country,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ClientService) Get(ctx context.Context, userID, id uint) (*models.Client, error) {
	var c models.Client
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&c, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *ClientService) List(ctx context.Context, userID uint) ([]models.Client, error) {
	var clients []models.Client
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name").
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *ClientService) Update(ctx context.Context, userID, id uint, in ClientInput) (*models.Client, error) {
	if v := validateClient(&in); !v.Empty() {
		return nil, validationErr(v)
	}
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.Email = in.Email
	c.Phone = in.Phone
	c.Company = in.Company
	c.Address = in.Address
	c.City = in.City
	c.PostalCode = in.PostalCode
	c.Country = in.Country
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a client that has no invoices. Clients referenced by
// invoices must keep existing for the documents to stay resolvable.
func (s *ClientService) Delete(ctx context.Context, userID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Client
		if err := tx.Where("user_id = ?", userID).First(&c, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var cnt int64
		if err := tx.Model(&models.Invoice{}).Where("client_id = ?", c.ID).Count(&cnt).Error; err != nil {
			return err
		}
		if cnt > 0 {
			return ErrConflict
		}
		return tx.Delete(&c).Error
	})
}

// Summary recomputes the client's aggregated financial counters from its
// full invoice set, persists them and returns the refreshed client.
func (s *ClientService) Summary(ctx context.Context, userID, id uint) (*models.Client, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	var invoices []models.Invoice
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND client_id = ?", userID, id).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	c.RefreshFinancials(invoices)
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}
