// Package contractor manages contractors, their short codes, dining sites and
// price tiers. Contractors and dining sites are created lazily the first time
// a voucher batch names them.
package contractor

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/gessa-sistemas/boletosgo/internal/apperrors"
	"github.com/gessa-sistemas/boletosgo/internal/models"
)

// Service resolves and maintains contractor master data.
type Service struct {
	db *gorm.DB
}

// NewService creates a contractor service on top of db.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetOrCreate returns the contractor with the given name, creating it with an
// auto-derived code when unseen.
func (s *Service) GetOrCreate(name string) (*models.Contractor, error) {
	if name == "" {
		return nil, apperrors.Validation("contractor name is required")
	}

	var c models.Contractor
	err := s.db.Where("name = ?", name).First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Persistence("lookup contractor", err)
	}

	return s.Create(name, "")
}

// Create inserts a new contractor. When manualCode is empty a code is derived
// from the name; on a code collision a numeric suffix (2, 3, ...) is appended
// until unique. The resulting code depends on insertion order, so callers
// must not assume re-derivation is idempotent across a populated store.
func (s *Service) Create(name, manualCode string) (*models.Contractor, error) {
	code := manualCode
	if code == "" {
		code = DeriveCode(name)
	}
	if code == "" {
		return nil, apperrors.Validation("cannot derive a code from contractor name %q", name)
	}

	final, err := s.uniqueCode(code)
	if err != nil {
		return nil, err
	}

	c := models.Contractor{Name: name, Code: final, Active: true}
	if err := s.db.Create(&c).Error; err != nil {
		return nil, apperrors.Persistence("create contractor", err)
	}
	return &c, nil
}

func (s *Service) uniqueCode(base string) (string, error) {
	code := base
	for suffix := 2; ; suffix++ {
		var count int64
		if err := s.db.Model(&models.Contractor{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return "", apperrors.Persistence("check contractor code", err)
		}
		if count == 0 {
			return code, nil
		}
		code = fmt.Sprintf("%s%d", base, suffix)
	}
}

// List returns all active contractors ordered by name.
func (s *Service) List() ([]models.Contractor, error) {
	var out []models.Contractor
	if err := s.db.Where("active = ?", true).Order("name").Find(&out).Error; err != nil {
		return nil, apperrors.Persistence("list contractors", err)
	}
	return out, nil
}

// GetByCode returns the contractor with the given code.
func (s *Service) GetByCode(code string) (*models.Contractor, error) {
	var c models.Contractor
	if err := s.db.Where("code = ?", code).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("contractor", code)
		}
		return nil, apperrors.Persistence("lookup contractor", err)
	}
	return &c, nil
}

// UpdateCode replaces a contractor's code, keeping uniqueness.
func (s *Service) UpdateCode(name, newCode string) error {
	if newCode == "" {
		return apperrors.Validation("new code is required")
	}
	var count int64
	if err := s.db.Model(&models.Contractor{}).
		Where("code = ? AND name <> ?", newCode, name).Count(&count).Error; err != nil {
		return apperrors.Persistence("check contractor code", err)
	}
	if count > 0 {
		return apperrors.Conflict("code %q is already assigned", newCode)
	}

	res := s.db.Model(&models.Contractor{}).Where("name = ?", name).Update("code", newCode)
	if res.Error != nil {
		return apperrors.Persistence("update contractor code", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("contractor", name)
	}
	return nil
}

// GetSite returns a dining site by id.
func (s *Service) GetSite(id uint) (*models.DiningSite, error) {
	var site models.DiningSite
	if err := s.db.Preload("Contractor").First(&site, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("dining site", fmt.Sprintf("%d", id))
		}
		return nil, apperrors.Persistence("lookup dining site", err)
	}
	return &site, nil
}

// GetOrCreateSite resolves a dining site by name under the given contractor,
// creating it when unseen.
func (s *Service) GetOrCreateSite(name string, contractorID uint) (*models.DiningSite, error) {
	if name == "" {
		return nil, apperrors.Validation("dining site name is required")
	}

	var site models.DiningSite
	err := s.db.Where("name = ? AND contractor_id = ?", name, contractorID).First(&site).Error
	if err == nil {
		return &site, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Persistence("lookup dining site", err)
	}

	site = models.DiningSite{Name: name, ContractorID: contractorID, Active: true}
	if err := s.db.Create(&site).Error; err != nil {
		return nil, apperrors.Persistence("create dining site", err)
	}
	return &site, nil
}

// ListSites returns the active dining sites, optionally scoped to one
// contractor name.
func (s *Service) ListSites(contractorName string) ([]models.DiningSite, error) {
	q := s.db.Preload("Contractor").
		Joins("JOIN contractors ON contractors.id = dining_sites.contractor_id").
		Where("dining_sites.active = ?", true)
	if contractorName != "" {
		q = q.Where("contractors.name = ?", contractorName)
	}

	var out []models.DiningSite
	if err := q.Order("dining_sites.name").Find(&out).Error; err != nil {
		return nil, apperrors.Persistence("list dining sites", err)
	}
	return out, nil
}

// DeactivateSite soft-disables a dining site; historical batches keep their
// reference.
func (s *Service) DeactivateSite(id uint) error {
	res := s.db.Model(&models.DiningSite{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return apperrors.Persistence("deactivate dining site", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("dining site", fmt.Sprintf("%d", id))
	}
	return nil
}

// CreatePriceTier inserts a named unit price.
func (s *Service) CreatePriceTier(name string, unitPrice float64) (*models.PriceTier, error) {
	if name == "" {
		return nil, apperrors.Validation("price tier name is required")
	}
	if unitPrice <= 0 {
		return nil, apperrors.Validation("unit price must be positive")
	}
	tier := models.PriceTier{Name: name, UnitPrice: unitPrice, Active: true}
	if err := s.db.Create(&tier).Error; err != nil {
		return nil, apperrors.Persistence("create price tier", err)
	}
	return &tier, nil
}

// ListPriceTiers returns the active tiers in creation order. The first one is
// the implicit default.
func (s *Service) ListPriceTiers() ([]models.PriceTier, error) {
	var out []models.PriceTier
	if err := s.db.Where("active = ?", true).Order("id").Find(&out).Error; err != nil {
		return nil, apperrors.Persistence("list price tiers", err)
	}
	return out, nil
}

// GetPriceTier returns an active tier by id.
func (s *Service) GetPriceTier(id uint) (*models.PriceTier, error) {
	var tier models.PriceTier
	if err := s.db.Where("id = ? AND active = ?", id, true).First(&tier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("price tier", fmt.Sprintf("%d", id))
		}
		return nil, apperrors.Persistence("lookup price tier", err)
	}
	return &tier, nil
}

// DefaultPriceTier returns the first active tier, or nil when none exist.
func (s *Service) DefaultPriceTier() (*models.PriceTier, error) {
	var tier models.PriceTier
	err := s.db.Where("active = ?", true).Order("id").First(&tier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("lookup default price tier", err)
	}
	return &tier, nil
}

// DeactivatePriceTier soft-disables a tier. Existing batches keep their
// snapshot of the tier name and price.
func (s *Service) DeactivatePriceTier(id uint) error {
	res := s.db.Model(&models.PriceTier{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return apperrors.Persistence("deactivate price tier", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("price tier", fmt.Sprintf("%d", id))
	}
	return nil
}
