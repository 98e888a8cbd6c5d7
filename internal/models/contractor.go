package models

import (
	"time"

	"gorm.io/gorm"
)

// Contractor represents a workforce contractor that vouchers are issued for.
// Rows are created lazily the first time a batch names an unseen contractor.
type Contractor struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"unique;not null" json:"name"`
	Code      string         `gorm:"unique;not null" json:"code"`
	Active    bool           `gorm:"default:true" json:"active"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Contractor model
func (Contractor) TableName() string {
	return "contractors"
}

// DiningSite is a physical dining location belonging to one contractor.
// Deactivation is a soft delete; historical batches keep their reference.
type DiningSite struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"not null;uniqueIndex:idx_site_name_contractor" json:"name"`
	ContractorID uint           `gorm:"not null;uniqueIndex:idx_site_name_contractor;index" json:"contractorId"`
	Location     string         `json:"location,omitempty"`
	Code         string         `json:"code,omitempty"`
	Active       bool           `gorm:"default:true" json:"active"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Contractor *Contractor `gorm:"foreignKey:ContractorID" json:"contractor,omitempty"`
}

// TableName specifies the table name for DiningSite model
func (DiningSite) TableName() string {
	return "dining_sites"
}

// PriceTier is a named unit price for a voucher (meal type). Tiers are not
// tied to a contractor; the first active tier acts as the default when batch
// creation does not name one.
type PriceTier struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"unique;not null" json:"name"`
	UnitPrice float64        `gorm:"not null" json:"unitPrice"`
	Active    bool           `gorm:"default:true" json:"active"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for PriceTier model
func (PriceTier) TableName() string {
	return "price_tiers"
}
