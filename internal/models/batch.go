package models

import (
	"time"
)

// VoucherBatch groups the vouchers issued together for one contractor. The
// batch token is the externally visible handle ("LOTE_..."). The voucher count
// never changes after creation and the payment state only moves forward.
type VoucherBatch struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	BatchToken     string    `gorm:"unique;not null" json:"batchToken"`
	ContractorName string    `gorm:"not null;index" json:"contractorName"`
	Quantity       int       `gorm:"not null" json:"quantity"`
	ExpiresAt      time.Time `gorm:"not null" json:"expiresAt"`

	DiningSiteID *uint    `gorm:"index" json:"diningSiteId,omitempty"`
	PriceTierID  *uint    `json:"priceTierId,omitempty"`
	// Snapshot of the tier at creation time; survives later tier edits.
	PriceTierName *string  `json:"priceTierName,omitempty"`
	UnitPrice     *float64 `json:"unitPrice,omitempty"`

	PaymentType string   `gorm:"type:varchar(20);default:'CASH'" json:"paymentType"`
	Amount      *float64 `json:"amount,omitempty"`

	PaymentState        string     `gorm:"type:varchar(20);default:'PENDING';index" json:"paymentState"`
	AuthorizationCode   *string    `json:"authorizationCode,omitempty"`
	PaymentEvidencePath *string    `json:"paymentEvidencePath,omitempty"`
	AuthorizedBy        *string    `json:"authorizedBy,omitempty"`
	PaymentDate         *time.Time `json:"paymentDate,omitempty"`
	Notes               *string    `gorm:"type:text" json:"notes,omitempty"`

	ArtifactPath *string `json:"artifactPath,omitempty"`
	ArtifactURL  *string `json:"artifactUrl,omitempty"`

	DownloadAttempts int `gorm:"default:0" json:"downloadAttempts"`
	DownloadLimit    int `gorm:"default:3" json:"downloadLimit"`

	CreatedBy *string   `gorm:"type:uuid" json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	DiningSite *DiningSite `gorm:"foreignKey:DiningSiteID" json:"diningSite,omitempty"`
	PriceTier  *PriceTier  `gorm:"foreignKey:PriceTierID" json:"priceTier,omitempty"`
}

// TableName specifies the table name for VoucherBatch model
func (VoucherBatch) TableName() string {
	return "voucher_batches"
}
