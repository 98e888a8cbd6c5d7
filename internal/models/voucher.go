package models

import (
	"time"
)

// Voucher is a single redeemable unit. The ID is a random UUID; the store's
// uniqueness constraint is the last line of defense against a collision.
// Once Redeemed flips to true it never reverts.
type Voucher struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	BatchToken     string    `gorm:"not null;index" json:"batchToken"`
	ContractorName string    `gorm:"not null;index" json:"contractorName"`
	ExpiresAt      time.Time `gorm:"not null" json:"expiresAt"`

	Redeemed   bool       `gorm:"default:false" json:"redeemed"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
	Location   *string    `json:"location,omitempty"`

	DiningSiteID *uint     `gorm:"index" json:"diningSiteId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`

	DiningSite *DiningSite `gorm:"foreignKey:DiningSiteID" json:"diningSite,omitempty"`
}

// TableName specifies the table name for Voucher model
func (Voucher) TableName() string {
	return "vouchers"
}

// Expired reports whether the voucher is past its expiration at the given
// instant. The boundary is inclusive: a voucher stays redeemable through the
// whole calendar day of ExpiresAt.
func (v *Voucher) Expired(now time.Time) bool {
	y, m, d := v.ExpiresAt.Date()
	endOfDay := time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), now.Location())
	return now.After(endOfDay)
}

// ScanEvent is the append-only record of one redemption attempt, successful
// or rejected. A photo is attempted for every scan so that repeated attempts
// on an already-used voucher leave photographic evidence.
type ScanEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	VoucherID    string    `gorm:"not null;index" json:"voucherId"`
	BatchToken   string    `gorm:"index" json:"batchToken"`
	Type         string    `gorm:"type:varchar(20);not null;index" json:"type"`
	RejectReason *string   `json:"rejectReason,omitempty"`
	Location     *string   `json:"location,omitempty"`
	PhotoPath    *string   `json:"photoPath,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name for ScanEvent model
func (ScanEvent) TableName() string {
	return "scan_events"
}
