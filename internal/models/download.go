package models

import (
	"time"
)

// DownloadRecord is the append-only record of one artifact fetch against a
// batch. Each fetch carries a human-readable justification for the audit
// trail; the batch row holds the counter the throttle enforces.
type DownloadRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BatchToken    string    `gorm:"not null;index" json:"batchToken"`
	User          string    `gorm:"not null" json:"user"`
	Justification string    `gorm:"type:text;not null" json:"justification"`
	IPAddress     *string   `json:"ipAddress,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TableName specifies the table name for DownloadRecord model
func (DownloadRecord) TableName() string {
	return "download_records"
}
