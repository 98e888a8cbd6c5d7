package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEntry is an append-only record of a state-changing action. Entries are
// never updated or deleted; ActorID is nil for system actions.
type AuditEntry struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ActorID     *string        `gorm:"type:uuid;index" json:"actorId,omitempty"`
	Action      string         `gorm:"not null;index" json:"action"`
	Module      string         `gorm:"default:'system'" json:"module"`
	TargetTable string         `gorm:"not null;index" json:"targetTable"`
	RecordID    *string        `gorm:"index" json:"recordId,omitempty"`
	Detail      datatypes.JSON `json:"detail,omitempty"`
	IPAddress   *string        `json:"ipAddress,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name for AuditEntry model
func (AuditEntry) TableName() string {
	return "audit_entries"
}
