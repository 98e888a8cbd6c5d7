package models

import (
	"time"
)

// AuthorizationRequest is one step of the request/approve separation-of-duties
// workflow: a manager requests a batch authorization, finance approves or
// rejects. At most one PENDING request may exist per batch at a time.
type AuthorizationRequest struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	BatchToken    string     `gorm:"not null;index" json:"batchToken"`
	RequestedBy   string     `gorm:"not null" json:"requestedBy"`
	Justification string     `gorm:"type:text;not null" json:"justification"`
	State         string     `gorm:"type:varchar(20);default:'PENDING';index" json:"state"`
	ResolvedBy    *string    `json:"resolvedBy,omitempty"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	Notes         *string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for AuthorizationRequest model
func (AuthorizationRequest) TableName() string {
	return "authorization_requests"
}
