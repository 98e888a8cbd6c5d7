package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserAuth represents a user in the system
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type UserAuth struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Username string `gorm:"unique;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`
	Name     string `json:"name,omitempty"`
	// Role decides which voucher operations the user may perform; the
	// permission mapping lives in the middleware package.
	Role string `gorm:"default:'validator'" json:"role"`
	// Contractor users are scoped to batches of their own company.
	Contractor *string    `json:"contractor,omitempty"`
	IsActive   bool       `gorm:"default:true" json:"isActive"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for UserAuth model
func (UserAuth) TableName() string {
	return "user_auths"
}

// BeforeCreate assigns the uuid primary key when the caller left it empty.
func (u *UserAuth) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
