package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleStudent = "student"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

type Account struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"not null" json:"name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null;default:'student'" json:"role"` // student, staff, admin

	// Administrative override fields, written only through the mutation gateway.
	SuspendedAt         *time.Time `json:"suspended_at,omitempty"`
	SuspendedBy         *uuid.UUID `gorm:"type:uuid" json:"suspended_by,omitempty"`
	SuspendReason       string     `json:"suspend_reason,omitempty"`
	TokensInvalidBefore *time.Time `json:"-"` // forced session invalidation cutoff

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *Account) Suspended() bool {
	return a.SuspendedAt != nil
}

// Label is the denormalized actor identity stored on audit records.
func (a *Account) Label() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// AuditSnapshot projects the fields worth comparing across admin mutations.
func (a *Account) AuditSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"email":          a.Email,
		"name":           a.Name,
		"role":           a.Role,
		"suspended_at":   a.SuspendedAt,
		"suspended_by":   a.SuspendedBy,
		"suspend_reason": a.SuspendReason,
	}
}
