package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CanteenPending  = "pending"
	CanteenApproved = "approved"
	CanteenRejected = "rejected"
)

type Canteen struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `json:"location"`
	OpenHours   string    `json:"open_hours"` // e.g. "08:00-20:00"

	Status       string     `gorm:"not null;default:'pending'" json:"status"` // pending, approved, rejected
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ApprovedBy   *uuid.UUID `gorm:"type:uuid" json:"approved_by,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`

	SuspendedAt   *time.Time `json:"suspended_at,omitempty"`
	SuspendedBy   *uuid.UUID `gorm:"type:uuid" json:"suspended_by,omitempty"`
	SuspendReason string     `json:"suspend_reason,omitempty"`

	OrderingEnabled bool `gorm:"default:true" json:"ordering_enabled"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (cn *Canteen) BeforeCreate(tx *gorm.DB) error {
	if cn.ID == uuid.Nil {
		cn.ID = uuid.New()
	}
	return nil
}

// AcceptingOrders reports whether students can currently order here.
func (cn *Canteen) AcceptingOrders() bool {
	return cn.Status == CanteenApproved && cn.SuspendedAt == nil && cn.OrderingEnabled
}

func (cn *Canteen) AuditSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"name":             cn.Name,
		"slug":             cn.Slug,
		"status":           cn.Status,
		"approved_at":      cn.ApprovedAt,
		"reject_reason":    cn.RejectReason,
		"suspended_at":     cn.SuspendedAt,
		"suspend_reason":   cn.SuspendReason,
		"ordering_enabled": cn.OrderingEnabled,
	}
}
