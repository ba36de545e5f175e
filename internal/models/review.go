package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Review struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID uuid.UUID  `gorm:"type:uuid;not null;index" json:"account_id"`
	CanteenID uuid.UUID  `gorm:"type:uuid;not null;index" json:"canteen_id"`
	OrderID   *uuid.UUID `gorm:"type:uuid" json:"order_id,omitempty"`

	Rating  int    `gorm:"not null" json:"rating"` // 1..5
	Comment string `gorm:"type:text" json:"comment"`

	// Moderation state, written only through the mutation gateway.
	Flagged        bool       `gorm:"default:false;index" json:"flagged"`
	Locked         bool       `gorm:"default:false" json:"locked"`
	OriginalRating *int       `json:"original_rating,omitempty"` // set once when an admin overrides
	EditedBy       *uuid.UUID `gorm:"type:uuid" json:"edited_by,omitempty"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *Review) AuditSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"canteen_id":      r.CanteenID,
		"rating":          r.Rating,
		"comment":         r.Comment,
		"flagged":         r.Flagged,
		"locked":          r.Locked,
		"original_rating": r.OriginalRating,
	}
}
