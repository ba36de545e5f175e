package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MenuItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CanteenID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"canteen_id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Category    string          `gorm:"index" json:"category"` // breakfast, lunch, snacks, beverages
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	InStock     bool            `gorm:"default:true" json:"in_stock"`

	// Price changes append here through the mutation gateway, newest last.
	PriceHistory datatypes.JSON `gorm:"type:jsonb" json:"price_history,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PriceChange is one entry of a menu item's PriceHistory list.
type PriceChange struct {
	Price     decimal.Decimal `json:"price"`
	ChangedAt time.Time       `json:"changed_at"`
	ChangedBy uuid.UUID       `json:"changed_by"`
	Reason    string          `json:"reason,omitempty"`
}

func (m *MenuItem) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m *MenuItem) AuditSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"canteen_id": m.CanteenID,
		"name":       m.Name,
		"category":   m.Category,
		"price":      m.Price.String(),
		"in_stock":   m.InStock,
	}
}
