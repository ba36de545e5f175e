package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OrderPlaced    = "placed"
	OrderAccepted  = "accepted"
	OrderPreparing = "preparing"
	OrderReady     = "ready"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
	PaymentFailed   = "failed"
)

var orderStatuses = map[string]struct{}{
	OrderPlaced:    {},
	OrderAccepted:  {},
	OrderPreparing: {},
	OrderReady:     {},
	OrderDelivered: {},
	OrderCancelled: {},
}

// ValidOrderStatus reports whether s is a recognized order status.
func ValidOrderStatus(s string) bool {
	_, ok := orderStatuses[s]
	return ok
}

var paymentStatuses = map[string]struct{}{
	PaymentPending:  {},
	PaymentPaid:     {},
	PaymentRefunded: {},
	PaymentFailed:   {},
}

func ValidPaymentStatus(s string) bool {
	_, ok := paymentStatuses[s]
	return ok
}

type Order struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;index" json:"account_id"`
	CanteenID uuid.UUID `gorm:"type:uuid;not null;index" json:"canteen_id"`

	Items datatypes.JSON  `gorm:"type:jsonb;not null" json:"items"`
	Total decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`

	Status        string         `gorm:"not null;default:'placed';index" json:"status"`
	StatusHistory datatypes.JSON `gorm:"type:jsonb" json:"status_history,omitempty"`

	PaymentStatus string         `gorm:"not null;default:'pending'" json:"payment_status"`
	PaymentRef    string         `json:"payment_ref,omitempty"`
	RefundDetails datatypes.JSON `gorm:"type:jsonb" json:"refund_details,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// OrderItem is one line of an order's Items list, priced at checkout time.
type OrderItem struct {
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
}

// StatusTransition is one entry of an order's StatusHistory list.
type StatusTransition struct {
	From      string     `json:"from"`
	To        string     `json:"to"`
	At        time.Time  `json:"at"`
	ChangedBy *uuid.UUID `json:"changed_by,omitempty"` // nil for system transitions
}

// Refund is the structure stored in RefundDetails once an order is refunded.
type Refund struct {
	Amount     decimal.Decimal `json:"amount"`
	RefundedAt time.Time       `json:"refunded_at"`
	RefundedBy uuid.UUID       `json:"refunded_by"`
	Note       string          `json:"note,omitempty"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o *Order) Refunded() bool {
	return o.PaymentStatus == PaymentRefunded
}

func (o *Order) AuditSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"account_id":     o.AccountID,
		"canteen_id":     o.CanteenID,
		"total":          o.Total.String(),
		"status":         o.Status,
		"payment_status": o.PaymentStatus,
		"payment_ref":    o.PaymentRef,
		"refund_details": o.RefundDetails,
	}
}
