package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAuditImmutable is returned by the storage guard for any update or
// delete aimed at the audit_records table.
var ErrAuditImmutable = errors.New("audit records are append-only")

// ActionKind is the closed set of recognized administrative mutations.
// The storage layer rejects records carrying any value outside this set.
type ActionKind string

const (
	ActionAccountCreate      ActionKind = "account.create"
	ActionAccountUpdate      ActionKind = "account.update"
	ActionAccountDelete      ActionKind = "account.delete"
	ActionAccountSuspend     ActionKind = "account.suspend"
	ActionAccountReactivate  ActionKind = "account.reactivate"
	ActionAccountForceLogout ActionKind = "account.force_logout"
	ActionAccountPwdReset    ActionKind = "account.password_reset"

	ActionCanteenCreate         ActionKind = "canteen.create"
	ActionCanteenUpdate         ActionKind = "canteen.update"
	ActionCanteenDelete         ActionKind = "canteen.delete"
	ActionCanteenApprove        ActionKind = "canteen.approve"
	ActionCanteenReject         ActionKind = "canteen.reject"
	ActionCanteenSuspend        ActionKind = "canteen.suspend"
	ActionCanteenOrderingToggle ActionKind = "canteen.ordering_toggle"

	ActionMenuCreate      ActionKind = "menu.create"
	ActionMenuUpdate      ActionKind = "menu.update"
	ActionMenuDelete      ActionKind = "menu.delete"
	ActionMenuStockToggle ActionKind = "menu.stock_toggle"
	ActionMenuBulkUpdate  ActionKind = "menu.bulk_update"
	ActionMenuPriceChange ActionKind = "menu.price_change"

	ActionOrderStatusOverride  ActionKind = "order.status_override"
	ActionOrderCancel          ActionKind = "order.cancel"
	ActionOrderRefund          ActionKind = "order.refund"
	ActionOrderReassign        ActionKind = "order.reassign"
	ActionOrderPaymentOverride ActionKind = "order.payment_override"

	ActionReviewEdit           ActionKind = "review.edit"
	ActionReviewDelete         ActionKind = "review.delete"
	ActionReviewFlagToggle     ActionKind = "review.flag_toggle"
	ActionReviewLock           ActionKind = "review.lock"
	ActionReviewRatingOverride ActionKind = "review.rating_override"

	ActionSystemFlagToggle        ActionKind = "system.feature_flag_toggle"
	ActionSystemMaintenanceToggle ActionKind = "system.maintenance_toggle"
	ActionSystemSettingChange     ActionKind = "system.setting_change"
	ActionSystemRoleChange        ActionKind = "system.role_change"
)

var actionKinds = map[ActionKind]struct{}{
	ActionAccountCreate:      {},
	ActionAccountUpdate:      {},
	ActionAccountDelete:      {},
	ActionAccountSuspend:     {},
	ActionAccountReactivate:  {},
	ActionAccountForceLogout: {},
	ActionAccountPwdReset:    {},

	ActionCanteenCreate:         {},
	ActionCanteenUpdate:         {},
	ActionCanteenDelete:         {},
	ActionCanteenApprove:        {},
	ActionCanteenReject:         {},
	ActionCanteenSuspend:        {},
	ActionCanteenOrderingToggle: {},

	ActionMenuCreate:      {},
	ActionMenuUpdate:      {},
	ActionMenuDelete:      {},
	ActionMenuStockToggle: {},
	ActionMenuBulkUpdate:  {},
	ActionMenuPriceChange: {},

	ActionOrderStatusOverride:  {},
	ActionOrderCancel:          {},
	ActionOrderRefund:          {},
	ActionOrderReassign:        {},
	ActionOrderPaymentOverride: {},

	ActionReviewEdit:           {},
	ActionReviewDelete:         {},
	ActionReviewFlagToggle:     {},
	ActionReviewLock:           {},
	ActionReviewRatingOverride: {},

	ActionSystemFlagToggle:        {},
	ActionSystemMaintenanceToggle: {},
	ActionSystemSettingChange:     {},
	ActionSystemRoleChange:        {},
}

func (k ActionKind) Valid() bool {
	_, ok := actionKinds[k]
	return ok
}

// EntityKind identifies which category of domain object a record affects.
type EntityKind string

const (
	EntityAccount      EntityKind = "account"
	EntityCanteen      EntityKind = "canteen"
	EntityMenuItem     EntityKind = "menu_item"
	EntityOrder        EntityKind = "order"
	EntityReview       EntityKind = "review"
	EntitySystemConfig EntityKind = "system_config"
)

var entityKinds = map[EntityKind]struct{}{
	EntityAccount:      {},
	EntityCanteen:      {},
	EntityMenuItem:     {},
	EntityOrder:        {},
	EntityReview:       {},
	EntitySystemConfig: {},
}

func (k EntityKind) Valid() bool {
	_, ok := entityKinds[k]
	return ok
}

// AuditRecord is a write-once trail entry for a privileged mutation. Records
// are never updated or deleted; the database package installs callbacks (and
// a trigger under postgres) that reject both regardless of code path.
type AuditRecord struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_audit_actor_time,priority:1" json:"actor_id"`
	ActorLabel      string         `gorm:"not null" json:"actor_label"`
	ActionKind      ActionKind     `gorm:"not null;index:idx_audit_action_time,priority:1" json:"action_kind"`
	EntityKind      EntityKind     `gorm:"not null;index:idx_audit_entity_time,priority:1" json:"entity_kind"`
	EntityID        *uuid.UUID     `gorm:"type:uuid;index:idx_audit_entity_time,priority:2" json:"entity_id,omitempty"`
	BeforeSnapshot  datatypes.JSON `gorm:"type:jsonb" json:"before_snapshot,omitempty"`
	AfterSnapshot   datatypes.JSON `gorm:"type:jsonb" json:"after_snapshot,omitempty"`
	Reason          string         `gorm:"type:text" json:"reason,omitempty"`
	OriginIP        string         `json:"origin_ip,omitempty"`
	OriginUserAgent string         `json:"origin_user_agent,omitempty"`
	RecordedAt      time.Time      `gorm:"not null;index:idx_audit_actor_time,priority:2;index:idx_audit_entity_time,priority:3;index:idx_audit_action_time,priority:2" json:"recorded_at"`
}

// BeforeCreate assigns the id and timestamp and enforces the closed action
// and entity enumerations at the storage boundary.
func (r *AuditRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now().UTC()
	}
	if r.ActorID == uuid.Nil {
		return errors.New("audit record requires an actor")
	}
	if !r.ActionKind.Valid() {
		return fmt.Errorf("unknown action kind %q", r.ActionKind)
	}
	if !r.EntityKind.Valid() {
		return fmt.Errorf("unknown entity kind %q", r.EntityKind)
	}
	return nil
}

// BeforeUpdate backstops the database-level guard for full-save paths.
func (r *AuditRecord) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

// BeforeDelete backstops the database-level guard for full-save paths.
func (r *AuditRecord) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}
