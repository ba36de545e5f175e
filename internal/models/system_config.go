package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Well-known config keys. Arbitrary feature-flag keys are allowed alongside.
const (
	ConfigMaintenanceMode = "maintenance_mode"
	ConfigOrderingEnabled = "ordering_enabled"
)

// SystemConfig is a versioned platform setting. Reads are open to the
// application; every write goes through the mutation gateway so toggles are
// audited like any other privileged change.
type SystemConfig struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Key       string     `gorm:"uniqueIndex;not null" json:"key"`
	Value     string     `gorm:"not null" json:"value"`
	Type      string     `gorm:"default:'string'" json:"type"` // string, bool, int, json
	Version   int        `gorm:"default:1" json:"version"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (sc *SystemConfig) BeforeCreate(tx *gorm.DB) error {
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	return nil
}

// BoolValue interprets the stored value for bool-typed settings.
func (sc *SystemConfig) BoolValue() bool {
	return sc.Value == "true" || sc.Value == "1"
}

// IntValue interprets the stored value for int-typed settings, zero on parse failure.
func (sc *SystemConfig) IntValue() int {
	v, _ := strconv.Atoi(sc.Value)
	return v
}

func (sc *SystemConfig) AuditSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"key":     sc.Key,
		"value":   sc.Value,
		"type":    sc.Type,
		"version": sc.Version,
	}
}
