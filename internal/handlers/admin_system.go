package handlers

import (
	"github.com/canteenhq/campuseats/internal/audit"
	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminSystemHandler manages platform-wide settings. Toggles live as
// versioned SystemConfig rows rather than process-wide flags so every change
// is audited like any other privileged mutation.
type AdminSystemHandler struct {
	db *gorm.DB
	gw *audit.Gateway
}

func NewAdminSystemHandler(db *gorm.DB, gw *audit.Gateway) *AdminSystemHandler {
	return &AdminSystemHandler{db: db, gw: gw}
}

func (h *AdminSystemHandler) ListConfig(c *fiber.Ctx) error {
	var configs []models.SystemConfig
	if err := h.db.Order("key ASC").Find(&configs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list settings",
		})
	}
	return c.JSON(fiber.Map{"settings": configs})
}

// upsert writes a config row through the gateway under the given action.
func (h *AdminSystemHandler) upsert(c *fiber.Ctx, action models.ActionKind, key, value, typ, reason string) error {
	actor := actorFromCtx(c)

	var cfg models.SystemConfig
	if err := h.db.First(&cfg, "key = ?", key).Error; err == nil {
		id := cfg.ID
		err = h.gw.Perform(audit.Mutation{
			Actor:    actor,
			Action:   action,
			Entity:   models.EntitySystemConfig,
			EntityID: &id,
			Reason:   reason,
			Origin:   audit.OriginFromCtx(c),
		}, func(tx *gorm.DB) error {
			return tx.Model(&cfg).Updates(map[string]interface{}{
				"value":      value,
				"type":       typ,
				"version":    cfg.Version + 1,
				"updated_by": actor.ID,
			}).Error
		})
		if err != nil {
			return respondGatewayErr(c, err, "Failed to update setting")
		}
	} else {
		err = h.gw.Perform(audit.Mutation{
			Actor:    actor,
			Action:   action,
			Entity:   models.EntitySystemConfig,
			EntityID: &cfg.ID,
			Reason:   reason,
			Origin:   audit.OriginFromCtx(c),
		}, func(tx *gorm.DB) error {
			cfg = models.SystemConfig{
				Key:       key,
				Value:     value,
				Type:      typ,
				Version:   1,
				UpdatedBy: &actor.ID,
			}
			return tx.Create(&cfg).Error
		})
		if err != nil {
			return respondGatewayErr(c, err, "Failed to create setting")
		}
	}

	h.db.First(&cfg, "key = ?", key)
	return c.JSON(cfg)
}

// SetConfig creates or updates an arbitrary setting.
func (h *AdminSystemHandler) SetConfig(c *fiber.Ctx) error {
	key := c.Params("key")

	var req struct {
		Value  string `json:"value" validate:"required"`
		Type   string `json:"type" validate:"omitempty,oneof=string bool int json"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A value and an optional type of string, bool, int or json are required",
		})
	}
	if req.Type == "" {
		req.Type = "string"
	}

	return h.upsert(c, models.ActionSystemSettingChange, key, req.Value, req.Type, req.Reason)
}

// ToggleFeatureFlag flips a bool-typed flag, creating it as true when absent.
func (h *AdminSystemHandler) ToggleFeatureFlag(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == models.ConfigMaintenanceMode {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Use the maintenance endpoint for maintenance mode",
		})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	c.BodyParser(&req)

	next := "true"
	var cfg models.SystemConfig
	if err := h.db.First(&cfg, "key = ?", key).Error; err == nil && cfg.BoolValue() {
		next = "false"
	}

	return h.upsert(c, models.ActionSystemFlagToggle, key, next, "bool", req.Reason)
}

// ToggleMaintenance flips the platform-wide maintenance switch.
func (h *AdminSystemHandler) ToggleMaintenance(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	c.BodyParser(&req)

	next := "true"
	var cfg models.SystemConfig
	if err := h.db.First(&cfg, "key = ?", models.ConfigMaintenanceMode).Error; err == nil && cfg.BoolValue() {
		next = "false"
	}

	return h.upsert(c, models.ActionSystemMaintenanceToggle, models.ConfigMaintenanceMode, next, "bool", req.Reason)
}
