package handlers

import (
	"time"

	"github.com/canteenhq/campuseats/internal/audit"
	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdminCanteenHandler struct {
	db *gorm.DB
	gw *audit.Gateway
}

func NewAdminCanteenHandler(db *gorm.DB, gw *audit.Gateway) *AdminCanteenHandler {
	return &AdminCanteenHandler{db: db, gw: gw}
}

// ListCanteens returns all canteens including pending and suspended ones.
func (h *AdminCanteenHandler) ListCanteens(c *fiber.Ctx) error {
	query := h.db.Model(&models.Canteen{})
	if status := c.Query("status", ""); status != "" {
		query = query.Where("status = ?", status)
	}

	var canteens []models.Canteen
	if err := query.Order("created_at DESC").Find(&canteens).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list canteens",
		})
	}
	return c.JSON(fiber.Map{"canteens": canteens})
}

func (h *AdminCanteenHandler) CreateCanteen(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name" validate:"required"`
		Slug        string `json:"slug" validate:"required,lowercase,excludesall=0x20"`
		Description string `json:"description"`
		Location    string `json:"location"`
		OpenHours   string `json:"open_hours"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Name and a lowercase slug without spaces are required",
		})
	}

	var canteen models.Canteen
	err := h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionCanteenCreate,
		Entity:   models.EntityCanteen,
		EntityID: &canteen.ID,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		var count int64
		tx.Model(&models.Canteen{}).Where("slug = ?", req.Slug).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "Slug is already in use")
		}
		canteen = models.Canteen{
			Name:        req.Name,
			Slug:        req.Slug,
			Description: req.Description,
			Location:    req.Location,
			OpenHours:   req.OpenHours,
			Status:      models.CanteenPending,
		}
		return tx.Create(&canteen).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to create canteen")
	}
	return c.Status(fiber.StatusCreated).JSON(canteen)
}

func (h *AdminCanteenHandler) UpdateCanteen(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid canteen ID",
		})
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Location    string `json:"location"`
		OpenHours   string `json:"open_hours"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	var canteen models.Canteen
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionCanteenUpdate,
		Entity:   models.EntityCanteen,
		EntityID: &id,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&canteen, "id = ?", id).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if req.Name != "" {
			updates["name"] = req.Name
		}
		if req.Description != "" {
			updates["description"] = req.Description
		}
		if req.Location != "" {
			updates["location"] = req.Location
		}
		if req.OpenHours != "" {
			updates["open_hours"] = req.OpenHours
		}
		if len(updates) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Nothing to update")
		}
		return tx.Model(&canteen).Updates(updates).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to update canteen")
	}

	h.db.First(&canteen, "id = ?", id)
	return c.JSON(canteen)
}

func (h *AdminCanteenHandler) DeleteCanteen(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid canteen ID",
		})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	c.BodyParser(&req)

	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionCanteenDelete,
		Entity:   models.EntityCanteen,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		return tx.Delete(&models.Canteen{}, "id = ?", id).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to delete canteen")
	}
	return c.JSON(fiber.Map{"message": "Canteen deleted"})
}

func (h *AdminCanteenHandler) ApproveCanteen(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid canteen ID",
		})
	}

	actor := actorFromCtx(c)
	var canteen models.Canteen
	err = h.gw.Perform(audit.Mutation{
		Actor:    actor,
		Action:   models.ActionCanteenApprove,
		Entity:   models.EntityCanteen,
		EntityID: &id,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&canteen, "id = ?", id).Error; err != nil {
			return err
		}
		if canteen.Status == models.CanteenApproved {
			return fiber.NewError(fiber.StatusConflict, "Canteen is already approved")
		}
		now := time.Now().UTC()
		return tx.Model(&canteen).Updates(map[string]interface{}{
			"status":        models.CanteenApproved,
			"approved_at":   now,
			"approved_by":   actor.ID,
			"reject_reason": "",
		}).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to approve canteen")
	}

	h.db.First(&canteen, "id = ?", id)
	return c.JSON(canteen)
}

func (h *AdminCanteenHandler) RejectCanteen(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid canteen ID",
		})
	}

	var req struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A reason is required to reject a canteen",
		})
	}

	var canteen models.Canteen
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionCanteenReject,
		Entity:   models.EntityCanteen,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&canteen, "id = ?", id).Error; err != nil {
			return err
		}
		if canteen.Status == models.CanteenRejected {
			return fiber.NewError(fiber.StatusConflict, "Canteen is already rejected")
		}
		return tx.Model(&canteen).Updates(map[string]interface{}{
			"status":        models.CanteenRejected,
			"approved_at":   nil,
			"approved_by":   nil,
			"reject_reason": req.Reason,
		}).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to reject canteen")
	}

	h.db.First(&canteen, "id = ?", id)
	return c.JSON(canteen)
}

// SuspendCanteen toggles suspension: a suspended canteen is lifted, an
// active one is suspended with the given reason.
func (h *AdminCanteenHandler) SuspendCanteen(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid canteen ID",
		})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	c.BodyParser(&req)

	actor := actorFromCtx(c)
	var canteen models.Canteen
	err = h.gw.Perform(audit.Mutation{
		Actor:    actor,
		Action:   models.ActionCanteenSuspend,
		Entity:   models.EntityCanteen,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&canteen, "id = ?", id).Error; err != nil {
			return err
		}
		if canteen.SuspendedAt != nil {
			return tx.Model(&canteen).Updates(map[string]interface{}{
				"suspended_at":   nil,
				"suspended_by":   nil,
				"suspend_reason": "",
			}).Error
		}
		if req.Reason == "" {
			return fiber.NewError(fiber.StatusBadRequest, "A reason is required to suspend a canteen")
		}
		now := time.Now().UTC()
		return tx.Model(&canteen).Updates(map[string]interface{}{
			"suspended_at":   now,
			"suspended_by":   actor.ID,
			"suspend_reason": req.Reason,
		}).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to update canteen suspension")
	}

	h.db.First(&canteen, "id = ?", id)
	return c.JSON(canteen)
}

func (h *AdminCanteenHandler) ToggleOrdering(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid canteen ID",
		})
	}

	var canteen models.Canteen
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionCanteenOrderingToggle,
		Entity:   models.EntityCanteen,
		EntityID: &id,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&canteen, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Model(&canteen).Update("ordering_enabled", !canteen.OrderingEnabled).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to toggle ordering")
	}

	h.db.First(&canteen, "id = ?", id)
	return c.JSON(canteen)
}
