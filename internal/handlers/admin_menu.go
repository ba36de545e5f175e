package handlers

import (
	"encoding/json"
	"time"

	"github.com/canteenhq/campuseats/internal/audit"
	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AdminMenuHandler struct {
	db *gorm.DB
	gw *audit.Gateway
}

func NewAdminMenuHandler(db *gorm.DB, gw *audit.Gateway) *AdminMenuHandler {
	return &AdminMenuHandler{db: db, gw: gw}
}

func (h *AdminMenuHandler) CreateItem(c *fiber.Ctx) error {
	var req struct {
		CanteenID   uuid.UUID `json:"canteen_id" validate:"required"`
		Name        string    `json:"name" validate:"required"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Price       string    `json:"price" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Canteen, name and price are required",
		})
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Price must be a non-negative decimal",
		})
	}

	var item models.MenuItem
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionMenuCreate,
		Entity:   models.EntityMenuItem,
		EntityID: &item.ID,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		var count int64
		tx.Model(&models.Canteen{}).Where("id = ?", req.CanteenID).Count(&count)
		if count == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Canteen not found")
		}
		item = models.MenuItem{
			CanteenID:   req.CanteenID,
			Name:        req.Name,
			Description: req.Description,
			Category:    req.Category,
			Price:       price,
			InStock:     true,
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to create menu item")
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *AdminMenuHandler) UpdateItem(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid menu item ID",
		})
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	var item models.MenuItem
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionMenuUpdate,
		Entity:   models.EntityMenuItem,
		EntityID: &id,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if req.Name != "" {
			updates["name"] = req.Name
		}
		if req.Description != "" {
			updates["description"] = req.Description
		}
		if req.Category != "" {
			updates["category"] = req.Category
		}
		if len(updates) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Nothing to update")
		}
		return tx.Model(&item).Updates(updates).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to update menu item")
	}

	h.db.First(&item, "id = ?", id)
	return c.JSON(item)
}

func (h *AdminMenuHandler) DeleteItem(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid menu item ID",
		})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	c.BodyParser(&req)

	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionMenuDelete,
		Entity:   models.EntityMenuItem,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		return tx.Delete(&models.MenuItem{}, "id = ?", id).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to delete menu item")
	}
	return c.JSON(fiber.Map{"message": "Menu item deleted"})
}

func (h *AdminMenuHandler) ToggleStock(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid menu item ID",
		})
	}

	var item models.MenuItem
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionMenuStockToggle,
		Entity:   models.EntityMenuItem,
		EntityID: &id,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Model(&item).Update("in_stock", !item.InStock).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to toggle stock")
	}

	h.db.First(&item, "id = ?", id)
	return c.JSON(item)
}

// ChangePrice sets a new price and appends the change to the item's history.
func (h *AdminMenuHandler) ChangePrice(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid menu item ID",
		})
	}

	var req struct {
		Price  string `json:"price" validate:"required"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A price is required",
		})
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Price must be a non-negative decimal",
		})
	}

	actor := actorFromCtx(c)
	var item models.MenuItem
	err = h.gw.Perform(audit.Mutation{
		Actor:    actor,
		Action:   models.ActionMenuPriceChange,
		Entity:   models.EntityMenuItem,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			return err
		}
		if item.Price.Equal(price) {
			return fiber.NewError(fiber.StatusConflict, "Price is unchanged")
		}

		var history []models.PriceChange
		if len(item.PriceHistory) > 0 {
			if err := json.Unmarshal(item.PriceHistory, &history); err != nil {
				history = nil
			}
		}
		history = append(history, models.PriceChange{
			Price:     price,
			ChangedAt: time.Now().UTC(),
			ChangedBy: actor.ID,
			Reason:    req.Reason,
		})
		historyJSON, err := json.Marshal(history)
		if err != nil {
			return err
		}

		return tx.Model(&item).Updates(map[string]interface{}{
			"price":         price,
			"price_history": datatypes.JSON(historyJSON),
		}).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to change price")
	}

	h.db.First(&item, "id = ?", id)
	return c.JSON(item)
}

// BulkUpdateStock flips availability for every item of a canteen in one
// guarded mutation. Canteen-wide, so the record carries no entity id.
func (h *AdminMenuHandler) BulkUpdateStock(c *fiber.Ctx) error {
	var req struct {
		CanteenID uuid.UUID `json:"canteen_id" validate:"required"`
		InStock   *bool     `json:"in_stock" validate:"required"`
		Reason    string    `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Canteen and in_stock are required",
		})
	}

	var affected int64
	err := h.gw.Perform(audit.Mutation{
		Actor:  actorFromCtx(c),
		Action: models.ActionMenuBulkUpdate,
		Entity: models.EntityMenuItem,
		Reason: req.Reason,
		Origin: audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		var count int64
		tx.Model(&models.Canteen{}).Where("id = ?", req.CanteenID).Count(&count)
		if count == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Canteen not found")
		}
		res := tx.Model(&models.MenuItem{}).
			Where("canteen_id = ?", req.CanteenID).
			Update("in_stock", *req.InStock)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to bulk update menu")
	}
	return c.JSON(fiber.Map{"updated": affected})
}
