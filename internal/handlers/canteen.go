package handlers

import (
	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CanteenHandler serves the public browsing surface: approved, non-suspended
// canteens and their menus.
type CanteenHandler struct {
	db *gorm.DB
}

func NewCanteenHandler(db *gorm.DB) *CanteenHandler {
	return &CanteenHandler{db: db}
}

func (h *CanteenHandler) ListCanteens(c *fiber.Ctx) error {
	var canteens []models.Canteen
	if err := h.db.
		Where("status = ? AND suspended_at IS NULL", models.CanteenApproved).
		Order("name ASC").
		Find(&canteens).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list canteens",
		})
	}
	return c.JSON(fiber.Map{"canteens": canteens})
}

func (h *CanteenHandler) GetCanteen(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid canteen ID",
		})
	}

	var canteen models.Canteen
	if err := h.db.
		Where("id = ? AND status = ? AND suspended_at IS NULL", id, models.CanteenApproved).
		First(&canteen).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Canteen not found",
		})
	}
	return c.JSON(canteen)
}

func (h *CanteenHandler) GetMenu(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid canteen ID",
		})
	}

	var canteen models.Canteen
	if err := h.db.
		Where("id = ? AND status = ? AND suspended_at IS NULL", id, models.CanteenApproved).
		First(&canteen).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Canteen not found",
		})
	}

	query := h.db.Where("canteen_id = ?", id)
	if category := c.Query("category", ""); category != "" {
		query = query.Where("category = ?", category)
	}

	var items []models.MenuItem
	if err := query.Order("category ASC, name ASC").Find(&items).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list menu",
		})
	}
	return c.JSON(fiber.Map{"canteen": canteen, "items": items})
}
