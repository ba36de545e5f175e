package handlers

import (
	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReviewHandler struct {
	db *gorm.DB
}

func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{db: db}
}

func (h *ReviewHandler) CreateReview(c *fiber.Ctx) error {
	acct, _ := c.Locals("account").(*models.Account)
	if acct == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   true,
			"message": "Authentication required",
		})
	}

	var req struct {
		CanteenID uuid.UUID  `json:"canteen_id" validate:"required"`
		OrderID   *uuid.UUID `json:"order_id,omitempty"`
		Rating    int        `json:"rating" validate:"required,min=1,max=5"`
		Comment   string     `json:"comment" validate:"max=2000"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Canteen and a rating of 1-5 are required",
		})
	}

	var canteen models.Canteen
	if err := h.db.
		Where("id = ? AND status = ?", req.CanteenID, models.CanteenApproved).
		First(&canteen).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Canteen not found",
		})
	}

	if req.OrderID != nil {
		var count int64
		h.db.Model(&models.Order{}).
			Where("id = ? AND account_id = ? AND canteen_id = ?", req.OrderID, acct.ID, req.CanteenID).
			Count(&count)
		if count == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   true,
				"message": "Order does not belong to you or this canteen",
			})
		}
	}

	review := models.Review{
		AccountID: acct.ID,
		CanteenID: req.CanteenID,
		OrderID:   req.OrderID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := h.db.Create(&review).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create review",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(review)
}

// UpdateReview lets the author revise an unlocked review.
func (h *ReviewHandler) UpdateReview(c *fiber.Ctx) error {
	acct, _ := c.Locals("account").(*models.Account)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid review ID",
		})
	}

	var req struct {
		Rating  int    `json:"rating" validate:"required,min=1,max=5"`
		Comment string `json:"comment" validate:"max=2000"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A rating of 1-5 is required",
		})
	}

	var review models.Review
	if err := h.db.First(&review, "id = ? AND account_id = ?", id, acct.ID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Review not found",
		})
	}
	if review.Locked {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "Review has been locked by moderation",
		})
	}

	if err := h.db.Model(&review).Updates(map[string]interface{}{
		"rating":  req.Rating,
		"comment": req.Comment,
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update review",
		})
	}

	review.Rating = req.Rating
	review.Comment = req.Comment
	return c.JSON(review)
}

func (h *ReviewHandler) ListCanteenReviews(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid canteen ID",
		})
	}

	var reviews []models.Review
	if err := h.db.
		Where("canteen_id = ?", id).
		Order("created_at DESC").
		Limit(100).
		Find(&reviews).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list reviews",
		})
	}
	return c.JSON(fiber.Map{"reviews": reviews})
}
