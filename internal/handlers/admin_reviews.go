package handlers

import (
	"time"

	"github.com/canteenhq/campuseats/internal/audit"
	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdminReviewHandler struct {
	db *gorm.DB
	gw *audit.Gateway
}

func NewAdminReviewHandler(db *gorm.DB, gw *audit.Gateway) *AdminReviewHandler {
	return &AdminReviewHandler{db: db, gw: gw}
}

func (h *AdminReviewHandler) ListReviews(c *fiber.Ctx) error {
	query := h.db.Model(&models.Review{})
	if c.Query("flagged", "") == "true" {
		query = query.Where("flagged = ?", true)
	}
	if canteen := c.Query("canteen_id", ""); canteen != "" {
		query = query.Where("canteen_id = ?", canteen)
	}

	var reviews []models.Review
	if err := query.Order("created_at DESC").Limit(200).Find(&reviews).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list reviews",
		})
	}
	return c.JSON(fiber.Map{"reviews": reviews})
}

// EditReview rewrites a review's comment, e.g. to strip abusive content.
func (h *AdminReviewHandler) EditReview(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid review ID",
		})
	}

	var req struct {
		Comment string `json:"comment" validate:"required,max=2000"`
		Reason  string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A replacement comment is required",
		})
	}

	actor := actorFromCtx(c)
	var review models.Review
	err = h.gw.Perform(audit.Mutation{
		Actor:    actor,
		Action:   models.ActionReviewEdit,
		Entity:   models.EntityReview,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&review, "id = ?", id).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		return tx.Model(&review).Updates(map[string]interface{}{
			"comment":   req.Comment,
			"edited_by": actor.ID,
			"edited_at": now,
		}).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to edit review")
	}

	h.db.First(&review, "id = ?", id)
	return c.JSON(review)
}

func (h *AdminReviewHandler) DeleteReview(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid review ID",
		})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	c.BodyParser(&req)

	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionReviewDelete,
		Entity:   models.EntityReview,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		return tx.Delete(&models.Review{}, "id = ?", id).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to delete review")
	}
	return c.JSON(fiber.Map{"message": "Review deleted"})
}

func (h *AdminReviewHandler) ToggleFlag(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid review ID",
		})
	}

	var review models.Review
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionReviewFlagToggle,
		Entity:   models.EntityReview,
		EntityID: &id,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&review, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Model(&review).Update("flagged", !review.Flagged).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to toggle flag")
	}

	h.db.First(&review, "id = ?", id)
	return c.JSON(review)
}

// LockReview toggles the author's ability to edit. Locked reviews can still
// be moderated.
func (h *AdminReviewHandler) LockReview(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid review ID",
		})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	c.BodyParser(&req)

	var review models.Review
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionReviewLock,
		Entity:   models.EntityReview,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&review, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Model(&review).Update("locked", !review.Locked).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to lock review")
	}

	h.db.First(&review, "id = ?", id)
	return c.JSON(review)
}

// OverrideRating replaces the rating, preserving the author's original value
// the first time it is overridden.
func (h *AdminReviewHandler) OverrideRating(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid review ID",
		})
	}

	var req struct {
		Rating int    `json:"rating" validate:"required,min=1,max=5"`
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A rating of 1-5 and a reason are required",
		})
	}

	var review models.Review
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionReviewRatingOverride,
		Entity:   models.EntityReview,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&review, "id = ?", id).Error; err != nil {
			return err
		}
		if review.Rating == req.Rating {
			return fiber.NewError(fiber.StatusConflict, "Review already has this rating")
		}
		updates := map[string]interface{}{"rating": req.Rating}
		if review.OriginalRating == nil {
			updates["original_rating"] = review.Rating
		}
		return tx.Model(&review).Updates(updates).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to override rating")
	}

	h.db.First(&review, "id = ?", id)
	return c.JSON(review)
}
