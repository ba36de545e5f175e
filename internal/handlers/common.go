package handlers

import (
	"errors"

	"github.com/canteenhq/campuseats/internal/audit"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var validate = validator.New()

// actorFromCtx returns the ActorContext placed in locals by middleware.AdminOnly.
func actorFromCtx(c *fiber.Ctx) audit.ActorContext {
	actor, _ := c.Locals("actor").(audit.ActorContext)
	return actor
}

// respondGatewayErr maps gateway and mutation errors onto the API's error
// shape. Domain validation failures inside mutation functions are raised as
// *fiber.Error and propagate verbatim.
func respondGatewayErr(c *fiber.Ctx, err error, fallback string) error {
	var fe *fiber.Error
	switch {
	case errors.Is(err, audit.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Not found",
		})
	case errors.As(err, &fe):
		return c.Status(fe.Code).JSON(fiber.Map{
			"error":   true,
			"message": fe.Message,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": fallback,
		})
	}
}
