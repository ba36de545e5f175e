package audit

import (
	"errors"

	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthorizeActor verifies the caller is an active, non-suspended elevated
// actor and resolves the context recorded on audit entries. The account is
// re-read on every call so a suspension takes effect before the token
// expires.
func AuthorizeActor(c *fiber.Ctx, db *gorm.DB) (ActorContext, error) {
	idStr, _ := c.Locals("account_id").(string)
	if idStr == "" {
		return ActorContext{}, ErrUnauthenticated
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return ActorContext{}, ErrUnauthenticated
	}

	var acct models.Account
	if err := db.First(&acct, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ActorContext{}, ErrUnauthenticated
		}
		return ActorContext{}, err
	}

	if acct.Role != models.RoleAdmin || acct.Suspended() {
		return ActorContext{}, ErrForbidden
	}

	return ActorContext{
		ID:    acct.ID,
		Label: acct.Label(),
		Role:  acct.Role,
	}, nil
}
