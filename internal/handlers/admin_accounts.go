package handlers

import (
	"time"

	"github.com/canteenhq/campuseats/internal/audit"
	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminAccountHandler implements the account-lifecycle slice of the admin
// control plane. Every write goes through the mutation gateway.
type AdminAccountHandler struct {
	db *gorm.DB
	gw *audit.Gateway
}

func NewAdminAccountHandler(db *gorm.DB, gw *audit.Gateway) *AdminAccountHandler {
	return &AdminAccountHandler{db: db, gw: gw}
}

func (h *AdminAccountHandler) ListAccounts(c *fiber.Ctx) error {
	query := h.db.Model(&models.Account{})
	if role := c.Query("role", ""); role != "" {
		query = query.Where("role = ?", role)
	}
	if c.Query("suspended", "") == "true" {
		query = query.Where("suspended_at IS NOT NULL")
	}

	var accounts []models.Account
	if err := query.Order("created_at DESC").Limit(200).Find(&accounts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list accounts",
		})
	}
	return c.JSON(fiber.Map{"accounts": accounts})
}

func (h *AdminAccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Name     string `json:"name" validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
		Role     string `json:"role" validate:"required,oneof=student staff admin"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Email, name, password and a valid role are required",
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create account",
		})
	}

	var acct models.Account
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionAccountCreate,
		Entity:   models.EntityAccount,
		EntityID: &acct.ID,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		var count int64
		tx.Model(&models.Account{}).Where("email = ?", req.Email).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "Email is already registered")
		}
		acct = models.Account{
			Email:        req.Email,
			Name:         req.Name,
			PasswordHash: string(hash),
			Role:         req.Role,
		}
		return tx.Create(&acct).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to create account")
	}
	return c.Status(fiber.StatusCreated).JSON(acct)
}

func (h *AdminAccountHandler) UpdateAccount(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	var acct models.Account
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionAccountUpdate,
		Entity:   models.EntityAccount,
		EntityID: &id,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&acct, "id = ?", id).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if req.Name != "" {
			updates["name"] = req.Name
		}
		if req.Email != "" {
			updates["email"] = req.Email
		}
		if len(updates) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Nothing to update")
		}
		return tx.Model(&acct).Updates(updates).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to update account")
	}

	h.db.First(&acct, "id = ?", id)
	return c.JSON(acct)
}

func (h *AdminAccountHandler) DeleteAccount(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	c.BodyParser(&req)

	actor := actorFromCtx(c)
	if actor.ID == id {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "You cannot delete your own account",
		})
	}

	err = h.gw.Perform(audit.Mutation{
		Actor:    actor,
		Action:   models.ActionAccountDelete,
		Entity:   models.EntityAccount,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		return tx.Delete(&models.Account{}, "id = ?", id).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to delete account")
	}
	return c.JSON(fiber.Map{"message": "Account deleted"})
}

func (h *AdminAccountHandler) SuspendAccount(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}

	var req struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A reason is required to suspend an account",
		})
	}

	actor := actorFromCtx(c)
	if actor.ID == id {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "You cannot suspend your own account",
		})
	}

	var acct models.Account
	err = h.gw.Perform(audit.Mutation{
		Actor:    actor,
		Action:   models.ActionAccountSuspend,
		Entity:   models.EntityAccount,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&acct, "id = ?", id).Error; err != nil {
			return err
		}
		if acct.Suspended() {
			return fiber.NewError(fiber.StatusConflict, "Account is already suspended")
		}
		now := time.Now().UTC()
		return tx.Model(&acct).Updates(map[string]interface{}{
			"suspended_at":   now,
			"suspended_by":   actor.ID,
			"suspend_reason": req.Reason,
		}).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to suspend account")
	}

	h.db.First(&acct, "id = ?", id)
	return c.JSON(acct)
}

func (h *AdminAccountHandler) ReactivateAccount(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	c.BodyParser(&req)

	var acct models.Account
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionAccountReactivate,
		Entity:   models.EntityAccount,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&acct, "id = ?", id).Error; err != nil {
			return err
		}
		if !acct.Suspended() {
			return fiber.NewError(fiber.StatusConflict, "Account is not suspended")
		}
		return tx.Model(&acct).Updates(map[string]interface{}{
			"suspended_at":   nil,
			"suspended_by":   nil,
			"suspend_reason": "",
		}).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to reactivate account")
	}

	h.db.First(&acct, "id = ?", id)
	return c.JSON(acct)
}

// ForceLogout invalidates every token issued to the account before now.
func (h *AdminAccountHandler) ForceLogout(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	c.BodyParser(&req)

	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionAccountForceLogout,
		Entity:   models.EntityAccount,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		var acct models.Account
		if err := tx.First(&acct, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Model(&acct).Update("tokens_invalid_before", time.Now().UTC()).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to invalidate sessions")
	}
	return c.JSON(fiber.Map{"message": "All sessions invalidated"})
}

// ResetPassword sets a temporary password and drops existing sessions.
func (h *AdminAccountHandler) ResetPassword(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}

	var req struct {
		NewPassword string `json:"new_password" validate:"required,min=8"`
		Reason      string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "New password must be at least 8 characters",
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to reset password",
		})
	}

	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionAccountPwdReset,
		Entity:   models.EntityAccount,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		var acct models.Account
		if err := tx.First(&acct, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Model(&acct).Updates(map[string]interface{}{
			"password_hash":         string(hash),
			"tokens_invalid_before": time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to reset password")
	}
	return c.JSON(fiber.Map{"message": "Password reset"})
}

func (h *AdminAccountHandler) ChangeRole(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}

	var req struct {
		Role   string `json:"role" validate:"required,oneof=student staff admin"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Role must be one of student, staff, admin",
		})
	}

	actor := actorFromCtx(c)
	if actor.ID == id {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "You cannot change your own role",
		})
	}

	var acct models.Account
	err = h.gw.Perform(audit.Mutation{
		Actor:    actor,
		Action:   models.ActionSystemRoleChange,
		Entity:   models.EntityAccount,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&acct, "id = ?", id).Error; err != nil {
			return err
		}
		if acct.Role == req.Role {
			return fiber.NewError(fiber.StatusConflict, "Account already has this role")
		}
		return tx.Model(&acct).Update("role", req.Role).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to change role")
	}

	h.db.First(&acct, "id = ?", id)
	return c.JSON(acct)
}
