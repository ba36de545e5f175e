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

type AdminOrderHandler struct {
	db *gorm.DB
	gw *audit.Gateway
}

func NewAdminOrderHandler(db *gorm.DB, gw *audit.Gateway) *AdminOrderHandler {
	return &AdminOrderHandler{db: db, gw: gw}
}

func (h *AdminOrderHandler) ListOrders(c *fiber.Ctx) error {
	query := h.db.Model(&models.Order{})
	if status := c.Query("status", ""); status != "" {
		query = query.Where("status = ?", status)
	}
	if canteen := c.Query("canteen_id", ""); canteen != "" {
		query = query.Where("canteen_id = ?", canteen)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").Limit(200).Find(&orders).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list orders",
		})
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// appendStatusHistory adds a transition entry, tolerating a corrupt list.
func appendStatusHistory(existing datatypes.JSON, from, to string, by uuid.UUID) datatypes.JSON {
	var history []models.StatusTransition
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &history); err != nil {
			history = nil
		}
	}
	history = append(history, models.StatusTransition{
		From:      from,
		To:        to,
		At:        time.Now().UTC(),
		ChangedBy: &by,
	})
	b, _ := json.Marshal(history)
	return datatypes.JSON(b)
}

func (h *AdminOrderHandler) OverrideStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid order ID",
		})
	}

	var req struct {
		Status string `json:"status" validate:"required"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A status is required",
		})
	}
	if !models.ValidOrderStatus(req.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Unknown order status: " + req.Status,
		})
	}

	actor := actorFromCtx(c)
	var order models.Order
	err = h.gw.Perform(audit.Mutation{
		Actor:    actor,
		Action:   models.ActionOrderStatusOverride,
		Entity:   models.EntityOrder,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", id).Error; err != nil {
			return err
		}
		if order.Status == req.Status {
			return fiber.NewError(fiber.StatusConflict, "Order already has this status")
		}
		return tx.Model(&order).Updates(map[string]interface{}{
			"status":         req.Status,
			"status_history": appendStatusHistory(order.StatusHistory, order.Status, req.Status, actor.ID),
		}).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to override order status")
	}

	h.db.First(&order, "id = ?", id)
	return c.JSON(order)
}

func (h *AdminOrderHandler) CancelOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid order ID",
		})
	}

	var req struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A reason is required to cancel an order",
		})
	}

	actor := actorFromCtx(c)
	var order models.Order
	err = h.gw.Perform(audit.Mutation{
		Actor:    actor,
		Action:   models.ActionOrderCancel,
		Entity:   models.EntityOrder,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", id).Error; err != nil {
			return err
		}
		if order.Status == models.OrderCancelled {
			return fiber.NewError(fiber.StatusConflict, "Order is already cancelled")
		}
		if order.Status == models.OrderDelivered {
			return fiber.NewError(fiber.StatusConflict, "Delivered orders cannot be cancelled")
		}
		return tx.Model(&order).Updates(map[string]interface{}{
			"status":         models.OrderCancelled,
			"status_history": appendStatusHistory(order.StatusHistory, order.Status, models.OrderCancelled, actor.ID),
		}).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to cancel order")
	}

	h.db.First(&order, "id = ?", id)
	return c.JSON(order)
}

// RefundOrder refunds a paid order, fully by default or partially when an
// amount is given. Double refunds are rejected.
func (h *AdminOrderHandler) RefundOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid order ID",
		})
	}

	var req struct {
		Amount string `json:"amount"`
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A reason is required to refund an order",
		})
	}

	actor := actorFromCtx(c)
	var order models.Order
	err = h.gw.Perform(audit.Mutation{
		Actor:    actor,
		Action:   models.ActionOrderRefund,
		Entity:   models.EntityOrder,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", id).Error; err != nil {
			return err
		}
		if order.Refunded() {
			return fiber.NewError(fiber.StatusConflict, "Order has already been refunded")
		}
		if order.PaymentStatus != models.PaymentPaid {
			return fiber.NewError(fiber.StatusConflict, "Only paid orders can be refunded")
		}

		amount := order.Total
		if req.Amount != "" {
			parsed, err := decimal.NewFromString(req.Amount)
			if err != nil || parsed.IsNegative() || parsed.GreaterThan(order.Total) {
				return fiber.NewError(fiber.StatusBadRequest, "Refund amount must be between 0 and the order total")
			}
			amount = parsed
		}

		refundJSON, err := json.Marshal(models.Refund{
			Amount:     amount,
			RefundedAt: time.Now().UTC(),
			RefundedBy: actor.ID,
			Note:       req.Reason,
		})
		if err != nil {
			return err
		}

		return tx.Model(&order).Updates(map[string]interface{}{
			"payment_status": models.PaymentRefunded,
			"refund_details": datatypes.JSON(refundJSON),
		}).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to refund order")
	}

	h.db.First(&order, "id = ?", id)
	return c.JSON(order)
}

// ReassignOrder moves an order to another canteen, e.g. when a kitchen
// closes mid-shift.
func (h *AdminOrderHandler) ReassignOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid order ID",
		})
	}

	var req struct {
		CanteenID uuid.UUID `json:"canteen_id" validate:"required"`
		Reason    string    `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A target canteen and a reason are required",
		})
	}

	var order models.Order
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionOrderReassign,
		Entity:   models.EntityOrder,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", id).Error; err != nil {
			return err
		}
		if order.CanteenID == req.CanteenID {
			return fiber.NewError(fiber.StatusConflict, "Order is already assigned to this canteen")
		}
		var target models.Canteen
		if err := tx.First(&target, "id = ?", req.CanteenID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Target canteen not found")
		}
		if !target.AcceptingOrders() {
			return fiber.NewError(fiber.StatusConflict, "Target canteen is not accepting orders")
		}
		return tx.Model(&order).Update("canteen_id", req.CanteenID).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to reassign order")
	}

	h.db.First(&order, "id = ?", id)
	return c.JSON(order)
}

func (h *AdminOrderHandler) OverridePayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid order ID",
		})
	}

	var req struct {
		PaymentStatus string `json:"payment_status" validate:"required"`
		Reason        string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A payment status and a reason are required",
		})
	}
	if !models.ValidPaymentStatus(req.PaymentStatus) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Unknown payment status: " + req.PaymentStatus,
		})
	}

	var order models.Order
	err = h.gw.Perform(audit.Mutation{
		Actor:    actorFromCtx(c),
		Action:   models.ActionOrderPaymentOverride,
		Entity:   models.EntityOrder,
		EntityID: &id,
		Reason:   req.Reason,
		Origin:   audit.OriginFromCtx(c),
	}, func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", id).Error; err != nil {
			return err
		}
		if order.PaymentStatus == req.PaymentStatus {
			return fiber.NewError(fiber.StatusConflict, "Order already has this payment status")
		}
		return tx.Model(&order).Update("payment_status", req.PaymentStatus).Error
	})
	if err != nil {
		return respondGatewayErr(c, err, "Failed to override payment status")
	}

	h.db.First(&order, "id = ?", id)
	return c.JSON(order)
}
