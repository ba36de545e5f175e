package handlers

import (
	"encoding/json"
	"time"

	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OrderHandler struct {
	db *gorm.DB
}

func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

// orderingBlocked consults the platform kill switches. Missing keys mean
// ordering is open.
func (h *OrderHandler) orderingBlocked() (string, bool) {
	var cfg models.SystemConfig
	if err := h.db.First(&cfg, "key = ?", models.ConfigMaintenanceMode).Error; err == nil && cfg.BoolValue() {
		return "Platform is under maintenance", true
	}
	if err := h.db.First(&cfg, "key = ?", models.ConfigOrderingEnabled).Error; err == nil && !cfg.BoolValue() {
		return "Ordering is temporarily disabled", true
	}
	return "", false
}

// CreateOrder checks out the caller's cart against one canteen. Items are
// priced server-side from the menu at the time of checkout.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	acct, _ := c.Locals("account").(*models.Account)
	if acct == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   true,
			"message": "Authentication required",
		})
	}

	if msg, blocked := h.orderingBlocked(); blocked {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   true,
			"message": msg,
		})
	}

	var req struct {
		CanteenID uuid.UUID `json:"canteen_id" validate:"required"`
		Items     []struct {
			MenuItemID uuid.UUID `json:"menu_item_id" validate:"required"`
			Quantity   int       `json:"quantity" validate:"required,min=1,max=20"`
		} `json:"items" validate:"required,min=1,dive"`
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
			"message": "Canteen and at least one item with quantity 1-20 are required",
		})
	}

	var canteen models.Canteen
	if err := h.db.First(&canteen, "id = ?", req.CanteenID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Canteen not found",
		})
	}
	if !canteen.AcceptingOrders() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "Canteen is not accepting orders",
		})
	}

	lines := make([]models.OrderItem, 0, len(req.Items))
	total := decimal.Zero
	for _, it := range req.Items {
		var item models.MenuItem
		if err := h.db.First(&item, "id = ? AND canteen_id = ?", it.MenuItemID, req.CanteenID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   true,
				"message": "Menu item not found in this canteen",
			})
		}
		if !item.InStock {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   true,
				"message": item.Name + " is out of stock",
			})
		}
		lines = append(lines, models.OrderItem{
			MenuItemID: item.ID,
			Name:       item.Name,
			UnitPrice:  item.Price,
			Quantity:   it.Quantity,
		})
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	itemsJSON, err := json.Marshal(lines)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to place order",
		})
	}
	historyJSON, _ := json.Marshal([]models.StatusTransition{{
		From: "",
		To:   models.OrderPlaced,
		At:   time.Now().UTC(),
	}})

	order := models.Order{
		AccountID:     acct.ID,
		CanteenID:     canteen.ID,
		Items:         datatypes.JSON(itemsJSON),
		Total:         total,
		Status:        models.OrderPlaced,
		StatusHistory: datatypes.JSON(historyJSON),
		PaymentStatus: models.PaymentPending,
	}
	if err := h.db.Create(&order).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to place order",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	acct, _ := c.Locals("account").(*models.Account)
	if acct == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   true,
			"message": "Authentication required",
		})
	}

	var orders []models.Order
	if err := h.db.
		Where("account_id = ?", acct.ID).
		Order("created_at DESC").
		Limit(100).
		Find(&orders).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list orders",
		})
	}
	return c.JSON(fiber.Map{"orders": orders})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	acct, _ := c.Locals("account").(*models.Account)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid order ID",
		})
	}

	var order models.Order
	if err := h.db.First(&order, "id = ? AND account_id = ?", id, acct.ID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Order not found",
		})
	}
	return c.JSON(order)
}

// ConfirmPayment marks the caller's pending order as paid with the payment
// provider's reference. Provider-side verification is the gateway's concern;
// this endpoint only records the outcome.
func (h *OrderHandler) ConfirmPayment(c *fiber.Ctx) error {
	acct, _ := c.Locals("account").(*models.Account)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid order ID",
		})
	}

	var req struct {
		PaymentRef string `json:"payment_ref" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || validate.Struct(&req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Payment reference is required",
		})
	}

	var order models.Order
	if err := h.db.First(&order, "id = ? AND account_id = ?", id, acct.ID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Order not found",
		})
	}
	if order.PaymentStatus != models.PaymentPending {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "Order payment is not pending",
		})
	}

	if err := h.db.Model(&order).Updates(map[string]interface{}{
		"payment_status": models.PaymentPaid,
		"payment_ref":    req.PaymentRef,
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to record payment",
		})
	}

	order.PaymentStatus = models.PaymentPaid
	order.PaymentRef = req.PaymentRef
	return c.JSON(order)
}
