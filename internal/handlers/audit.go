package handlers

import (
	"strconv"
	"time"

	"github.com/canteenhq/campuseats/internal/audit"
	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AuditHandler exposes the audit trail read-only. There is deliberately no
// update or delete surface; the storage guard rejects them anyway.
type AuditHandler struct {
	db *gorm.DB
	gw *audit.Gateway
}

func NewAuditHandler(db *gorm.DB, gw *audit.Gateway) *AuditHandler {
	return &AuditHandler{db: db, gw: gw}
}

// ListRecords returns paginated audit records, filterable by actor, action,
// entity and time range.
func (h *AuditHandler) ListRecords(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("per_page", "50"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	query := h.db.Model(&models.AuditRecord{})

	if actor := c.Query("actor", ""); actor != "" {
		query = query.Where("actor_id = ?", actor)
	}
	if action := c.Query("action", ""); action != "" {
		query = query.Where("action_kind = ?", action)
	}
	if kind := c.Query("entity_kind", ""); kind != "" {
		query = query.Where("entity_kind = ?", kind)
	}
	if entity := c.Query("entity_id", ""); entity != "" {
		query = query.Where("entity_id = ?", entity)
	}
	if from := c.Query("from", ""); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			query = query.Where("recorded_at >= ?", t)
		}
	}
	if to := c.Query("to", ""); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			query = query.Where("recorded_at <= ?", t)
		}
	}

	var total int64
	query.Count(&total)

	var records []models.AuditRecord
	if err := query.Order("recorded_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list audit records",
		})
	}

	return c.JSON(fiber.Map{
		"records":  records,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// StreamUpgrade rejects plain HTTP requests on the stream route.
func (h *AuditHandler) StreamUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Stream pushes newly written audit records to the admin dashboard.
func (h *AuditHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ch, cancel := h.gw.Subscribe()
		defer cancel()

		for rec := range ch {
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
		}
	})
}
