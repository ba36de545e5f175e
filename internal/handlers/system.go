package handlers

import (
	"time"

	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var startTime = time.Now()
var Version = "1.0.0"

type SystemHandler struct {
	db *gorm.DB
}

func NewSystemHandler(db *gorm.DB) *SystemHandler {
	return &SystemHandler{db: db}
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	dbStatus := "ok"
	statusCode := fiber.StatusOK

	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		statusCode = fiber.StatusServiceUnavailable
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "unreachable: " + err.Error()
		statusCode = fiber.StatusServiceUnavailable
	}

	overall := "ok"
	if statusCode != fiber.StatusOK {
		overall = "degraded"
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":  overall,
		"service": "campuseats",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"uptime":  time.Since(startTime).String(),
		"db":      dbStatus,
	})
}

// ClientConfig returns client-safe platform flags as a flat JSON object.
func (h *SystemHandler) ClientConfig(c *fiber.Ctx) error {
	var configs []models.SystemConfig
	h.db.Find(&configs)

	result := make(map[string]interface{})
	var maxUpdated time.Time

	for _, cfg := range configs {
		switch cfg.Type {
		case "bool":
			result[cfg.Key] = cfg.BoolValue()
		case "int":
			result[cfg.Key] = cfg.IntValue()
		default:
			result[cfg.Key] = cfg.Value
		}
		if cfg.UpdatedAt.After(maxUpdated) {
			maxUpdated = cfg.UpdatedAt
		}
	}

	result["config_version"] = maxUpdated.Unix()

	c.Set("Cache-Control", "public, max-age=60")
	if !maxUpdated.IsZero() {
		c.Set("Last-Modified", maxUpdated.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
	}

	return c.JSON(result)
}
