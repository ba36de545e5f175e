package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/canteenhq/campuseats/internal/audit"
	"github.com/canteenhq/campuseats/internal/config"
	"github.com/canteenhq/campuseats/internal/database"
	"github.com/canteenhq/campuseats/internal/handlers"
	"github.com/canteenhq/campuseats/internal/middleware"
	"github.com/canteenhq/campuseats/internal/models"
	"github.com/canteenhq/campuseats/internal/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

var dbSeq int64

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
	gw  *audit.Gateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, database.RegisterAppendOnlyGuard(db))
	require.NoError(t, db.AutoMigrate(
		&models.Account{},
		&models.Canteen{},
		&models.MenuItem{},
		&models.Order{},
		&models.Review{},
		&models.SystemConfig{},
		&models.AuditRecord{},
	))

	cfg := &config.Config{JWTSecret: testSecret}
	gw := audit.NewGateway(db)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": message,
			})
		},
	})

	routes.Setup(app, cfg, db,
		handlers.NewAuthHandler(db, cfg),
		handlers.NewSystemHandler(db),
		handlers.NewCanteenHandler(db),
		handlers.NewOrderHandler(db),
		handlers.NewReviewHandler(db),
		handlers.NewAdminAccountHandler(db, gw),
		handlers.NewAdminCanteenHandler(db, gw),
		handlers.NewAdminMenuHandler(db, gw),
		handlers.NewAdminOrderHandler(db, gw),
		handlers.NewAdminReviewHandler(db, gw),
		handlers.NewAdminSystemHandler(db, gw),
		handlers.NewAuditHandler(db, gw),
	)

	return &testEnv{app: app, db: db, gw: gw}
}

func (e *testEnv) seedAccount(t *testing.T, role, name string) *models.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	acct := models.Account{
		Email:        fmt.Sprintf("%s-%d@campus.test", role, atomic.AddInt64(&dbSeq, 1)),
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
	}
	require.NoError(t, e.db.Create(&acct).Error)
	return &acct
}

func (e *testEnv) token(t *testing.T, acct *models.Account) string {
	t.Helper()
	access, _, err := middleware.GenerateTokens(acct, testSecret)
	require.NoError(t, err)
	return access
}

func (e *testEnv) seedCanteen(t *testing.T) *models.Canteen {
	t.Helper()
	canteen := models.Canteen{
		Name:            "North Mess",
		Slug:            fmt.Sprintf("north-mess-%d", atomic.AddInt64(&dbSeq, 1)),
		Status:          models.CanteenApproved,
		OrderingEnabled: true,
	}
	require.NoError(t, e.db.Create(&canteen).Error)
	return &canteen
}

func (e *testEnv) seedMenuItem(t *testing.T, canteen *models.Canteen, name, price string) *models.MenuItem {
	t.Helper()
	item := models.MenuItem{
		CanteenID: canteen.ID,
		Name:      name,
		Category:  "lunch",
		Price:     decimal.RequireFromString(price),
		InStock:   true,
	}
	require.NoError(t, e.db.Create(&item).Error)
	return &item
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) auditCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.AuditRecord{}).Count(&count).Error)
	return count
}
