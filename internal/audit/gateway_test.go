package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/canteenhq/campuseats/internal/database"
	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:audit_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
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
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, role string) *models.Account {
	t.Helper()
	acct := models.Account{
		Email:        fmt.Sprintf("user-%s@campus.test", uuid.NewString()[:8]),
		Name:         "Test User",
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, db.Create(&acct).Error)
	return &acct
}

func testActor(acct *models.Account) ActorContext {
	return ActorContext{ID: acct.ID, Label: acct.Label(), Role: acct.Role}
}

func suspendMutation(actor ActorContext, target *models.Account, reason string) (Mutation, func(tx *gorm.DB) error) {
	m := Mutation{
		Actor:    actor,
		Action:   models.ActionAccountSuspend,
		Entity:   models.EntityAccount,
		EntityID: &target.ID,
		Reason:   reason,
		Origin:   Origin{IP: "10.0.0.1", UserAgent: "test"},
	}
	fn := func(tx *gorm.DB) error {
		now := time.Now().UTC()
		return tx.Model(&models.Account{}).Where("id = ?", target.ID).Updates(map[string]interface{}{
			"suspended_at":   now,
			"suspended_by":   actor.ID,
			"suspend_reason": reason,
		}).Error
	}
	return m, fn
}

func TestAuditRecordsAreAppendOnly(t *testing.T) {
	db := newTestDB(t)
	admin := seedAccount(t, db, models.RoleAdmin)
	target := seedAccount(t, db, models.RoleStudent)

	gw := NewGateway(db)
	m, fn := suspendMutation(testActor(admin), target, "policy violation")
	require.NoError(t, gw.Perform(m, fn))

	var rec models.AuditRecord
	require.NoError(t, db.First(&rec).Error)

	// Batch update path
	err := db.Model(&models.AuditRecord{}).Where("id = ?", rec.ID).Update("reason", "tampered").Error
	assert.ErrorIs(t, err, models.ErrAuditImmutable)

	// Full-save update path
	rec.Reason = "tampered"
	assert.Error(t, db.Save(&rec).Error)

	// Delete path
	err = db.Delete(&models.AuditRecord{}, "id = ?", rec.ID).Error
	assert.ErrorIs(t, err, models.ErrAuditImmutable)

	// Record survived untouched
	var fresh models.AuditRecord
	require.NoError(t, db.First(&fresh, "id = ?", rec.ID).Error)
	assert.Equal(t, "policy violation", fresh.Reason)
}

func TestNoAuditOnFailedMutation(t *testing.T) {
	db := newTestDB(t)
	admin := seedAccount(t, db, models.RoleAdmin)
	target := seedAccount(t, db, models.RoleStudent)

	gw := NewGateway(db)
	m := Mutation{
		Actor:    testActor(admin),
		Action:   models.ActionAccountSuspend,
		Entity:   models.EntityAccount,
		EntityID: &target.ID,
	}
	boom := fmt.Errorf("domain validation failed")
	err := gw.Perform(m, func(tx *gorm.DB) error {
		// Partial write that must be rolled back with the failure.
		if err := tx.Model(&models.Account{}).Where("id = ?", target.ID).
			Update("suspend_reason", "half done").Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	db.Model(&models.AuditRecord{}).Count(&count)
	assert.Zero(t, count)

	var fresh models.Account
	require.NoError(t, db.First(&fresh, "id = ?", target.ID).Error)
	assert.Empty(t, fresh.SuspendReason)
	assert.Nil(t, fresh.SuspendedAt)
}

func TestAuditCompletenessOnSuccess(t *testing.T) {
	db := newTestDB(t)
	admin := seedAccount(t, db, models.RoleAdmin)
	target := seedAccount(t, db, models.RoleStudent)

	gw := NewGateway(db)
	m, fn := suspendMutation(testActor(admin), target, "policy violation")
	require.NoError(t, gw.Perform(m, fn))

	var records []models.AuditRecord
	require.NoError(t, db.Find(&records).Error)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, admin.ID, rec.ActorID)
	assert.Equal(t, admin.Label(), rec.ActorLabel)
	assert.Equal(t, models.ActionAccountSuspend, rec.ActionKind)
	assert.Equal(t, models.EntityAccount, rec.EntityKind)
	require.NotNil(t, rec.EntityID)
	assert.Equal(t, target.ID, *rec.EntityID)
	assert.Equal(t, "policy violation", rec.Reason)
	assert.Equal(t, "10.0.0.1", rec.OriginIP)
	assert.False(t, rec.RecordedAt.IsZero())

	var before, after map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.BeforeSnapshot, &before))
	require.NoError(t, json.Unmarshal(rec.AfterSnapshot, &after))
	assert.Nil(t, before["suspended_at"])
	assert.NotNil(t, after["suspended_at"])
	assert.Equal(t, "policy violation", after["suspend_reason"])
}

func TestPerformMissingEntity(t *testing.T) {
	db := newTestDB(t)
	admin := seedAccount(t, db, models.RoleAdmin)

	gw := NewGateway(db)
	missing := uuid.New()
	invoked := false
	err := gw.Perform(Mutation{
		Actor:    testActor(admin),
		Action:   models.ActionAccountSuspend,
		Entity:   models.EntityAccount,
		EntityID: &missing,
	}, func(tx *gorm.DB) error {
		invoked = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, invoked)

	var count int64
	db.Model(&models.AuditRecord{}).Count(&count)
	assert.Zero(t, count)
}

func TestAuditWriteFailureDoesNotFailMutation(t *testing.T) {
	db := newTestDB(t)
	admin := seedAccount(t, db, models.RoleAdmin)
	target := seedAccount(t, db, models.RoleStudent)

	// Force the audit insert to fail.
	require.NoError(t, db.Migrator().DropTable(&models.AuditRecord{}))

	gw := NewGateway(db)
	m, fn := suspendMutation(testActor(admin), target, "policy violation")
	require.NoError(t, gw.Perform(m, fn))

	var fresh models.Account
	require.NoError(t, db.First(&fresh, "id = ?", target.ID).Error)
	assert.NotNil(t, fresh.SuspendedAt)
	assert.Equal(t, "policy violation", fresh.SuspendReason)
}

func TestActionKindWhitelist(t *testing.T) {
	db := newTestDB(t)

	err := db.Create(&models.AuditRecord{
		ActorID:    uuid.New(),
		ActorLabel: "x",
		ActionKind: models.ActionKind("account.obliterate"),
		EntityKind: models.EntityAccount,
	}).Error
	assert.Error(t, err)

	err = db.Create(&models.AuditRecord{
		ActorID:    uuid.New(),
		ActorLabel: "x",
		ActionKind: models.ActionAccountSuspend,
		EntityKind: models.EntityKind("spaceship"),
	}).Error
	assert.Error(t, err)

	var count int64
	db.Model(&models.AuditRecord{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreationActionCapturesAfterOnly(t *testing.T) {
	db := newTestDB(t)
	admin := seedAccount(t, db, models.RoleAdmin)

	gw := NewGateway(db)
	var canteen models.Canteen
	err := gw.Perform(Mutation{
		Actor:    testActor(admin),
		Action:   models.ActionCanteenCreate,
		Entity:   models.EntityCanteen,
		EntityID: &canteen.ID,
	}, func(tx *gorm.DB) error {
		canteen = models.Canteen{Name: "North Mess", Slug: "north-mess", Status: models.CanteenPending}
		return tx.Create(&canteen).Error
	})
	require.NoError(t, err)

	var rec models.AuditRecord
	require.NoError(t, db.First(&rec).Error)
	assert.Empty(t, rec.BeforeSnapshot)
	assert.NotEmpty(t, rec.AfterSnapshot)
	require.NotNil(t, rec.EntityID)
	assert.Equal(t, canteen.ID, *rec.EntityID)
}

func TestDeletionActionCapturesBeforeOnly(t *testing.T) {
	db := newTestDB(t)
	admin := seedAccount(t, db, models.RoleAdmin)
	target := seedAccount(t, db, models.RoleStudent)

	gw := NewGateway(db)
	err := gw.Perform(Mutation{
		Actor:    testActor(admin),
		Action:   models.ActionAccountDelete,
		Entity:   models.EntityAccount,
		EntityID: &target.ID,
	}, func(tx *gorm.DB) error {
		return tx.Delete(&models.Account{}, "id = ?", target.ID).Error
	})
	require.NoError(t, err)

	var rec models.AuditRecord
	require.NoError(t, db.First(&rec).Error)
	assert.NotEmpty(t, rec.BeforeSnapshot)
	assert.Empty(t, rec.AfterSnapshot)
}

func TestSubscribeReceivesRecords(t *testing.T) {
	db := newTestDB(t)
	admin := seedAccount(t, db, models.RoleAdmin)
	target := seedAccount(t, db, models.RoleStudent)

	gw := NewGateway(db)
	ch, cancel := gw.Subscribe()
	defer cancel()

	m, fn := suspendMutation(testActor(admin), target, "policy violation")
	require.NoError(t, gw.Perform(m, fn))

	select {
	case rec := <-ch:
		assert.Equal(t, models.ActionAccountSuspend, rec.ActionKind)
	case <-time.After(time.Second):
		t.Fatal("expected a streamed audit record")
	}
}

func TestAuthorizeActor(t *testing.T) {
	db := newTestDB(t)
	admin := seedAccount(t, db, models.RoleAdmin)
	student := seedAccount(t, db, models.RoleStudent)

	suspended := seedAccount(t, db, models.RoleAdmin)
	now := time.Now().UTC()
	require.NoError(t, db.Model(suspended).Update("suspended_at", now).Error)

	app := fiber.New()
	app.Get("/check", func(c *fiber.Ctx) error {
		if id := c.Get("X-Account"); id != "" {
			c.Locals("account_id", id)
		}
		actor, err := AuthorizeActor(c, db)
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"label": actor.Label})
		case errors.Is(err, ErrUnauthenticated):
			return c.SendStatus(fiber.StatusUnauthorized)
		case errors.Is(err, ErrForbidden):
			return c.SendStatus(fiber.StatusForbidden)
		default:
			return c.SendStatus(fiber.StatusInternalServerError)
		}
	})

	cases := []struct {
		name    string
		account string
		status  int
	}{
		{"no session", "", fiber.StatusUnauthorized},
		{"unknown account", uuid.NewString(), fiber.StatusUnauthorized},
		{"student", student.ID.String(), fiber.StatusForbidden},
		{"suspended admin", suspended.ID.String(), fiber.StatusForbidden},
		{"active admin", admin.ID.String(), fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/check", nil)
			if tc.account != "" {
				req.Header.Set("X-Account", tc.account)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
