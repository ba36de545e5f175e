package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/canteenhq/campuseats/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminSuspendAccount(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAccount(t, models.RoleAdmin, "Admin")
	target := env.seedAccount(t, models.RoleStudent, "Student")

	resp := env.request(t, http.MethodPost,
		"/api/admin/accounts/"+target.ID.String()+"/suspend",
		env.token(t, admin),
		map[string]string{"reason": "policy violation"},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fresh models.Account
	require.NoError(t, env.db.First(&fresh, "id = ?", target.ID).Error)
	require.NotNil(t, fresh.SuspendedAt)
	require.NotNil(t, fresh.SuspendedBy)
	assert.Equal(t, admin.ID, *fresh.SuspendedBy)
	assert.Equal(t, "policy violation", fresh.SuspendReason)

	var records []models.AuditRecord
	require.NoError(t, env.db.Find(&records).Error)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, models.ActionAccountSuspend, rec.ActionKind)
	assert.Equal(t, models.EntityAccount, rec.EntityKind)
	require.NotNil(t, rec.EntityID)
	assert.Equal(t, target.ID, *rec.EntityID)
	assert.Equal(t, admin.ID, rec.ActorID)
	assert.Equal(t, "policy violation", rec.Reason)

	var before, after map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.BeforeSnapshot, &before))
	require.NoError(t, json.Unmarshal(rec.AfterSnapshot, &after))
	assert.Nil(t, before["suspended_at"])
	assert.NotNil(t, after["suspended_at"])
}

func TestSuspendRequiresElevatedActor(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedAccount(t, models.RoleStudent, "Student")
	target := env.seedAccount(t, models.RoleStudent, "Other Student")

	resp := env.request(t, http.MethodPost,
		"/api/admin/accounts/"+target.ID.String()+"/suspend",
		env.token(t, student),
		map[string]string{"reason": "policy violation"},
	)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var fresh models.Account
	require.NoError(t, env.db.First(&fresh, "id = ?", target.ID).Error)
	assert.Nil(t, fresh.SuspendedAt)
	assert.Zero(t, env.auditCount(t))
}

func TestSuspendWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	target := env.seedAccount(t, models.RoleStudent, "Student")

	resp := env.request(t, http.MethodPost,
		"/api/admin/accounts/"+target.ID.String()+"/suspend",
		"",
		map[string]string{"reason": "policy violation"},
	)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, env.auditCount(t))
}

func TestSuspendedAdminLosesAccess(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAccount(t, models.RoleAdmin, "Admin")
	token := env.token(t, admin)

	now := time.Now().UTC()
	require.NoError(t, env.db.Model(admin).Update("suspended_at", now).Error)

	resp := env.request(t, http.MethodGet, "/api/admin/accounts", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDoubleRefundRejected(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAccount(t, models.RoleAdmin, "Admin")
	student := env.seedAccount(t, models.RoleStudent, "Student")
	canteen := env.seedCanteen(t)
	item := env.seedMenuItem(t, canteen, "Masala Dosa", "60.00")

	// Paid order, refund it once.
	token := env.token(t, student)
	resp := env.request(t, http.MethodPost, "/api/orders", token, map[string]interface{}{
		"canteen_id": canteen.ID,
		"items": []map[string]interface{}{
			{"menu_item_id": item.ID, "quantity": 2},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := decodeBody(t, resp)["id"].(string)

	resp = env.request(t, http.MethodPost, "/api/orders/"+orderID+"/payment", token,
		map[string]string{"payment_ref": "pay_123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	adminToken := env.token(t, admin)
	resp = env.request(t, http.MethodPost, "/api/admin/orders/"+orderID+"/refund", adminToken,
		map[string]string{"reason": "order never delivered"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var order models.Order
	require.NoError(t, env.db.First(&order, "id = ?", orderID).Error)
	require.Equal(t, models.PaymentRefunded, order.PaymentStatus)
	firstRefund := string(order.RefundDetails)
	countAfterFirst := env.auditCount(t)

	// Second refund must be rejected with nothing written.
	resp = env.request(t, http.MethodPost, "/api/admin/orders/"+orderID+"/refund", adminToken,
		map[string]string{"reason": "double dip"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.NoError(t, env.db.First(&order, "id = ?", orderID).Error)
	assert.Equal(t, firstRefund, string(order.RefundDetails))
	assert.Equal(t, countAfterFirst, env.auditCount(t))
}

func TestForceLogoutInvalidatesTokens(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAccount(t, models.RoleAdmin, "Admin")
	student := env.seedAccount(t, models.RoleStudent, "Student")

	oldToken := env.token(t, student)
	resp := env.request(t, http.MethodGet, "/api/auth/me", oldToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodPost,
		"/api/admin/accounts/"+student.ID.String()+"/force-logout",
		env.token(t, admin),
		map[string]string{"reason": "credential leak"},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/auth/me", oldToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChangeRoleRecordsAudit(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAccount(t, models.RoleAdmin, "Admin")
	target := env.seedAccount(t, models.RoleStudent, "Student")

	resp := env.request(t, http.MethodPut,
		"/api/admin/accounts/"+target.ID.String()+"/role",
		env.token(t, admin),
		map[string]string{"role": models.RoleStaff, "reason": "joined canteen staff"},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec models.AuditRecord
	require.NoError(t, env.db.First(&rec).Error)
	assert.Equal(t, models.ActionSystemRoleChange, rec.ActionKind)

	var before, after map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.BeforeSnapshot, &before))
	require.NoError(t, json.Unmarshal(rec.AfterSnapshot, &after))
	assert.Equal(t, models.RoleStudent, before["role"])
	assert.Equal(t, models.RoleStaff, after["role"])
}

func TestMenuPriceChangeAppendsHistory(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAccount(t, models.RoleAdmin, "Admin")
	canteen := env.seedCanteen(t)
	item := env.seedMenuItem(t, canteen, "Filter Coffee", "20.00")

	adminToken := env.token(t, admin)
	resp := env.request(t, http.MethodPost,
		"/api/admin/menu-items/"+item.ID.String()+"/price",
		adminToken,
		map[string]string{"price": "25.00", "reason": "milk price hike"},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fresh models.MenuItem
	require.NoError(t, env.db.First(&fresh, "id = ?", item.ID).Error)
	assert.Equal(t, "25", fresh.Price.String())

	var history []models.PriceChange
	require.NoError(t, json.Unmarshal(fresh.PriceHistory, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "25", history[0].Price.String())
	assert.Equal(t, admin.ID, history[0].ChangedBy)

	// Unchanged price is rejected and leaves no extra record.
	countBefore := env.auditCount(t)
	resp = env.request(t, http.MethodPost,
		"/api/admin/menu-items/"+item.ID.String()+"/price",
		adminToken,
		map[string]string{"price": "25.00"},
	)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, countBefore, env.auditCount(t))
}

func TestAuditListFiltering(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAccount(t, models.RoleAdmin, "Admin")
	target := env.seedAccount(t, models.RoleStudent, "Student")
	adminToken := env.token(t, admin)

	resp := env.request(t, http.MethodPost,
		"/api/admin/accounts/"+target.ID.String()+"/suspend",
		adminToken,
		map[string]string{"reason": "policy violation"},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.request(t, http.MethodPost,
		"/api/admin/accounts/"+target.ID.String()+"/reactivate",
		adminToken,
		map[string]string{"reason": "appeal accepted"},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet,
		"/api/admin/audit?action=account.suspend", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 1, body["total"])

	resp = env.request(t, http.MethodGet,
		"/api/admin/audit?actor="+admin.ID.String(), adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.EqualValues(t, 2, body["total"])
}
