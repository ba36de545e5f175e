package handlers_test

import (
	"net/http"
	"testing"

	"github.com/canteenhq/campuseats/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutPricesServerSide(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedAccount(t, models.RoleStudent, "Student")
	canteen := env.seedCanteen(t)
	dosa := env.seedMenuItem(t, canteen, "Masala Dosa", "60.00")
	coffee := env.seedMenuItem(t, canteen, "Filter Coffee", "20.00")

	resp := env.request(t, http.MethodPost, "/api/orders", env.token(t, student), map[string]interface{}{
		"canteen_id": canteen.ID,
		"items": []map[string]interface{}{
			{"menu_item_id": dosa.ID, "quantity": 2},
			{"menu_item_id": coffee.ID, "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "140", body["total"])
	assert.Equal(t, models.OrderPlaced, body["status"])
	assert.Equal(t, models.PaymentPending, body["payment_status"])
}

func TestCheckoutRejectsOutOfStockItem(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedAccount(t, models.RoleStudent, "Student")
	canteen := env.seedCanteen(t)
	dosa := env.seedMenuItem(t, canteen, "Masala Dosa", "60.00")
	require.NoError(t, env.db.Model(dosa).Update("in_stock", false).Error)

	resp := env.request(t, http.MethodPost, "/api/orders", env.token(t, student), map[string]interface{}{
		"canteen_id": canteen.ID,
		"items": []map[string]interface{}{
			{"menu_item_id": dosa.ID, "quantity": 1},
		},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCheckoutRejectsSuspendedCanteen(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAccount(t, models.RoleAdmin, "Admin")
	student := env.seedAccount(t, models.RoleStudent, "Student")
	canteen := env.seedCanteen(t)
	dosa := env.seedMenuItem(t, canteen, "Masala Dosa", "60.00")

	resp := env.request(t, http.MethodPost,
		"/api/admin/canteens/"+canteen.ID.String()+"/suspend",
		env.token(t, admin),
		map[string]string{"reason": "hygiene inspection"},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/orders", env.token(t, student), map[string]interface{}{
		"canteen_id": canteen.ID,
		"items": []map[string]interface{}{
			{"menu_item_id": dosa.ID, "quantity": 1},
		},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMaintenanceModeBlocksCheckout(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAccount(t, models.RoleAdmin, "Admin")
	student := env.seedAccount(t, models.RoleStudent, "Student")
	canteen := env.seedCanteen(t)
	dosa := env.seedMenuItem(t, canteen, "Masala Dosa", "60.00")

	resp := env.request(t, http.MethodPost, "/api/admin/maintenance/toggle",
		env.token(t, admin), map[string]string{"reason": "semester-end upgrade"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The toggle itself is audited.
	var rec models.AuditRecord
	require.NoError(t, env.db.First(&rec).Error)
	assert.Equal(t, models.ActionSystemMaintenanceToggle, rec.ActionKind)
	assert.Equal(t, models.EntitySystemConfig, rec.EntityKind)

	resp = env.request(t, http.MethodPost, "/api/orders", env.token(t, student), map[string]interface{}{
		"canteen_id": canteen.ID,
		"items": []map[string]interface{}{
			{"menu_item_id": dosa.ID, "quantity": 1},
		},
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Toggling again reopens ordering.
	resp = env.request(t, http.MethodPost, "/api/admin/maintenance/toggle",
		env.token(t, admin), map[string]string{"reason": "upgrade done"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/orders", env.token(t, student), map[string]interface{}{
		"canteen_id": canteen.ID,
		"items": []map[string]interface{}{
			{"menu_item_id": dosa.ID, "quantity": 1},
		},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestPaymentConfirmOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedAccount(t, models.RoleStudent, "Student")
	canteen := env.seedCanteen(t)
	dosa := env.seedMenuItem(t, canteen, "Masala Dosa", "60.00")

	token := env.token(t, student)
	resp := env.request(t, http.MethodPost, "/api/orders", token, map[string]interface{}{
		"canteen_id": canteen.ID,
		"items": []map[string]interface{}{
			{"menu_item_id": dosa.ID, "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := decodeBody(t, resp)["id"].(string)

	resp = env.request(t, http.MethodPost, "/api/orders/"+orderID+"/payment", token,
		map[string]string{"payment_ref": "pay_123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/orders/"+orderID+"/payment", token,
		map[string]string{"payment_ref": "pay_456"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var order models.Order
	require.NoError(t, env.db.First(&order, "id = ?", orderID).Error)
	assert.Equal(t, "pay_123", order.PaymentRef)
}
