package routes

import (
	"github.com/canteenhq/campuseats/internal/config"
	"github.com/canteenhq/campuseats/internal/handlers"
	"github.com/canteenhq/campuseats/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authHandler *handlers.AuthHandler,
	systemHandler *handlers.SystemHandler,
	canteenHandler *handlers.CanteenHandler,
	orderHandler *handlers.OrderHandler,
	reviewHandler *handlers.ReviewHandler,
	adminAccountHandler *handlers.AdminAccountHandler,
	adminCanteenHandler *handlers.AdminCanteenHandler,
	adminMenuHandler *handlers.AdminMenuHandler,
	adminOrderHandler *handlers.AdminOrderHandler,
	adminReviewHandler *handlers.AdminReviewHandler,
	adminSystemHandler *handlers.AdminSystemHandler,
	auditHandler *handlers.AuditHandler,
) {
	// ─── Public ──────────────────────────────────────────────────────────
	app.Get("/api/health", systemHandler.Health)
	app.Get("/api/config", systemHandler.ClientConfig)

	app.Post("/api/auth/register", authHandler.Register)
	app.Post("/api/auth/login", authHandler.Login)
	app.Post("/api/auth/refresh", authHandler.Refresh)

	app.Get("/api/canteens", canteenHandler.ListCanteens)
	app.Get("/api/canteens/:id", canteenHandler.GetCanteen)
	app.Get("/api/canteens/:id/menu", canteenHandler.GetMenu)
	app.Get("/api/canteens/:id/reviews", reviewHandler.ListCanteenReviews)

	// ─── Authenticated ───────────────────────────────────────────────────
	api := app.Group("/api", middleware.JWTProtected(cfg.JWTSecret), middleware.AccountGuard(db))

	api.Get("/auth/me", authHandler.Me)
	api.Put("/auth/password", authHandler.ChangePassword)

	api.Post("/orders", orderHandler.CreateOrder)
	api.Get("/orders", orderHandler.ListMyOrders)
	api.Get("/orders/:id", orderHandler.GetOrder)
	api.Post("/orders/:id/payment", orderHandler.ConfirmPayment)

	api.Post("/reviews", reviewHandler.CreateReview)
	api.Put("/reviews/:id", reviewHandler.UpdateReview)

	// ─── Admin control plane ─────────────────────────────────────────────
	admin := api.Group("/admin", middleware.AdminOnly(db))

	// Accounts
	admin.Get("/accounts", adminAccountHandler.ListAccounts)
	admin.Post("/accounts", adminAccountHandler.CreateAccount)
	admin.Put("/accounts/:id", adminAccountHandler.UpdateAccount)
	admin.Delete("/accounts/:id", adminAccountHandler.DeleteAccount)
	admin.Post("/accounts/:id/suspend", adminAccountHandler.SuspendAccount)
	admin.Post("/accounts/:id/reactivate", adminAccountHandler.ReactivateAccount)
	admin.Post("/accounts/:id/force-logout", adminAccountHandler.ForceLogout)
	admin.Post("/accounts/:id/reset-password", adminAccountHandler.ResetPassword)
	admin.Put("/accounts/:id/role", adminAccountHandler.ChangeRole)

	// Canteens
	admin.Get("/canteens", adminCanteenHandler.ListCanteens)
	admin.Post("/canteens", adminCanteenHandler.CreateCanteen)
	admin.Put("/canteens/:id", adminCanteenHandler.UpdateCanteen)
	admin.Delete("/canteens/:id", adminCanteenHandler.DeleteCanteen)
	admin.Post("/canteens/:id/approve", adminCanteenHandler.ApproveCanteen)
	admin.Post("/canteens/:id/reject", adminCanteenHandler.RejectCanteen)
	admin.Post("/canteens/:id/suspend", adminCanteenHandler.SuspendCanteen)
	admin.Post("/canteens/:id/ordering", adminCanteenHandler.ToggleOrdering)

	// Menu items
	admin.Post("/menu-items", adminMenuHandler.CreateItem)
	admin.Put("/menu-items/:id", adminMenuHandler.UpdateItem)
	admin.Delete("/menu-items/:id", adminMenuHandler.DeleteItem)
	admin.Post("/menu-items/:id/stock", adminMenuHandler.ToggleStock)
	admin.Post("/menu-items/:id/price", adminMenuHandler.ChangePrice)
	admin.Post("/menu-items/bulk-stock", adminMenuHandler.BulkUpdateStock)

	// Orders
	admin.Get("/orders", adminOrderHandler.ListOrders)
	admin.Post("/orders/:id/status", adminOrderHandler.OverrideStatus)
	admin.Post("/orders/:id/cancel", adminOrderHandler.CancelOrder)
	admin.Post("/orders/:id/refund", adminOrderHandler.RefundOrder)
	admin.Post("/orders/:id/reassign", adminOrderHandler.ReassignOrder)
	admin.Post("/orders/:id/payment", adminOrderHandler.OverridePayment)

	// Reviews
	admin.Get("/reviews", adminReviewHandler.ListReviews)
	admin.Put("/reviews/:id", adminReviewHandler.EditReview)
	admin.Delete("/reviews/:id", adminReviewHandler.DeleteReview)
	admin.Post("/reviews/:id/flag", adminReviewHandler.ToggleFlag)
	admin.Post("/reviews/:id/lock", adminReviewHandler.LockReview)
	admin.Post("/reviews/:id/rating", adminReviewHandler.OverrideRating)

	// System settings
	admin.Get("/settings", adminSystemHandler.ListConfig)
	admin.Put("/settings/:key", adminSystemHandler.SetConfig)
	admin.Post("/flags/:key/toggle", adminSystemHandler.ToggleFeatureFlag)
	admin.Post("/maintenance/toggle", adminSystemHandler.ToggleMaintenance)

	// Audit trail (read-only)
	admin.Get("/audit", auditHandler.ListRecords)
	admin.Use("/audit/stream", auditHandler.StreamUpgrade())
	admin.Get("/audit/stream", auditHandler.Stream())
}
