// internal/app/router.go
package app

import (
	customerHandler "erp-sync-service/internal/handlers/customer"
	erpHandler "erp-sync-service/internal/handlers/erp"
	syncHandler "erp-sync-service/internal/handlers/sync"
	wsHandler "erp-sync-service/internal/handlers/websocket"
	"erp-sync-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	SyncHandler     *syncHandler.SyncHandler
	CustomerHandler *customerHandler.CustomerHandler
	ERPHandler      *erpHandler.ERPHandler
	WSHandler       *wsHandler.WebSocketHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	api.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Sync ====================
	syncAdmin := api.Group("/sync")
	syncAdmin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		syncAdmin.POST("/customers", h.SyncHandler.TriggerCustomers)
		syncAdmin.POST("/orders", h.SyncHandler.TriggerOrders)
		syncAdmin.GET("/session", h.SyncHandler.SessionStatus)
		syncAdmin.DELETE("/session", h.SyncHandler.InvalidateSession)
	}

	syncRead := api.Group("/sync")
	syncRead.Use(h.AuthMiddleware.Auth())
	{
		syncRead.GET("/runs", h.SyncHandler.ListRuns)
		syncRead.GET("/runs/:id", h.SyncHandler.GetRun)
	}

	// ==================== Customer Avatars ====================
	customers := api.Group("/customers")
	customers.Use(h.AuthMiddleware.Auth())
	{
		customers.GET("", h.CustomerHandler.ListCustomers)
		customers.GET("/stats", h.CustomerHandler.GetStats)
		customers.GET("/:remote_id", h.CustomerHandler.GetCustomer)
	}

	// ==================== ERP Pass-through ====================
	erp := api.Group("/erp")
	erp.Use(h.AuthMiddleware.Auth())
	{
		erp.GET("/batches", h.ERPHandler.ListBatches)
		erp.GET("/batches/:id/move-lines", h.ERPHandler.ListMoveLines)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}
