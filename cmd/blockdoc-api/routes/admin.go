package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/container"
	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/handlers"
)

// RegisterAdminRoutes registers operator recovery and diagnostics routes
func RegisterAdminRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewAdminHandler(c)

	admin := e.Group("/api/v1/admin")
	{
		admin.POST("/documents/:id/register", h.Register)   // POST /api/v1/admin/documents/{id}/register
		admin.GET("/documents/:id/timestamp", h.Timestamp)  // GET /api/v1/admin/documents/{id}/timestamp
		admin.GET("/blockchain/status", h.Status)           // GET /api/v1/admin/blockchain/status
		admin.GET("/blockchain/balance", h.Balance)         // GET /api/v1/admin/blockchain/balance
	}
}
