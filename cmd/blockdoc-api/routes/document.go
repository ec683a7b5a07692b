package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/container"
	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/handlers"
	"github.com/blockdoc/blockdoc/common/middleware"
)

// RegisterDocumentRoutes registers document submission and retrieval routes
func RegisterDocumentRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewDocumentHandler(c)

	cfg := c.Components.Config.Service
	uploadLimit := middleware.UploadRateLimitMiddleware(c.RateLimiter, cfg.UploadRateLimit, cfg.UploadRateWindow)

	docs := e.Group("/api/v1/documents")
	{
		docs.POST("", h.Upload, uploadLimit)     // POST /api/v1/documents
		docs.GET("", h.List)                     // GET /api/v1/documents
		docs.GET("/:id", h.Get)                  // GET /api/v1/documents/{id}
		docs.GET("/:id/download", h.Download)    // GET /api/v1/documents/{id}/download
	}
}
