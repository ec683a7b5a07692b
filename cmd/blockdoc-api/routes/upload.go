package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/container"
	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/handlers"
	"github.com/blockdoc/blockdoc/common/middleware"
)

// RegisterUploadRoutes registers chunked upload session routes
func RegisterUploadRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewUploadHandler(c)

	cfg := c.Components.Config.Service
	uploadLimit := middleware.UploadRateLimitMiddleware(c.RateLimiter, cfg.UploadRateLimit, cfg.UploadRateWindow)

	uploads := e.Group("/api/v1/uploads")
	{
		uploads.POST("", h.Init, uploadLimit)              // POST /api/v1/uploads
		uploads.PUT("/:id/chunks/:index", h.Chunk)         // PUT /api/v1/uploads/{id}/chunks/{index}
		uploads.POST("/:id/complete", h.Complete)          // POST /api/v1/uploads/{id}/complete
		uploads.DELETE("/:id", h.Discard)                  // DELETE /api/v1/uploads/{id}
	}
}
