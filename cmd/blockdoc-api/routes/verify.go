package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/container"
	"github.com/blockdoc/blockdoc/cmd/blockdoc-api/handlers"
)

// RegisterVerifyRoutes registers the document verification route
func RegisterVerifyRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewVerificationHandler(c)

	e.POST("/api/v1/verify", h.Verify) // POST /api/v1/verify
}
