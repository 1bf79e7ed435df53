package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/soclab/mitigator/cmd/manager/container"
	"github.com/soclab/mitigator/cmd/manager/handlers"
)

// RegisterNodeRoutes registers the attack node admin routes
func RegisterNodeRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewNodeHandler(c.Store, c.Components.Logger)

	e.GET("/node", h.GetNode) // GET /node?id=123
	e.POST("/node", h.PostNode)
}
