package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/soclab/mitigator/cmd/manager/container"
	"github.com/soclab/mitigator/cmd/manager/handlers"
)

// RegisterGraphRoutes registers the attack graph admin routes
func RegisterGraphRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewGraphHandler(c.Store, c.Components.Logger)

	e.GET("/graph", h.GetGraphs) // GET /graph or /graph?id=123
	e.POST("/graph", h.PostGraph)
}
