package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/soclab/mitigator/cmd/manager/container"
	"github.com/soclab/mitigator/cmd/manager/handlers"
)

// RegisterConditionRoutes registers the condition admin routes
func RegisterConditionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewConditionHandler(c.Store, c.Components.Logger)

	e.GET("/condition", h.GetCondition)  // GET /condition?id=123
	e.POST("/condition", h.PostCondition)
}
