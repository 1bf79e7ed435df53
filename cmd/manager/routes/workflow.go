package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/soclab/mitigator/cmd/manager/container"
	"github.com/soclab/mitigator/cmd/manager/handlers"
)

// RegisterWorkflowRoutes registers the workflow admin routes
func RegisterWorkflowRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWorkflowHandler(c.Store, c.Components.Logger)

	e.GET("/workflow", h.GetWorkflow) // GET /workflow?id=123
	e.POST("/workflow", h.PostWorkflow)
}
