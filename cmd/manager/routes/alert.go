// Package routes registers the manager's HTTP routes.
package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/soclab/mitigator/cmd/manager/container"
	"github.com/soclab/mitigator/cmd/manager/handlers"
)

// RegisterAlertRoutes registers the alert ingest and version routes
func RegisterAlertRoutes(e *echo.Echo, c *container.Container) {
	alert := handlers.NewAlertHandler(c.Ingest, c.Components.Logger)
	version := handlers.NewVersionHandler()

	e.POST("/alert", alert.PostAlert)
	e.GET("/version", version.GetVersion)
}
