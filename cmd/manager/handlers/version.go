// Package handlers implements the manager's HTTP endpoints.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/soclab/mitigator/common/config"
)

// VersionHandler serves version information.
type VersionHandler struct{}

// NewVersionHandler creates a version handler.
func NewVersionHandler() *VersionHandler {
	return &VersionHandler{}
}

// GetVersion returns the manager's version.
// GET /version
func (h *VersionHandler) GetVersion(c echo.Context) error {
	parts := strings.Split(config.Version, ".")
	major, _ := strconv.Atoi(parts[0])
	minor := 0
	if len(parts) > 1 {
		minor, _ = strconv.Atoi(parts[1])
	}
	return c.JSON(http.StatusOK, map[string]any{
		"version": "v" + config.Version,
		"major":   major,
		"minor":   minor,
	})
}
