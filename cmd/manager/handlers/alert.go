package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/soclab/mitigator/cmd/manager/models"
	"github.com/soclab/mitigator/common/logger"
)

// Ingestor processes one parsed alert.
type Ingestor interface {
	Ingest(ctx context.Context, alert *models.Alert) ([]*models.Attack, error)
}

// AlertHandler accepts alerts over HTTP.
type AlertHandler struct {
	ingestor Ingestor
	log      *logger.Logger
}

// NewAlertHandler creates an alert handler.
func NewAlertHandler(ingestor Ingestor, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		ingestor: ingestor,
		log:      log,
	}
}

// PostAlert processes an incoming alert.
// POST /alert
func (h *AlertHandler) PostAlert(c echo.Context) error {
	var raw map[string]any
	if err := c.Bind(&raw); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}

	log := h.log.WithIngestID(uuid.NewString())
	log.Info("received new alert")

	alert, err := models.ParseAlert(raw)
	if err != nil {
		var invalid *models.InvalidAlertError
		if errors.As(err, &invalid) {
			log.Warn("malformed alert rejected", "error", err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return err
	}

	if _, err := h.ingestor.Ingest(c.Request().Context(), alert); err != nil {
		log.Error("alert ingest failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "alert processing failed"})
	}
	return c.NoContent(http.StatusOK)
}
