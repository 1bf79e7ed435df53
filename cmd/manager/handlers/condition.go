package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/soclab/mitigator/cmd/manager/models"
	"github.com/soclab/mitigator/cmd/manager/repository"
	"github.com/soclab/mitigator/common/logger"
)

// queryID extracts the mandatory ?id= query parameter.
func queryID(c echo.Context) (int64, error) {
	raw := c.QueryParam("id")
	if raw == "" {
		return 0, fmt.Errorf("missing id parameter")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id parameter %q", raw)
	}
	return id, nil
}

// ConditionHandler manages stored conditions.
type ConditionHandler struct {
	store *repository.StateStore
	log   *logger.Logger
}

// NewConditionHandler creates a condition handler.
func NewConditionHandler(store *repository.StateStore, log *logger.Logger) *ConditionHandler {
	return &ConditionHandler{
		store: store,
		log:   log,
	}
}

type conditionBody struct {
	Identifier  int64          `json:"identifier"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Params      map[string]any `json:"params"`
	Args        map[string]any `json:"args"`
	Query       string         `json:"query"`
	// Checks accepts symbolic names or integer codes.
	Checks     []any  `json:"checks"`
	Expression string `json:"expression"`
}

// parseChecks resolves a mixed list of symbolic names and integer
// codes into check kinds.
func parseChecks(raw []any) ([]models.CheckKind, error) {
	checks := make([]models.CheckKind, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			k, err := models.ParseCheckKind(t)
			if err != nil {
				return nil, err
			}
			checks = append(checks, k)
		case float64:
			checks = append(checks, models.CheckKind(int(t)))
		default:
			return nil, fmt.Errorf("invalid check element %v", v)
		}
	}
	return checks, nil
}

func checkNames(checks []models.CheckKind) []string {
	names := make([]string, len(checks))
	for i, k := range checks {
		names[i] = k.String()
	}
	return names
}

// GetCondition retrieves a condition by id.
// GET /condition?id=123
func (h *ConditionHandler) GetCondition(c echo.Context) error {
	id, err := queryID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	condition, err := h.store.RetrieveCondition(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if condition == nil {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"identifier":  condition.Identifier,
		"name":        condition.Name,
		"description": condition.Description,
		"params":      condition.Params,
		"args":        condition.Args,
		"query":       condition.Query,
		"checks":      checkNames(condition.Checks),
		"expression":  condition.Expression,
	})
}

// PostCondition stores a condition.
// POST /condition
func (h *ConditionHandler) PostCondition(c echo.Context) error {
	var body conditionBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}
	checks, err := parseChecks(body.Checks)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	h.log.Info("storing condition", "condition_id", body.Identifier)
	err = h.store.StoreCondition(c.Request().Context(), &models.Condition{
		Identifier:  body.Identifier,
		Name:        body.Name,
		Description: body.Description,
		Params:      body.Params,
		Args:        body.Args,
		Query:       body.Query,
		Checks:      checks,
		Expression:  body.Expression,
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}
