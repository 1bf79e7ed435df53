package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/soclab/mitigator/cmd/manager/models"
	"github.com/soclab/mitigator/cmd/manager/repository"
	"github.com/soclab/mitigator/common/logger"
)

// WorkflowHandler manages stored workflows.
type WorkflowHandler struct {
	store *repository.StateStore
	log   *logger.Logger
}

// NewWorkflowHandler creates a workflow handler.
func NewWorkflowHandler(store *repository.StateStore, log *logger.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		store: store,
		log:   log,
	}
}

type workflowBody struct {
	Identifier       int64          `json:"identifier"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	URL              string         `json:"url"`
	EffectiveAttacks []string       `json:"effective_attacks"`
	Cost             int            `json:"cost"`
	Params           map[string]any `json:"params"`
	Args             map[string]any `json:"args"`
	Conditions       []int64        `json:"conditions"`
}

// GetWorkflow retrieves a workflow by id.
// GET /workflow?id=123
func (h *WorkflowHandler) GetWorkflow(c echo.Context) error {
	id, err := queryID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	workflow, err := h.store.RetrieveWorkflow(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if workflow == nil {
		return c.NoContent(http.StatusNotFound)
	}

	conditions := make([]int64, len(workflow.Conditions))
	for i, cond := range workflow.Conditions {
		conditions[i] = cond.Identifier
	}
	return c.JSON(http.StatusOK, map[string]any{
		"identifier":        workflow.Identifier,
		"name":              workflow.Name,
		"description":       workflow.Description,
		"url":               workflow.URL,
		"effective_attacks": workflow.EffectiveAttacks,
		"cost":              workflow.Cost,
		"params":            workflow.Params,
		"args":              workflow.Args,
		"conditions":        conditions,
	})
}

// PostWorkflow stores a workflow. Condition references don't have to
// resolve yet, they are looked up on retrieval.
// POST /workflow
func (h *WorkflowHandler) PostWorkflow(c echo.Context) error {
	var body workflowBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}

	conditions := make([]*models.Condition, len(body.Conditions))
	for i, id := range body.Conditions {
		conditions[i] = &models.Condition{Identifier: id}
	}

	h.log.Info("storing workflow", "workflow_id", body.Identifier, "name", body.Name)
	err := h.store.StoreWorkflow(c.Request().Context(), &models.Workflow{
		Identifier:       body.Identifier,
		Name:             body.Name,
		Description:      body.Description,
		URL:              body.URL,
		EffectiveAttacks: body.EffectiveAttacks,
		Cost:             body.Cost,
		Params:           body.Params,
		Args:             body.Args,
		Conditions:       conditions,
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}
