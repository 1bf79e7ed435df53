package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/soclab/mitigator/cmd/manager/models"
	"github.com/soclab/mitigator/common/clients"
	"github.com/soclab/mitigator/common/logger"
)

// WorkflowExecutor invokes remediation workflows over HTTP.
type WorkflowExecutor struct {
	http    *clients.HTTPClient
	checker models.ConditionChecker
	timeout time.Duration
	log     *logger.Logger
}

// NewWorkflowExecutor creates a workflow executor.
func NewWorkflowExecutor(httpClient *clients.HTTPClient, checker models.ConditionChecker, timeout time.Duration, log *logger.Logger) *WorkflowExecutor {
	return &WorkflowExecutor{
		http:    httpClient,
		checker: checker,
		timeout: timeout,
		log:     log,
	}
}

// Executable reports whether every workflow condition is met for the
// alert.
func (e *WorkflowExecutor) Executable(ctx context.Context, w *models.Workflow, alert *models.Alert) (bool, error) {
	for _, c := range w.Conditions {
		ok, err := e.checker.Check(ctx, c, alert)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Execute builds the workflow's request body from the alert and POSTs
// it to the workflow endpoint. On a 200 response the workflow is
// marked executed and the response body kept as its results.
func (e *WorkflowExecutor) Execute(ctx context.Context, w *models.Workflow, alert *models.Alert) (bool, error) {
	body, ok := w.RequestBody(alert)
	if !ok {
		e.log.Warn("workflow arguments can't be resolved from the alert, not executing",
			"workflow_id", w.Identifier, "name", w.Name)
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.log.Debug("executing workflow", "workflow_id", w.Identifier, "name", w.Name, "url", w.URL)
	resp, err := e.http.PostJSON(ctx, w.URL, body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		e.log.Debug("workflow request failed",
			"workflow_id", w.Identifier, "status", resp.StatusCode, "body", string(text))
		w.Executed = false
		return false, nil
	}

	var results map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		e.log.Warn("workflow response is not valid JSON", "workflow_id", w.Identifier, "error", err)
		results = nil
	}
	w.Results = results
	w.Executed = true
	return true, nil
}
