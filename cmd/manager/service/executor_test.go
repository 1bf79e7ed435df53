package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclab/mitigator/cmd/manager/models"
	"github.com/soclab/mitigator/common/clients"
	"github.com/soclab/mitigator/common/logger"
)

// staticChecker reports a fixed verdict per condition identifier.
type staticChecker struct {
	met map[int64]bool
	err error
}

func (c *staticChecker) Check(_ context.Context, cond *models.Condition, _ *models.Alert) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.met[cond.Identifier], nil
}

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

func testAlert(t *testing.T) *models.Alert {
	t.Helper()
	alert, err := models.ParseAlert(map[string]any{
		"agent": map[string]any{"ip": "192.168.1.5"},
		"rule": map[string]any{
			"id":    "100003",
			"mitre": map[string]any{"id": []any{"T1059"}},
		},
	})
	require.NoError(t, err)
	return alert
}

func newExecutor(checker models.ConditionChecker) *WorkflowExecutor {
	httpClient := clients.NewHTTPClient(&http.Client{}, testLogger())
	return NewWorkflowExecutor(httpClient, checker, 5*time.Second, testLogger())
}

func TestExecute_SuccessRecordsResults(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received) //nolint:errcheck
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "blocked"}) //nolint:errcheck
	}))
	defer server.Close()

	wf := &models.Workflow{
		Identifier: 1,
		Name:       "block_ip",
		URL:        server.URL,
		Params:     map[string]any{"port": 22},
		Args:       map[string]any{"ip": "agent_ip"},
	}

	executed, err := newExecutor(&staticChecker{}).Execute(context.Background(), wf, testAlert(t))
	require.NoError(t, err)
	assert.True(t, executed)
	assert.True(t, wf.Executed)
	assert.Equal(t, map[string]any{"status": "blocked"}, wf.Results)

	// The request body is the bound params merged over the constants.
	assert.Equal(t, "192.168.1.5", received["ip"])
	assert.Equal(t, float64(22), received["port"])
}

func TestExecute_NonOKStatusIsNotExecuted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "actuator unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	wf := &models.Workflow{Identifier: 1, URL: server.URL}

	executed, err := newExecutor(&staticChecker{}).Execute(context.Background(), wf, testAlert(t))
	require.NoError(t, err)
	assert.False(t, executed)
	assert.False(t, wf.Executed)
}

func TestExecute_UnresolvableArgumentsSkipRequest(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
	}))
	defer server.Close()

	wf := &models.Workflow{
		Identifier: 1,
		URL:        server.URL,
		Args:       map[string]any{"hash": "file_hash"},
	}

	executed, err := newExecutor(&staticChecker{}).Execute(context.Background(), wf, testAlert(t))
	require.NoError(t, err)
	assert.False(t, executed)
	assert.Zero(t, requests)
}

func TestExecutable(t *testing.T) {
	wf := &models.Workflow{
		Identifier: 1,
		Conditions: []*models.Condition{{Identifier: 1}, {Identifier: 2}},
	}

	e := newExecutor(&staticChecker{met: map[int64]bool{1: true, 2: true}})
	ok, err := e.Executable(context.Background(), wf, testAlert(t))
	require.NoError(t, err)
	assert.True(t, ok)

	e = newExecutor(&staticChecker{met: map[int64]bool{1: true, 2: false}})
	ok, err = e.Executable(context.Background(), wf, testAlert(t))
	require.NoError(t, err)
	assert.False(t, ok)
}
