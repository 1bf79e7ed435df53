package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclab/mitigator/cmd/manager/models"
)

func TestParseChecks(t *testing.T) {
	checks, err := parseChecks([]any{"ANY_RESULT", float64(1)})
	require.NoError(t, err)
	assert.Equal(t, []models.CheckKind{models.CheckAnyResult, models.CheckAllParamsInAnyRow}, checks)

	_, err = parseChecks([]any{"NO_SUCH_CHECK"})
	assert.Error(t, err)

	_, err = parseChecks([]any{true})
	assert.Error(t, err)
}

func TestCheckNames(t *testing.T) {
	names := checkNames([]models.CheckKind{models.CheckAnyResult, models.CheckAnyParamInAllRows})
	assert.Equal(t, []string{"ANY_RESULT", "ANY_PARAM_IN_ALL_ROWS"}, names)
}

func TestQueryID(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/condition?id=42", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	id, err := queryID(c)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	req = httptest.NewRequest(http.MethodGet, "/condition", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	_, err = queryID(c)
	assert.Error(t, err)

	req = httptest.NewRequest(http.MethodGet, "/condition?id=abc", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	_, err = queryID(c)
	assert.Error(t, err)
}
