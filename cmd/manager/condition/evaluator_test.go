package condition

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclab/mitigator/cmd/manager/models"
	"github.com/soclab/mitigator/common/logger"
)

// fakeQuerier records queries and serves canned rows.
type fakeQuerier struct {
	rows    []map[string]any
	err     error
	queries []string
	params  []map[string]any
}

func (f *fakeQuerier) RunQuery(_ context.Context, query string, parameters map[string]any) ([]map[string]any, error) {
	f.queries = append(f.queries, query)
	f.params = append(f.params, parameters)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

func testAlert(t *testing.T) *models.Alert {
	t.Helper()
	alert, err := models.ParseAlert(map[string]any{
		"agent": map[string]any{"ip": "192.168.1.5"},
	})
	require.NoError(t, err)
	return alert
}

func TestCheck_BindsParametersIntoQuery(t *testing.T) {
	q := &fakeQuerier{rows: []map[string]any{{"ip": "192.168.1.5"}}}
	e := NewEvaluator(q, testLogger())

	c := &models.Condition{
		Identifier: 1,
		Params:     map[string]any{"port": 22},
		Args:       map[string]any{"ip": "agent_ip"},
		Query:      "MATCH (h:Host {ip: $ip}) RETURN h.ip AS ip",
		Checks:     []models.CheckKind{models.CheckAnyResult},
	}

	ok, err := e.Check(context.Background(), c, testAlert(t))
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, q.params, 1)
	assert.Equal(t, "192.168.1.5", q.params[0]["ip"])
	assert.Equal(t, 22, q.params[0]["port"])
}

func TestCheck_IncompleteBindingSkipsQuery(t *testing.T) {
	q := &fakeQuerier{}
	e := NewEvaluator(q, testLogger())

	c := &models.Condition{
		Identifier: 1,
		Args:       map[string]any{"hash": "file_hash"},
		Query:      "MATCH (f:File {hash: $hash}) RETURN f",
	}

	ok, err := e.Check(context.Background(), c, testAlert(t))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, q.queries)
}

func TestCheck_QueryFailureMeansNotMet(t *testing.T) {
	q := &fakeQuerier{err: errors.New("connection refused")}
	e := NewEvaluator(q, testLogger())

	c := &models.Condition{Identifier: 1, Query: "RETURN 1"}
	ok, err := e.Check(context.Background(), c, testAlert(t))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheck_CancellationPropagates(t *testing.T) {
	q := &fakeQuerier{err: context.Canceled}
	e := NewEvaluator(q, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &models.Condition{Identifier: 1, Query: "RETURN 1"}
	_, err := e.Check(ctx, c, testAlert(t))
	require.ErrorIs(t, err, context.Canceled)
}

func TestCheck_ChecksAreConjoined(t *testing.T) {
	q := &fakeQuerier{rows: []map[string]any{{"ip": "10.0.0.9"}}}
	e := NewEvaluator(q, testLogger())

	c := &models.Condition{
		Identifier: 1,
		Args:       map[string]any{"ip": "agent_ip"},
		Query:      "RETURN 1",
		Checks: []models.CheckKind{
			models.CheckAnyResult,
			models.CheckAllParamsInAnyRow, // fails: no row carries the alert's ip
		},
	}

	ok, err := e.Check(context.Background(), c, testAlert(t))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheck_ExpressionOverParamsAndRows(t *testing.T) {
	q := &fakeQuerier{rows: []map[string]any{{"open": true}, {"open": false}}}
	e := NewEvaluator(q, testLogger())

	c := &models.Condition{
		Identifier: 1,
		Query:      "RETURN 1",
		Expression: `rows.exists(r, r.open == true)`,
	}

	ok, err := e.Check(context.Background(), c, testAlert(t))
	require.NoError(t, err)
	assert.True(t, ok)

	c.Expression = `size(rows) > 5`
	ok, err = e.Check(context.Background(), c, testAlert(t))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheck_InvalidExpressionMeansNotMet(t *testing.T) {
	q := &fakeQuerier{rows: []map[string]any{{"x": 1}}}
	e := NewEvaluator(q, testLogger())

	c := &models.Condition{
		Identifier: 1,
		Query:      "RETURN 1",
		Expression: `this is not CEL`,
	}
	ok, err := e.Check(context.Background(), c, testAlert(t))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompiledExpressionsAreCached(t *testing.T) {
	q := &fakeQuerier{rows: []map[string]any{{"x": 1}}}
	e := NewEvaluator(q, testLogger())

	c := &models.Condition{
		Identifier: 1,
		Query:      "RETURN 1",
		Expression: `size(rows) == 1`,
	}

	for i := 0; i < 3; i++ {
		ok, err := e.Check(context.Background(), c, testAlert(t))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, e.CacheSize())
}
