// Package condition evaluates attack and workflow conditions
// against incoming alerts and the ISIM.
package condition

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/soclab/mitigator/cmd/manager/isim"
	"github.com/soclab/mitigator/cmd/manager/models"
	"github.com/soclab/mitigator/common/logger"
)

// Evaluator binds alert fields to query parameters, issues the
// condition's ISIM query and applies its declared checks. Compiled
// CEL programs are cached per expression.
type Evaluator struct {
	isim  isim.Querier
	log   *logger.Logger
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewEvaluator creates a condition evaluator.
func NewEvaluator(querier isim.Querier, log *logger.Logger) *Evaluator {
	return &Evaluator{
		isim:  querier,
		log:   log,
		cache: make(map[string]cel.Program),
	}
}

// Check reports whether the condition is met for the alert.
//
// An incomplete parameter binding means the condition is not met and
// no ISIM query is issued. An ISIM failure is logged and treated as
// not met so that ingest continues.
func (e *Evaluator) Check(ctx context.Context, c *models.Condition, alert *models.Alert) (bool, error) {
	params, ok := c.Parameters(alert)
	if !ok {
		e.log.Debug("condition parameters incomplete", "condition_id", c.Identifier, "name", c.Name)
		return false, nil
	}

	rows, err := e.isim.RunQuery(ctx, c.Query, params)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		e.log.Warn("ISIM query failed, condition treated as not met",
			"condition_id", c.Identifier, "name", c.Name, "error", err)
		return false, nil
	}

	for _, kind := range c.Checks {
		if !kind.Evaluate(params, rows) {
			e.log.Debug("condition check failed",
				"condition_id", c.Identifier, "check", kind.String())
			return false, nil
		}
	}

	if c.Expression != "" {
		ok, err := e.evaluateCEL(c.Expression, params, rows)
		if err != nil {
			e.log.Warn("condition expression failed, treated as not met",
				"condition_id", c.Identifier, "error", err)
			return false, nil
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// evaluateCEL evaluates a CEL predicate over the bound parameters and
// the query result rows.
func (e *Evaluator) evaluateCEL(expr string, params map[string]any, rows []map[string]any) (bool, error) {
	e.mu.RLock()
	prg, exists := e.cache[expr]
	e.mu.RUnlock()

	if !exists {
		var err error
		prg, err = e.compileCEL(expr)
		if err != nil {
			return false, err
		}

		e.mu.Lock()
		e.cache[expr] = prg
		e.mu.Unlock()
	}

	// CEL needs []any, not []map[string]any
	rowValues := make([]any, len(rows))
	for i, r := range rows {
		rowValues[i] = r
	}

	out, _, err := prg.Eval(map[string]any{
		"params": params,
		"rows":   rowValues,
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return boolean, got %T", out.Value())
	}
	return result, nil
}

// compileCEL compiles a CEL expression
func (e *Evaluator) compileCEL(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("params", cel.DynType),
		cel.Variable("rows", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return prg, nil
}

// CacheSize returns the number of cached compiled expressions.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
