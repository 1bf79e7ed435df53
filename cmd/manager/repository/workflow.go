package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/soclab/mitigator/cmd/manager/models"
)

const workflowColumns = `identifier, workflow_name, workflow_description, url, effective_attacks, cost, params, args, conditions`

// StoreWorkflow inserts or updates a workflow.
func (s *StateStore) StoreWorkflow(ctx context.Context, w *models.Workflow) error {
	params, err := marshalMap(w.Params)
	if err != nil {
		return fmt.Errorf("workflow %d params: %w", w.Identifier, err)
	}
	args, err := marshalMap(w.Args)
	if err != nil {
		return fmt.Errorf("workflow %d args: %w", w.Identifier, err)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO Workflows (identifier, workflow_name, workflow_description, url, effective_attacks, cost, params, args, conditions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (identifier) DO UPDATE SET
			workflow_name = EXCLUDED.workflow_name,
			workflow_description = EXCLUDED.workflow_description,
			url = EXCLUDED.url,
			effective_attacks = EXCLUDED.effective_attacks,
			cost = EXCLUDED.cost,
			params = EXCLUDED.params,
			args = EXCLUDED.args,
			conditions = EXCLUDED.conditions`,
		w.Identifier, w.Name, w.Description, w.URL,
		joinStrings(w.EffectiveAttacks), w.Cost, params, args,
		joinInt64s(conditionIDs(w.Conditions)))
	if err != nil {
		return fmt.Errorf("store workflow %d: %w", w.Identifier, err)
	}
	return nil
}

// RetrieveWorkflow loads a workflow by identifier. Returns (nil, nil)
// when no such workflow exists.
func (s *StateStore) RetrieveWorkflow(ctx context.Context, identifier int64) (*models.Workflow, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM Workflows WHERE identifier = $1`, identifier)
	w, err := s.scanWorkflow(ctx, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve workflow %d: %w", identifier, err)
	}
	return w, nil
}

// RetrieveApplicableWorkflows returns every workflow whose effective
// attacks contain the given technique.
func (s *StateStore) RetrieveApplicableWorkflows(ctx context.Context, technique string) ([]*models.Workflow, error) {
	// The LIKE filter narrows candidates in SQL; exact set membership
	// is decided in Go since effective_attacks is space-separated.
	rows, err := s.q.Query(ctx,
		`SELECT identifier FROM Workflows
		WHERE effective_attacks LIKE '%' || $1 || '%' ORDER BY identifier`, technique)
	if err != nil {
		return nil, fmt.Errorf("query workflows for technique %s: %w", technique, err)
	}
	defer rows.Close()

	var candidates []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan workflow id: %w", err)
		}
		candidates = append(candidates, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	var workflows []*models.Workflow
	for _, id := range candidates {
		w, err := s.RetrieveWorkflow(ctx, id)
		if err != nil {
			return nil, err
		}
		if w != nil && w.Mitigates(technique) {
			workflows = append(workflows, w)
		}
	}
	return workflows, nil
}

func (s *StateStore) scanWorkflow(ctx context.Context, row pgx.Row) (*models.Workflow, error) {
	var (
		w                models.Workflow
		effectiveAttacks *string
		params, args     string
		conditions       *string
	)
	err := row.Scan(&w.Identifier, &w.Name, &w.Description, &w.URL,
		&effectiveAttacks, &w.Cost, &params, &args, &conditions)
	if err != nil {
		return nil, err
	}

	w.EffectiveAttacks = splitStrings(effectiveAttacks)
	if w.Params, err = unmarshalMap(params); err != nil {
		return nil, fmt.Errorf("workflow %d params: %w", w.Identifier, err)
	}
	if w.Args, err = unmarshalMap(args); err != nil {
		return nil, fmt.Errorf("workflow %d args: %w", w.Identifier, err)
	}
	conditionRefs, err := splitInt64s(conditions)
	if err != nil {
		return nil, fmt.Errorf("workflow %d conditions: %w", w.Identifier, err)
	}
	if w.Conditions, err = s.retrieveConditions(ctx, conditionRefs); err != nil {
		return nil, err
	}
	return &w, nil
}
