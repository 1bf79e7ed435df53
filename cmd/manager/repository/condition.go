package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/soclab/mitigator/cmd/manager/models"
)

const conditionColumns = `identifier, condition_name, condition_description, params, args, query, checks, expression`

// StoreCondition inserts or updates a condition.
func (s *StateStore) StoreCondition(ctx context.Context, c *models.Condition) error {
	params, err := marshalMap(c.Params)
	if err != nil {
		return fmt.Errorf("condition %d params: %w", c.Identifier, err)
	}
	args, err := marshalMap(c.Args)
	if err != nil {
		return fmt.Errorf("condition %d args: %w", c.Identifier, err)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO Conditions (identifier, condition_name, condition_description, params, args, query, checks, expression)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (identifier) DO UPDATE SET
			condition_name = EXCLUDED.condition_name,
			condition_description = EXCLUDED.condition_description,
			params = EXCLUDED.params,
			args = EXCLUDED.args,
			query = EXCLUDED.query,
			checks = EXCLUDED.checks,
			expression = EXCLUDED.expression`,
		c.Identifier, c.Name, c.Description, params, args, c.Query, joinChecks(c.Checks), c.Expression)
	if err != nil {
		return fmt.Errorf("store condition %d: %w", c.Identifier, err)
	}
	return nil
}

// RetrieveCondition loads a condition by identifier. Returns (nil, nil)
// when no such condition exists.
func (s *StateStore) RetrieveCondition(ctx context.Context, identifier int64) (*models.Condition, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+conditionColumns+` FROM Conditions WHERE identifier = $1`, identifier)
	c, err := scanCondition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve condition %d: %w", identifier, err)
	}
	return c, nil
}

// retrieveConditions resolves a list of condition identifiers,
// skipping identifiers that don't resolve.
func (s *StateStore) retrieveConditions(ctx context.Context, identifiers []int64) ([]*models.Condition, error) {
	conditions := make([]*models.Condition, 0, len(identifiers))
	for _, id := range identifiers {
		c, err := s.RetrieveCondition(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			s.log.Warn("condition reference does not resolve, skipping", "condition_id", id)
			continue
		}
		conditions = append(conditions, c)
	}
	return conditions, nil
}

func scanCondition(row pgx.Row) (*models.Condition, error) {
	var (
		c            models.Condition
		params, args string
		checks       *string
		expression   *string
	)
	err := row.Scan(&c.Identifier, &c.Name, &c.Description, &params, &args, &c.Query, &checks, &expression)
	if err != nil {
		return nil, err
	}
	if c.Params, err = unmarshalMap(params); err != nil {
		return nil, fmt.Errorf("condition %d params: %w", c.Identifier, err)
	}
	if c.Args, err = unmarshalMap(args); err != nil {
		return nil, fmt.Errorf("condition %d args: %w", c.Identifier, err)
	}
	if c.Checks, err = splitChecks(checks); err != nil {
		return nil, fmt.Errorf("condition %d checks: %w", c.Identifier, err)
	}
	if expression != nil {
		c.Expression = *expression
	}
	return &c, nil
}
