package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/soclab/mitigator/cmd/manager/models"
)

// NodeRecord is the raw persisted form of an attack node, with chain
// links and condition references by identifier.
type NodeRecord struct {
	Identifier    int64     `json:"identifier"`
	Prv           *int64    `json:"prv"`
	Nxt           *int64    `json:"nxt"`
	Technique     string    `json:"technique"`
	Conditions    []int64   `json:"conditions"`
	Probabilities []float64 `json:"probabilities"`
	Description   string    `json:"description"`
}

// StoreNodeRecord inserts or updates an attack node.
func (s *StateStore) StoreNodeRecord(ctx context.Context, r *NodeRecord) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO AttackNodes (identifier, prv, nxt, technique, conditions, probabilities, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (identifier) DO UPDATE SET
			prv = EXCLUDED.prv,
			nxt = EXCLUDED.nxt,
			technique = EXCLUDED.technique,
			conditions = EXCLUDED.conditions,
			probabilities = EXCLUDED.probabilities,
			description = EXCLUDED.description`,
		r.Identifier, r.Prv, r.Nxt, r.Technique,
		joinInt64s(r.Conditions), joinFloats(r.Probabilities), r.Description)
	if err != nil {
		return fmt.Errorf("store node %d: %w", r.Identifier, err)
	}
	return nil
}

// RetrieveNodeRecord loads a node's raw persisted form. Returns
// (nil, nil) when no such node exists.
func (s *StateStore) RetrieveNodeRecord(ctx context.Context, identifier int64) (*NodeRecord, error) {
	row := s.q.QueryRow(ctx, `
		SELECT identifier, prv, nxt, technique, conditions, probabilities, description
		FROM AttackNodes WHERE identifier = $1`, identifier)

	var (
		r                         NodeRecord
		conditions, probabilities *string
	)
	err := row.Scan(&r.Identifier, &r.Prv, &r.Nxt, &r.Technique, &conditions, &probabilities, &r.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve node %d: %w", identifier, err)
	}
	if r.Conditions, err = splitInt64s(conditions); err != nil {
		return nil, fmt.Errorf("node %d conditions: %w", r.Identifier, err)
	}
	if r.Probabilities, err = splitFloats(probabilities); err != nil {
		return nil, fmt.Errorf("node %d probabilities: %w", r.Identifier, err)
	}
	return &r, nil
}

// RetrieveNode loads a single attack node by identifier, detached
// from its chain. Returns (nil, nil) when no such node exists.
func (s *StateStore) RetrieveNode(ctx context.Context, identifier int64) (*models.AttackNode, error) {
	n, _, _, err := s.retrieveNodeRow(ctx, identifier)
	return n, err
}

// retrieveNodeRow loads a node and its raw prv/nxt links.
func (s *StateStore) retrieveNodeRow(ctx context.Context, identifier int64) (*models.AttackNode, *int64, *int64, error) {
	row := s.q.QueryRow(ctx, `
		SELECT identifier, prv, nxt, technique, conditions, probabilities, description
		FROM AttackNodes WHERE identifier = $1`, identifier)

	var (
		id            int64
		prv, nxt      *int64
		technique     string
		conditions    *string
		probabilities *string
		description   string
	)
	err := row.Scan(&id, &prv, &nxt, &technique, &conditions, &probabilities, &description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("retrieve node %d: %w", identifier, err)
	}

	conditionRefs, err := splitInt64s(conditions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("node %d conditions: %w", id, err)
	}
	resolved, err := s.retrieveConditions(ctx, conditionRefs)
	if err != nil {
		return nil, nil, nil, err
	}
	history, err := splitFloats(probabilities)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("node %d probabilities: %w", id, err)
	}

	return models.NewAttackNode(id, technique, resolved, history, description), prv, nxt, nil
}

// UpdateNodeProbability persists the node's probability history.
func (s *StateStore) UpdateNodeProbability(ctx context.Context, n *models.AttackNode) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE AttackNodes SET probabilities = $1 WHERE identifier = $2`,
		joinFloats(n.ProbabilityHistory), n.Identifier)
	if err != nil {
		return fmt.Errorf("update node %d probability: %w", n.Identifier, err)
	}
	if tag.RowsAffected() == 0 {
		return invalidState("node %d does not exist", n.Identifier)
	}
	return nil
}

// RetrieveFullGraph rebuilds the node chain starting at the initial
// node, following the persisted nxt links. When attackID is non-nil
// the returned node is that attack's front, otherwise the initial
// node. The chain must be well formed: every link must resolve, no
// node may have two successors, the chain must be acyclic and the
// front must belong to it.
func (s *StateStore) RetrieveFullGraph(ctx context.Context, initial *models.AttackNode, attackID *int64) (*models.AttackNode, error) {
	frontID := initial.Identifier
	if attackID != nil {
		row := s.q.QueryRow(ctx,
			`SELECT attack_front FROM Attacks WHERE identifier = $1`, *attackID)
		if err := row.Scan(&frontID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, invalidState("attack %d does not exist", *attackID)
			}
			return nil, fmt.Errorf("retrieve attack %d front: %w", *attackID, err)
		}
	}

	stored, _, nxt, err := s.retrieveNodeRow(ctx, initial.Identifier)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, invalidState("initial node %d does not exist", initial.Identifier)
	}

	visited := map[int64]bool{initial.Identifier: true}
	current := initial
	var front *models.AttackNode
	if initial.Identifier == frontID {
		front = initial
	}

	for nxt != nil {
		if visited[*nxt] {
			return nil, invalidState("graph chain at node %d contains a cycle", *nxt)
		}
		if err := s.assertSingleSuccessor(ctx, current.Identifier); err != nil {
			return nil, err
		}

		node, _, next, err := s.retrieveNodeRow(ctx, *nxt)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, invalidState("node %d references missing successor %d", current.Identifier, *nxt)
		}

		current = current.Then(node)
		visited[node.Identifier] = true
		if node.Identifier == frontID {
			front = node
		}
		nxt = next
	}

	if front == nil {
		return nil, invalidState("front node %d is not part of graph chain starting at %d",
			frontID, initial.Identifier)
	}
	return front, nil
}

// assertSingleSuccessor guards against a forked chain: at most one
// node may name the given node as its predecessor.
func (s *StateStore) assertSingleSuccessor(ctx context.Context, identifier int64) error {
	var count int
	row := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM AttackNodes WHERE prv = $1`, identifier)
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("count successors of node %d: %w", identifier, err)
	}
	if count > 1 {
		return invalidState("node %d has %d successors", identifier, count)
	}
	return nil
}
