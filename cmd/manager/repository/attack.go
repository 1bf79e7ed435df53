package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/soclab/mitigator/cmd/manager/models"
)

// GraphRecord is a stored attack graph: a generated identifier and
// the identifier of the chain's initial node.
type GraphRecord struct {
	Identifier  int64 `json:"identifier"`
	InitialNode int64 `json:"initial_node"`
}

// StoreGraph registers a new attack graph rooted at the given node
// and returns its generated identifier.
func (s *StateStore) StoreGraph(ctx context.Context, initialNode int64) (int64, error) {
	var id int64
	row := s.q.QueryRow(ctx,
		`INSERT INTO AttackGraphs (initial_node) VALUES ($1) RETURNING identifier`, initialNode)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("store graph: %w", err)
	}
	return id, nil
}

// RetrieveGraph loads a graph record. Returns (nil, nil) when no such
// graph exists.
func (s *StateStore) RetrieveGraph(ctx context.Context, identifier int64) (*GraphRecord, error) {
	var g GraphRecord
	row := s.q.QueryRow(ctx,
		`SELECT identifier, initial_node FROM AttackGraphs WHERE identifier = $1`, identifier)
	err := row.Scan(&g.Identifier, &g.InitialNode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve graph %d: %w", identifier, err)
	}
	return &g, nil
}

// ListGraphs returns every registered attack graph.
func (s *StateStore) ListGraphs(ctx context.Context) ([]GraphRecord, error) {
	rows, err := s.q.Query(ctx,
		`SELECT identifier, initial_node FROM AttackGraphs ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	defer rows.Close()

	var graphs []GraphRecord
	for rows.Next() {
		var g GraphRecord
		if err := rows.Scan(&g.Identifier, &g.InitialNode); err != nil {
			return nil, fmt.Errorf("scan graph: %w", err)
		}
		graphs = append(graphs, g)
	}
	return graphs, rows.Err()
}

// attackRow is the raw persisted form of a live attack.
type attackRow struct {
	identifier  int64
	attackGraph int64
	attackFront int64
	context     string
}

func (s *StateStore) queryAttackRows(ctx context.Context, sql string, args ...any) ([]attackRow, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query attacks: %w", err)
	}
	defer rows.Close()

	var out []attackRow
	for rows.Next() {
		var r attackRow
		if err := rows.Scan(&r.identifier, &r.attackGraph, &r.attackFront, &r.context); err != nil {
			return nil, fmt.Errorf("scan attack: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// buildAttack materialises an attack row: the graph's chain is
// rebuilt, the front located within it and the context deserialised.
func (s *StateStore) buildAttack(ctx context.Context, r attackRow) (*models.Attack, error) {
	graph, err := s.RetrieveGraph(ctx, r.attackGraph)
	if err != nil {
		return nil, err
	}
	if graph == nil {
		return nil, invalidState("attack %d references missing graph %d", r.identifier, r.attackGraph)
	}

	initial, err := s.RetrieveNode(ctx, graph.InitialNode)
	if err != nil {
		return nil, err
	}
	if initial == nil {
		return nil, invalidState("graph %d references missing initial node %d", graph.Identifier, graph.InitialNode)
	}

	front, err := s.RetrieveFullGraph(ctx, initial, &r.identifier)
	if err != nil {
		return nil, err
	}

	attack := models.NewAttack(r.identifier, front)
	if err := attack.SetContextFromJSON(r.context); err != nil {
		return nil, fmt.Errorf("attack %d: %w", r.identifier, err)
	}
	return attack, nil
}

// RetrieveAttacks loads every live attack with its full graph chain
// and context.
func (s *StateStore) RetrieveAttacks(ctx context.Context) ([]*models.Attack, error) {
	rows, err := s.queryAttackRows(ctx,
		`SELECT identifier, attack_graph, attack_front, context FROM Attacks ORDER BY identifier`)
	if err != nil {
		return nil, err
	}

	attacks := make([]*models.Attack, 0, len(rows))
	for _, r := range rows {
		attack, err := s.buildAttack(ctx, r)
		if err != nil {
			return nil, err
		}
		attacks = append(attacks, attack)
	}
	return attacks, nil
}

// RetrieveNewGraphs returns the initial node of every graph eligible
// to start tracking the alert: the initial node's technique must be
// one of the alert's techniques and no existing attack on the graph
// may already track an equal alert.
func (s *StateStore) RetrieveNewGraphs(ctx context.Context, alert *models.Alert) ([]*models.AttackNode, error) {
	techniques := alert.Techniques()
	if len(techniques) == 0 {
		s.log.Warn("alert carries no techniques, no graphs eligible")
		return nil, nil
	}

	rows, err := s.q.Query(ctx, `
		SELECT ag.identifier, ag.initial_node
		FROM AttackGraphs ag
		JOIN AttackNodes an ON an.identifier = ag.initial_node
		WHERE an.technique = ANY($1)
		ORDER BY ag.identifier`, techniques)
	if err != nil {
		return nil, fmt.Errorf("query eligible graphs: %w", err)
	}
	defer rows.Close()

	var candidates []GraphRecord
	for rows.Next() {
		var g GraphRecord
		if err := rows.Scan(&g.Identifier, &g.InitialNode); err != nil {
			return nil, fmt.Errorf("scan graph: %w", err)
		}
		candidates = append(candidates, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var initials []*models.AttackNode
	for _, g := range candidates {
		tracked, err := s.graphTracksAlert(ctx, g.Identifier, alert)
		if err != nil {
			return nil, err
		}
		if tracked {
			continue
		}
		initial, err := s.RetrieveNode(ctx, g.InitialNode)
		if err != nil {
			return nil, err
		}
		if initial == nil {
			return nil, invalidState("graph %d references missing initial node %d", g.Identifier, g.InitialNode)
		}
		if _, err := s.RetrieveFullGraph(ctx, initial, nil); err != nil {
			return nil, err
		}
		initials = append(initials, initial)
	}
	return initials, nil
}

// graphTracksAlert reports whether any attack on the graph already
// holds a byte-equal copy of the alert in its context.
func (s *StateStore) graphTracksAlert(ctx context.Context, graphID int64, alert *models.Alert) (bool, error) {
	rows, err := s.queryAttackRows(ctx,
		`SELECT identifier, attack_graph, attack_front, context FROM Attacks WHERE attack_graph = $1`, graphID)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		attack, err := s.buildAttack(ctx, r)
		if err != nil {
			return false, err
		}
		if attack.Tracks(alert) {
			return true, nil
		}
	}
	return false, nil
}

// StartAttack creates a live attack on the graph whose chain contains
// the given node, positioned at the chain's initial node.
func (s *StateStore) StartAttack(ctx context.Context, node *models.AttackNode) (*models.Attack, error) {
	initial := node.First()

	var graphID int64
	row := s.q.QueryRow(ctx,
		`SELECT identifier FROM AttackGraphs WHERE initial_node = $1`, initial.Identifier)
	if err := row.Scan(&graphID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidState("no graph is rooted at node %d", initial.Identifier)
		}
		return nil, fmt.Errorf("resolve graph for node %d: %w", initial.Identifier, err)
	}

	var attackID int64
	row = s.q.QueryRow(ctx, `
		INSERT INTO Attacks (attack_graph, attack_front, context)
		VALUES ($1, $2, '{}') RETURNING identifier`, graphID, initial.Identifier)
	if err := row.Scan(&attackID); err != nil {
		return nil, fmt.Errorf("start attack on graph %d: %w", graphID, err)
	}

	s.log.Info("attack started", "attack_id", attackID, "graph_id", graphID)
	return models.NewAttack(attackID, initial), nil
}

// Advance records the alert that triggered the attack's front and
// moves the front to its successor. An attack whose front has no
// successor is complete: its row is deleted and IsComplete is set.
// The in-memory front is left on the node that was just triggered so
// that callers can still classify the step that happened.
func (s *StateStore) Advance(ctx context.Context, attack *models.Attack, alert *models.Alert) error {
	attack.RecordAlert(attack.Front, alert)

	next := attack.Front.Nxt()
	if next == nil {
		tag, err := s.q.Exec(ctx, `DELETE FROM Attacks WHERE identifier = $1`, attack.Identifier)
		if err != nil {
			return fmt.Errorf("complete attack %d: %w", attack.Identifier, err)
		}
		if tag.RowsAffected() == 0 {
			return invalidState("attack %d does not exist", attack.Identifier)
		}
		attack.IsComplete = true
		s.log.Info("attack complete", "attack_id", attack.Identifier)
		return nil
	}

	contextJSON, err := attack.ContextJSON()
	if err != nil {
		return fmt.Errorf("attack %d: %w", attack.Identifier, err)
	}
	tag, err := s.q.Exec(ctx,
		`UPDATE Attacks SET attack_front = $1, context = $2 WHERE identifier = $3`,
		next.Identifier, contextJSON, attack.Identifier)
	if err != nil {
		return fmt.Errorf("advance attack %d: %w", attack.Identifier, err)
	}
	if tag.RowsAffected() == 0 {
		return invalidState("attack %d does not exist", attack.Identifier)
	}
	return nil
}
