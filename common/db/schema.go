package db

import (
	"context"
	"fmt"
)

// Schema is the relational layout of the mitigation manager state.
// Lists of primitives are stored space-separated, maps JSON-encoded,
// probability histories as space-separated decimals and check kinds
// as integer codes.
const Schema = `
CREATE TABLE IF NOT EXISTS Conditions (
	identifier            BIGINT PRIMARY KEY,
	condition_name        TEXT NOT NULL DEFAULT '',
	condition_description TEXT NOT NULL DEFAULT '',
	params                TEXT NOT NULL DEFAULT '{}',
	args                  TEXT NOT NULL DEFAULT '{}',
	query                 TEXT NOT NULL DEFAULT '',
	checks                TEXT,
	expression            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS AttackNodes (
	identifier    BIGINT PRIMARY KEY,
	prv           BIGINT REFERENCES AttackNodes (identifier),
	nxt           BIGINT REFERENCES AttackNodes (identifier),
	technique     TEXT NOT NULL,
	conditions    TEXT,
	probabilities TEXT,
	description   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS AttackGraphs (
	identifier   BIGSERIAL PRIMARY KEY,
	initial_node BIGINT NOT NULL REFERENCES AttackNodes (identifier)
);

CREATE TABLE IF NOT EXISTS Workflows (
	identifier           BIGINT PRIMARY KEY,
	workflow_name        TEXT NOT NULL,
	workflow_description TEXT NOT NULL DEFAULT '',
	url                  TEXT NOT NULL,
	effective_attacks    TEXT,
	cost                 INT NOT NULL DEFAULT 0,
	params               TEXT NOT NULL DEFAULT '{}',
	args                 TEXT NOT NULL DEFAULT '{}',
	conditions           TEXT
);

CREATE TABLE IF NOT EXISTS Attacks (
	identifier   BIGSERIAL PRIMARY KEY,
	attack_graph BIGINT NOT NULL REFERENCES AttackGraphs (identifier),
	attack_front BIGINT NOT NULL REFERENCES AttackNodes (identifier),
	context      TEXT NOT NULL DEFAULT '{}'
);
`

// InitSchema creates the state tables if they don't exist yet
func InitSchema(db *DB) error {
	if _, err := db.Exec(context.Background(), Schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}
