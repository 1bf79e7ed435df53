// Package repository persists attack graphs, conditions, workflows
// and live attacks in Postgres.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/soclab/mitigator/common/db"
	"github.com/soclab/mitigator/common/logger"
)

// InvalidDatabaseStateError reports a persisted state that violates a
// structural invariant, such as a graph chain referencing a missing
// node or containing a cycle.
type InvalidDatabaseStateError struct {
	Reason string
}

func (e *InvalidDatabaseStateError) Error() string {
	return fmt.Sprintf("invalid database state: %s", e.Reason)
}

func invalidState(format string, args ...any) error {
	return &InvalidDatabaseStateError{Reason: fmt.Sprintf(format, args...)}
}

// DBTX is the query surface shared by the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StateStore is the Postgres-backed state store. A store bound to the
// pool autocommits each operation; InTx produces a transaction-bound
// copy for multi-operation consistency.
type StateStore struct {
	q   DBTX
	db  *db.DB
	log *logger.Logger
}

// NewStateStore creates a state store over the connection pool.
func NewStateStore(database *db.DB, log *logger.Logger) *StateStore {
	return &StateStore{
		q:   database.Pool,
		db:  database,
		log: log,
	}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *StateStore) WithTx(tx pgx.Tx) *StateStore {
	return &StateStore{
		q:   tx,
		db:  s.db,
		log: s.log,
	}
}

// InTx runs fn against a transaction-bound copy of the store. The
// transaction is committed if fn returns nil and rolled back
// otherwise. A store already bound to a transaction runs fn directly.
func (s *StateStore) InTx(ctx context.Context, fn func(tx *StateStore) error) error {
	if _, bound := s.q.(pgx.Tx); bound {
		return fn(s)
	}
	return s.db.InTx(ctx, func(tx pgx.Tx) error {
		return fn(s.WithTx(tx))
	})
}
