// Package service implements the alert ingest pipeline and the
// mitigation engine on top of the state store.
package service

import (
	"context"

	"github.com/soclab/mitigator/cmd/manager/models"
)

// Store is the state-store surface the pipeline depends on.
type Store interface {
	RetrieveAttacks(ctx context.Context) ([]*models.Attack, error)
	RetrieveNewGraphs(ctx context.Context, alert *models.Alert) ([]*models.AttackNode, error)
	StartAttack(ctx context.Context, node *models.AttackNode) (*models.Attack, error)
	Advance(ctx context.Context, attack *models.Attack, alert *models.Alert) error
	UpdateNodeProbability(ctx context.Context, node *models.AttackNode) error
}

// TxRunner runs fn against a transaction-bound store, committing on
// nil and rolling back on error.
type TxRunner func(ctx context.Context, fn func(Store) error) error

// WorkflowSource retrieves the workflows able to mitigate a technique.
type WorkflowSource interface {
	RetrieveApplicableWorkflows(ctx context.Context, technique string) ([]*models.Workflow, error)
}

// EventPublisher pushes engine events to downstream consumers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, channel string, message string) error
}
