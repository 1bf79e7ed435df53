// Package container wires the manager's repositories and services
// together once at startup.
package container

import (
	"context"
	"net/http"

	"github.com/soclab/mitigator/cmd/manager/bus"
	"github.com/soclab/mitigator/cmd/manager/condition"
	"github.com/soclab/mitigator/cmd/manager/isim"
	"github.com/soclab/mitigator/cmd/manager/models"
	"github.com/soclab/mitigator/cmd/manager/repository"
	"github.com/soclab/mitigator/cmd/manager/service"
	"github.com/soclab/mitigator/common/bootstrap"
	"github.com/soclab/mitigator/common/clients"
)

// Container holds all initialized services and repositories.
type Container struct {
	Components *bootstrap.Components

	Store     *repository.StateStore
	Isim      *isim.Manager
	Evaluator *condition.Evaluator
	Executor  *service.WorkflowExecutor
	Mitigator *service.MitigationService
	Ingest    *service.IngestService
	AlertBus  *bus.Subscriber
}

// NewContainer initializes all services and repositories once.
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	store := repository.NewStateStore(components.DB, log)
	isimManager := isim.NewManager(components.Isim, cfg.Isim.Timeout, log)
	evaluator := condition.NewEvaluator(isimManager, log)

	scoring := models.Scoring{
		MaxConditions:        cfg.Engine.MaxConditions,
		GraphInterest:        cfg.Engine.GraphInterest,
		EaseImpact:           cfg.Engine.EaseImpact,
		ProbabilityEpsilon:   cfg.Engine.ProbabilityEpsilon,
		ProbabilityThreshold: cfg.Engine.ProbabilityThreshold,
	}

	httpClient := clients.NewHTTPClient(&http.Client{Timeout: cfg.Engine.WorkflowTimeout}, log)
	executor := service.NewWorkflowExecutor(httpClient, evaluator, cfg.Engine.WorkflowTimeout, log)
	mitigator := service.NewMitigationService(
		store,
		executor,
		components.Redis,
		cfg.Redis.EventChannel,
		scoring,
		cfg.Engine.WorkerPoolSize,
		log,
	)

	inTx := func(ctx context.Context, fn func(service.Store) error) error {
		return store.InTx(ctx, func(tx *repository.StateStore) error {
			return fn(tx)
		})
	}
	ingest := service.NewIngestService(inTx, evaluator, mitigator, scoring, log)

	alertBus := bus.NewSubscriber(
		components.Redis,
		ingest,
		cfg.Redis.AlertChannel,
		cfg.Engine.WorkerPoolSize,
		log,
	)

	return &Container{
		Components: components,
		Store:      store,
		Isim:       isimManager,
		Evaluator:  evaluator,
		Executor:   executor,
		Mitigator:  mitigator,
		Ingest:     ingest,
		AlertBus:   alertBus,
	}, nil
}
