// Package isim queries the Information Security Infrastructure
// Model, a graph-database view of the monitored network.
package isim

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/soclab/mitigator/common/logger"
)

// Querier runs a parameterised query against the ISIM and returns
// the result records as field-keyed maps.
type Querier interface {
	RunQuery(ctx context.Context, query string, parameters map[string]any) ([]map[string]any, error)
}

// Manager is the Neo4j-backed Querier. Driver-level concurrency is
// delegated to the driver, which is safe for concurrent use.
type Manager struct {
	driver  neo4j.DriverWithContext
	log     *logger.Logger
	timeout time.Duration
}

// NewManager wraps a Neo4j driver.
func NewManager(driver neo4j.DriverWithContext, timeout time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		driver:  driver,
		log:     log,
		timeout: timeout,
	}
}

// RunQuery runs a query against the ISIM.
func (m *Manager) RunQuery(ctx context.Context, query string, parameters map[string]any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	result, err := neo4j.ExecuteQuery(ctx, m.driver, query, parameters,
		neo4j.EagerResultTransformer)
	if err != nil {
		return nil, fmt.Errorf("ISIM query: %w", err)
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		rows = append(rows, record.AsMap())
	}
	m.log.Debug("ISIM query executed", "rows", len(rows))
	return rows, nil
}
