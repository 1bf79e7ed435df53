package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soclab/mitigator/cmd/manager/models"
)

func TestSelectWorkflow_LowestCostWins(t *testing.T) {
	expensive := &models.Workflow{Identifier: 1, Cost: 5}
	cheap := &models.Workflow{Identifier: 2, Cost: 1}

	assert.Same(t, cheap, SelectWorkflow([]*models.Workflow{expensive, cheap}))
	assert.Same(t, cheap, SelectWorkflow([]*models.Workflow{cheap, expensive}))
}

func TestSelectWorkflow_TieBrokenByIdentifier(t *testing.T) {
	a := &models.Workflow{Identifier: 9, Cost: 3}
	b := &models.Workflow{Identifier: 4, Cost: 3}

	assert.Same(t, b, SelectWorkflow([]*models.Workflow{a, b}))
}

func TestSelectWorkflow_Empty(t *testing.T) {
	assert.Nil(t, SelectWorkflow(nil))
}
