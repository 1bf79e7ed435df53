package service

import "github.com/soclab/mitigator/cmd/manager/models"

// SelectWorkflow picks the optimal workflow from a set of applicable
// ones: the one with the lowest cost, ties broken by the lower
// identifier. Returns nil for an empty set.
func SelectWorkflow(workflows []*models.Workflow) *models.Workflow {
	var best *models.Workflow
	for _, w := range workflows {
		if best == nil ||
			w.Cost < best.Cost ||
			(w.Cost == best.Cost && w.Identifier < best.Identifier) {
			best = w
		}
	}
	return best
}
