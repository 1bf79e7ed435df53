package service

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soclab/mitigator/cmd/manager/models"
	"github.com/soclab/mitigator/common/logger"
)

// MitigationService addresses individual attacks once the state has
// been updated. Nodes are classified relative to the attack front:
// past nodes are mitigated when historically risky, the front when
// the alert names its technique, and future nodes when their
// probability exceeds the threshold.
type MitigationService struct {
	workflows    WorkflowSource
	executor     *WorkflowExecutor
	events       EventPublisher
	eventChannel string
	scoring      models.Scoring
	poolSize     int
	log          *logger.Logger
}

// NewMitigationService creates the mitigation engine. events may be
// nil, in which case no events are published.
func NewMitigationService(workflows WorkflowSource, executor *WorkflowExecutor, events EventPublisher, eventChannel string, scoring models.Scoring, poolSize int, log *logger.Logger) *MitigationService {
	if poolSize < 1 {
		poolSize = 1
	}
	return &MitigationService{
		workflows:    workflows,
		executor:     executor,
		events:       events,
		eventChannel: eventChannel,
		scoring:      scoring,
		poolSize:     poolSize,
		log:          log,
	}
}

// MitigateAll fans mitigation out over the attacks with a bounded
// worker pool. Individual mitigation failures are logged, not
// propagated, so one attack can't starve the others.
func (m *MitigationService) MitigateAll(ctx context.Context, attacks []*models.Attack, alert *models.Alert) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.poolSize)

	for _, attack := range attacks {
		attack := attack
		g.Go(func() error {
			if err := m.MitigateAttack(ctx, attack, alert); err != nil {
				m.log.Warn("attack mitigation aborted", "attack_id", attack.Identifier, "error", err)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck
}

// MitigateAttack applies appropriate mitigations for one attack.
func (m *MitigationService) MitigateAttack(ctx context.Context, attack *models.Attack, alert *models.Alert) error {
	front := attack.Front

	// Past: judge based on risk history.
	for _, n := range front.AllBefore() {
		if n.HistoricallyRisky(m.scoring) {
			m.log.Debug("node has been historically very risky, mitigating",
				"attack_id", attack.Identifier, "node_id", n.Identifier)
			if err := m.mitigateNode(ctx, attack, n, alert); err != nil {
				return err
			}
		}
	}

	// Present: only if it is related to this alert.
	if alert.Triggers(front) {
		m.log.Debug("node is directly impacted by the alert, mitigating",
			"attack_id", attack.Identifier, "node_id", front.Identifier)
		if err := m.mitigateNode(ctx, attack, front, alert); err != nil {
			return err
		}
	}

	// Future: judge based on how likely it is.
	for _, n := range front.AllAfter() {
		if n.Probability() > m.scoring.ProbabilityThreshold {
			m.log.Debug("node is very likely to occur in the future, mitigating",
				"attack_id", attack.Identifier, "node_id", n.Identifier)
			if err := m.mitigateNode(ctx, attack, n, alert); err != nil {
				return err
			}
		}
	}
	return nil
}

// mitigateNode resolves the optimal workflow for the node and
// executes it if its conditions hold.
func (m *MitigationService) mitigateNode(ctx context.Context, attack *models.Attack, node *models.AttackNode, alert *models.Alert) error {
	applicable, err := m.workflows.RetrieveApplicableWorkflows(ctx, node.Technique)
	if err != nil {
		return err
	}

	wf := SelectWorkflow(applicable)
	if wf == nil {
		m.log.Warn("no satisfactory workflow located, unable to mitigate node",
			"attack_id", attack.Identifier, "node_id", node.Identifier, "technique", node.Technique)
		return nil
	}

	executable, err := m.executor.Executable(ctx, wf, alert)
	if err != nil {
		return err
	}
	if !executable {
		m.log.Warn("workflow conditions are not met, unable to execute",
			"workflow_id", wf.Identifier, "node_id", node.Identifier)
		return nil
	}

	executed, err := m.executor.Execute(ctx, wf, alert)
	if err != nil {
		return err
	}
	if executed {
		m.log.Info("workflow applied successfully",
			"workflow_id", wf.Identifier, "attack_id", attack.Identifier, "node_id", node.Identifier)
	} else {
		m.log.Warn("unable to apply workflow",
			"workflow_id", wf.Identifier, "attack_id", attack.Identifier, "node_id", node.Identifier)
	}
	m.publishMitigationEvent(ctx, attack, node, wf, executed)
	return nil
}

// publishMitigationEvent emits a mitigation record on the event
// channel. Publishing is best effort.
func (m *MitigationService) publishMitigationEvent(ctx context.Context, attack *models.Attack, node *models.AttackNode, wf *models.Workflow, executed bool) {
	if m.events == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"event":       "mitigation",
		"attack_id":   attack.Identifier,
		"node_id":     node.Identifier,
		"technique":   node.Technique,
		"workflow_id": wf.Identifier,
		"executed":    executed,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := m.events.PublishEvent(ctx, m.eventChannel, string(payload)); err != nil {
		m.log.Warn("mitigation event publish failed", "error", err)
	}
}
