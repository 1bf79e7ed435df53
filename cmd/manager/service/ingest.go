package service

import (
	"context"

	"github.com/soclab/mitigator/cmd/manager/models"
	"github.com/soclab/mitigator/common/logger"
)

// IngestService drives the alert pipeline: advance live attacks,
// admit newly matching graphs, re-score probabilities and hand every
// affected attack to the mitigation engine. All state changes of a
// single alert are committed in one transaction.
type IngestService struct {
	inTx      TxRunner
	checker   models.ConditionChecker
	mitigator *MitigationService
	scoring   models.Scoring
	log       *logger.Logger
}

// NewIngestService creates the ingest pipeline.
func NewIngestService(inTx TxRunner, checker models.ConditionChecker, mitigator *MitigationService, scoring models.Scoring, log *logger.Logger) *IngestService {
	return &IngestService{
		inTx:      inTx,
		checker:   checker,
		mitigator: mitigator,
		scoring:   scoring,
		log:       log,
	}
}

// Ingest processes a parsed alert. It returns the attacks the alert
// was weighed against, completed ones included; mitigation uses both
// the historic attack information and the latest alert, even when
// the alert didn't trigger anything in a particular attack.
func (s *IngestService) Ingest(ctx context.Context, alert *models.Alert) ([]*models.Attack, error) {
	var attacks []*models.Attack
	err := s.inTx(ctx, func(store Store) error {
		var err error
		attacks, err = s.update(ctx, store, alert)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			s.log.Info("alert handling cancelled, state changes rolled back")
		}
		return nil, err
	}

	s.mitigator.MitigateAll(ctx, attacks, alert)
	return attacks, nil
}

// update applies the alert to the local state inside one transaction.
func (s *IngestService) update(ctx context.Context, store Store, alert *models.Alert) ([]*models.Attack, error) {
	attacks, err := store.RetrieveAttacks(ctx)
	if err != nil {
		return nil, err
	}

	s.log.Info("advancing attack fronts", "attacks", len(attacks))
	for _, attack := range attacks {
		triggered, err := attack.Front.IsTriggered(ctx, s.checker, alert)
		if err != nil {
			return nil, err
		}
		if !triggered {
			s.log.Debug("attack not advanced by alert", "attack_id", attack.Identifier)
			continue
		}
		if err := store.Advance(ctx, attack, alert); err != nil {
			return nil, err
		}
		s.log.Debug("attack advanced", "attack_id", attack.Identifier, "complete", attack.IsComplete)
	}

	initials, err := store.RetrieveNewGraphs(ctx, alert)
	if err != nil {
		return nil, err
	}
	for _, initial := range initials {
		met, err := s.allConditionsMet(ctx, initial, alert)
		if err != nil {
			return nil, err
		}
		if !met {
			s.log.Debug("discarding potential attack, initial node conditions unfulfilled",
				"node_id", initial.Identifier)
			continue
		}
		attack, err := store.StartAttack(ctx, initial)
		if err != nil {
			return nil, err
		}
		if err := store.Advance(ctx, attack, alert); err != nil {
			return nil, err
		}
		attacks = append(attacks, attack)
	}

	s.log.Debug("updating probabilities")
	for _, attack := range attacks {
		for _, node := range attack.Front.All() {
			changed, err := node.UpdateProbability(ctx, s.checker, alert, s.scoring)
			if err != nil {
				return nil, err
			}
			if changed {
				if err := store.UpdateNodeProbability(ctx, node); err != nil {
					return nil, err
				}
			}
		}
	}

	return attacks, nil
}

func (s *IngestService) allConditionsMet(ctx context.Context, node *models.AttackNode, alert *models.Alert) (bool, error) {
	for _, c := range node.Conditions {
		ok, err := s.checker.Check(ctx, c, alert)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
