package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclab/mitigator/cmd/manager/models"
)

// fakeStore is an in-memory stand-in for the state store.
type fakeStore struct {
	attacks   []*models.Attack
	newGraphs []*models.AttackNode

	nextAttackID       int64
	started            []int64
	advanced           []int64
	probabilityUpdates []int64
}

func (f *fakeStore) RetrieveAttacks(context.Context) ([]*models.Attack, error) {
	return f.attacks, nil
}

func (f *fakeStore) RetrieveNewGraphs(context.Context, *models.Alert) ([]*models.AttackNode, error) {
	return f.newGraphs, nil
}

func (f *fakeStore) StartAttack(_ context.Context, node *models.AttackNode) (*models.Attack, error) {
	f.nextAttackID++
	attack := models.NewAttack(f.nextAttackID, node.First())
	f.started = append(f.started, attack.Identifier)
	return attack, nil
}

func (f *fakeStore) Advance(_ context.Context, attack *models.Attack, alert *models.Alert) error {
	attack.RecordAlert(attack.Front, alert)
	if attack.Front.Nxt() == nil {
		attack.IsComplete = true
	}
	f.advanced = append(f.advanced, attack.Identifier)
	return nil
}

func (f *fakeStore) UpdateNodeProbability(_ context.Context, node *models.AttackNode) error {
	f.probabilityUpdates = append(f.probabilityUpdates, node.Identifier)
	return nil
}

// noWorkflows is a workflow source with nothing to offer.
type noWorkflows struct{}

func (noWorkflows) RetrieveApplicableWorkflows(context.Context, string) ([]*models.Workflow, error) {
	return nil, nil
}

func buildChain(techniques ...string) []*models.AttackNode {
	nodes := make([]*models.AttackNode, len(techniques))
	for i, tech := range techniques {
		nodes[i] = models.NewAttackNode(int64(i+1), tech, nil, nil, "")
	}
	for i := 0; i < len(nodes)-1; i++ {
		nodes[i].Then(nodes[i+1])
	}
	return nodes
}

func newIngest(store *fakeStore, checker models.ConditionChecker) *IngestService {
	scoring := models.DefaultScoring()
	mitigator := NewMitigationService(noWorkflows{}, newExecutor(checker), nil, "", scoring, 2, testLogger())
	inTx := func(ctx context.Context, fn func(Store) error) error {
		return fn(store)
	}
	return NewIngestService(inTx, checker, mitigator, scoring, testLogger())
}

func TestIngest_AdvancesTriggeredAttack(t *testing.T) {
	nodes := buildChain("T1059", "T1041")
	attack := models.NewAttack(1, nodes[0])
	store := &fakeStore{attacks: []*models.Attack{attack}}

	svc := newIngest(store, &staticChecker{})
	attacks, err := svc.Ingest(context.Background(), testAlert(t)) // alert names T1059
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, store.advanced)
	require.Len(t, attacks, 1)
	assert.False(t, attacks[0].IsComplete)
	require.NotNil(t, attack.AlertFor(nodes[0]))
}

func TestIngest_UntriggeredAttackIsLeftAlone(t *testing.T) {
	nodes := buildChain("T9999", "T1041")
	attack := models.NewAttack(1, nodes[0])
	store := &fakeStore{attacks: []*models.Attack{attack}}

	svc := newIngest(store, &staticChecker{})
	attacks, err := svc.Ingest(context.Background(), testAlert(t))
	require.NoError(t, err)

	assert.Empty(t, store.advanced)
	// The attack still participates in mitigation.
	assert.Len(t, attacks, 1)
}

func TestIngest_CompletedAttackStillReturned(t *testing.T) {
	nodes := buildChain("T1059")
	attack := models.NewAttack(1, nodes[0])
	store := &fakeStore{attacks: []*models.Attack{attack}}

	svc := newIngest(store, &staticChecker{})
	attacks, err := svc.Ingest(context.Background(), testAlert(t))
	require.NoError(t, err)

	require.Len(t, attacks, 1)
	assert.True(t, attacks[0].IsComplete)
}

func TestIngest_AdmitsNewGraphWhenConditionsMet(t *testing.T) {
	nodes := buildChain("T1059", "T1041")
	store := &fakeStore{newGraphs: []*models.AttackNode{nodes[0]}}

	svc := newIngest(store, &staticChecker{})
	attacks, err := svc.Ingest(context.Background(), testAlert(t))
	require.NoError(t, err)

	require.Len(t, attacks, 1)
	assert.Equal(t, []int64{1}, store.started)
	// The admitting alert immediately advances the new attack.
	assert.Equal(t, []int64{1}, store.advanced)
}

func TestIngest_RejectsNewGraphWithUnmetConditions(t *testing.T) {
	gate := &models.Condition{Identifier: 1}
	initial := models.NewAttackNode(1, "T1059", []*models.Condition{gate}, nil, "")
	store := &fakeStore{newGraphs: []*models.AttackNode{initial}}

	svc := newIngest(store, &staticChecker{met: map[int64]bool{1: false}})
	attacks, err := svc.Ingest(context.Background(), testAlert(t))
	require.NoError(t, err)

	assert.Empty(t, attacks)
	assert.Empty(t, store.started)
}

func TestIngest_PersistsChangedProbabilities(t *testing.T) {
	nodes := buildChain("T1059", "T1041")
	attack := models.NewAttack(1, nodes[0])
	store := &fakeStore{attacks: []*models.Attack{attack}}

	svc := newIngest(store, &staticChecker{})
	_, err := svc.Ingest(context.Background(), testAlert(t))
	require.NoError(t, err)

	// Fresh histories always change on the first score.
	assert.ElementsMatch(t, []int64{1, 2}, store.probabilityUpdates)
	assert.NotEmpty(t, nodes[0].ProbabilityHistory)
	assert.NotEmpty(t, nodes[1].ProbabilityHistory)
}
