package models

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticChecker reports a fixed verdict per condition identifier.
type staticChecker struct {
	met map[int64]bool
	err error
}

func (c *staticChecker) Check(_ context.Context, cond *Condition, _ *Alert) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.met[cond.Identifier], nil
}

func chainOf(t *testing.T, n int) []*AttackNode {
	t.Helper()
	nodes := make([]*AttackNode, n)
	for i := range nodes {
		nodes[i] = NewAttackNode(int64(i+1), "T000"+string(rune('0'+i)), nil, nil, "")
	}
	for i := 0; i < n-1; i++ {
		nodes[i].Then(nodes[i+1])
	}
	return nodes
}

func TestChainNavigation(t *testing.T) {
	nodes := chainOf(t, 4)

	assert.Same(t, nodes[0], nodes[2].First())
	assert.Same(t, nodes[3], nodes[0].Last())
	assert.Nil(t, nodes[0].Prv())
	assert.Same(t, nodes[1], nodes[0].Nxt())

	before := nodes[2].AllBefore()
	require.Len(t, before, 2)
	// Nearest first
	assert.Same(t, nodes[1], before[0])
	assert.Same(t, nodes[0], before[1])

	after := nodes[1].AllAfter()
	require.Len(t, after, 2)
	assert.Same(t, nodes[2], after[0])
	assert.Same(t, nodes[3], after[1])

	all := nodes[2].All()
	require.Len(t, all, 4)
	for i, n := range nodes {
		assert.Same(t, n, all[i])
	}
}

func TestThenDetachesExistingSuccessor(t *testing.T) {
	a := NewAttackNode(1, "T1", nil, nil, "")
	b := NewAttackNode(2, "T2", nil, nil, "")
	c := NewAttackNode(3, "T3", nil, nil, "")

	a.Then(b)
	a.Then(c)

	assert.Same(t, c, a.Nxt())
	assert.Nil(t, b.Prv())
	assert.Len(t, a.AllAfter(), 1)
}

func TestTraversalCachesInvalidatedByRelink(t *testing.T) {
	a := NewAttackNode(1, "T1", nil, nil, "")
	b := NewAttackNode(2, "T2", nil, nil, "")
	a.Then(b)

	// Prime the caches.
	require.Len(t, a.AllAfter(), 1)
	require.Len(t, b.AllBefore(), 1)

	c := NewAttackNode(3, "T3", nil, nil, "")
	b.Then(c)

	assert.Len(t, a.AllAfter(), 2)
	assert.Len(t, c.AllBefore(), 2)
}

func TestDetachSplitsChain(t *testing.T) {
	nodes := chainOf(t, 3)
	nodes[1].Detach()

	assert.Nil(t, nodes[0].Nxt())
	assert.Nil(t, nodes[2].Prv())
	assert.Nil(t, nodes[1].Prv())
	assert.Nil(t, nodes[1].Nxt())
	assert.Empty(t, nodes[0].AllAfter())
	assert.Empty(t, nodes[2].AllBefore())
}

func TestFactor1GrowsAlongChain(t *testing.T) {
	nodes := chainOf(t, 4)
	s := DefaultScoring()

	prev := -1.0
	for _, n := range nodes {
		f := n.Factor1(s)
		assert.Greater(t, f, prev)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
		prev = f
	}

	// B ancestors, A descendants: (B/(B+1+A))^((1-0.5)*4+1)
	want := math.Pow(1.0/4.0, 3)
	assert.InDelta(t, want, nodes[1].Factor1(s), 1e-12)
}

func TestFactor2CountsChainConditions(t *testing.T) {
	c1 := &Condition{Identifier: 1}
	c2 := &Condition{Identifier: 2}
	a := NewAttackNode(1, "T1", []*Condition{c1}, nil, "")
	b := NewAttackNode(2, "T2", []*Condition{c2}, nil, "")
	a.Then(b)

	s := DefaultScoring()
	want := 2.0 / float64(s.MaxConditions) * s.EaseImpact
	assert.InDelta(t, want, a.Factor2(s), 1e-12)
	assert.InDelta(t, want, b.Factor2(s), 1e-12)
}

func TestUpdateProbability_NoConditionsMeansFactor3One(t *testing.T) {
	nodes := chainOf(t, 2)
	s := DefaultScoring()
	checker := &staticChecker{}

	changed, err := nodes[1].UpdateProbability(context.Background(), checker, &Alert{}, s)
	require.NoError(t, err)
	require.True(t, changed)

	want := (nodes[1].Factor1(s) + nodes[1].Factor2(s) + 1.0) / 3
	assert.InDelta(t, want, nodes[1].Probability(), 1e-12)
}

func TestUpdateProbability_EpsilonSuppressesAppends(t *testing.T) {
	nodes := chainOf(t, 2)
	s := DefaultScoring()
	checker := &staticChecker{}

	changed, err := nodes[1].UpdateProbability(context.Background(), checker, &Alert{}, s)
	require.NoError(t, err)
	require.True(t, changed)
	require.Len(t, nodes[1].ProbabilityHistory, 1)

	// Same inputs, same score: within epsilon, nothing appended.
	changed, err = nodes[1].UpdateProbability(context.Background(), checker, &Alert{}, s)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, nodes[1].ProbabilityHistory, 1)
}

func TestUpdateProbability_ConditionFraction(t *testing.T) {
	c1 := &Condition{Identifier: 1}
	c2 := &Condition{Identifier: 2}
	node := NewAttackNode(1, "T1", []*Condition{c1, c2}, nil, "")
	s := DefaultScoring()
	checker := &staticChecker{met: map[int64]bool{1: true, 2: false}}

	changed, err := node.UpdateProbability(context.Background(), checker, &Alert{}, s)
	require.NoError(t, err)
	require.True(t, changed)

	want := (node.Factor1(s) + node.Factor2(s) + 0.5) / 3
	assert.InDelta(t, want, node.Probability(), 1e-12)
}

func TestUpdateProbability_PropagatesCheckerError(t *testing.T) {
	c1 := &Condition{Identifier: 1}
	node := NewAttackNode(1, "T1", []*Condition{c1}, nil, "")
	checker := &staticChecker{err: errors.New("isim down")}

	_, err := node.UpdateProbability(context.Background(), checker, &Alert{}, DefaultScoring())
	require.Error(t, err)
}

func TestHistoricallyRisky(t *testing.T) {
	s := DefaultScoring()

	empty := NewAttackNode(1, "T1", nil, nil, "")
	assert.False(t, empty.HistoricallyRisky(s))

	risky := NewAttackNode(2, "T2", nil, []float64{0.8, 0.9, 0.85}, "")
	assert.True(t, risky.HistoricallyRisky(s))

	calm := NewAttackNode(3, "T3", nil, []float64{0.9, 0.1, 0.2}, "")
	assert.False(t, calm.HistoricallyRisky(s))

	// Mean exactly at the threshold is not risky.
	boundary := NewAttackNode(4, "T4", nil, []float64{0.75}, "")
	assert.False(t, boundary.HistoricallyRisky(s))
}

func TestIsTriggered(t *testing.T) {
	raw := map[string]any{
		"rule": map[string]any{
			"mitre": map[string]any{"id": []any{"T1059"}},
		},
	}
	alert, err := ParseAlert(raw)
	require.NoError(t, err)

	c1 := &Condition{Identifier: 1}
	node := NewAttackNode(1, "T1059", []*Condition{c1}, nil, "")

	met := &staticChecker{met: map[int64]bool{1: true}}
	ok, err := node.IsTriggered(context.Background(), met, alert)
	require.NoError(t, err)
	assert.True(t, ok)

	unmet := &staticChecker{met: map[int64]bool{1: false}}
	ok, err = node.IsTriggered(context.Background(), unmet, alert)
	require.NoError(t, err)
	assert.False(t, ok)

	// Technique mismatch short-circuits before conditions.
	other := NewAttackNode(2, "T9999", []*Condition{c1}, nil, "")
	ok, err = other.IsTriggered(context.Background(), &staticChecker{err: errors.New("must not be called")}, alert)
	require.NoError(t, err)
	assert.False(t, ok)
}
