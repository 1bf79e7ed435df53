package models

import (
	"context"
	"math"
)

// Scoring carries the probability tunables of the attack-graph engine.
type Scoring struct {
	MaxConditions        int
	GraphInterest        float64
	EaseImpact           float64
	ProbabilityEpsilon   float64
	ProbabilityThreshold float64
}

// DefaultScoring returns the canonical tunable values.
func DefaultScoring() Scoring {
	return Scoring{
		MaxConditions:        100,
		GraphInterest:        0.5,
		EaseImpact:           0.3,
		ProbabilityEpsilon:   0.0001,
		ProbabilityThreshold: 0.75,
	}
}

// ConditionChecker evaluates a condition against an alert. The
// concrete implementation binds parameters and queries the ISIM.
type ConditionChecker interface {
	Check(ctx context.Context, c *Condition, alert *Alert) (bool, error)
}

// AttackNode is a step in an attack graph. Nodes form a doubly
// linked chain: each node has at most one predecessor and one
// successor, and belongs to exactly one chain.
type AttackNode struct {
	Identifier         int64
	Technique          string
	Conditions         []*Condition
	ProbabilityHistory []float64
	Description        string

	prv *AttackNode
	nxt *AttackNode

	cachedBefore []*AttackNode
	cachedAfter  []*AttackNode
	beforeValid  bool
	afterValid   bool
}

// NewAttackNode creates a detached attack node.
func NewAttackNode(identifier int64, technique string, conditions []*Condition, history []float64, description string) *AttackNode {
	return &AttackNode{
		Identifier:         identifier,
		Technique:          technique,
		Conditions:         conditions,
		ProbabilityHistory: history,
		Description:        description,
	}
}

// Prv returns the node's predecessor, or nil.
func (n *AttackNode) Prv() *AttackNode { return n.prv }

// Nxt returns the node's successor, or nil.
func (n *AttackNode) Nxt() *AttackNode { return n.nxt }

// Probability is the node's current probability of being triggered.
func (n *AttackNode) Probability() float64 {
	if len(n.ProbabilityHistory) == 0 {
		return 0.0
	}
	return n.ProbabilityHistory[len(n.ProbabilityHistory)-1]
}

// First walks to the first node of the chain.
func (n *AttackNode) First() *AttackNode {
	ret := n
	for ret.prv != nil {
		ret = ret.prv
	}
	return ret
}

// Last walks to the last node of the chain.
func (n *AttackNode) Last() *AttackNode {
	ret := n
	for ret.nxt != nil {
		ret = ret.nxt
	}
	return ret
}

// Then attaches node after the current one and returns it. Any node
// already attached is fully detached first. Traversal caches across
// the chain are discarded.
func (n *AttackNode) Then(node *AttackNode) *AttackNode {
	if n.nxt != nil {
		n.nxt.prv = nil
		n.nxt.invalidateChain()
	}
	node.prv = n
	n.nxt = node
	n.invalidateChain()
	return node
}

// Detach removes the node from its chain, reconnecting nothing: the
// two remaining halves become independent chains.
func (n *AttackNode) Detach() {
	prv, nxt := n.prv, n.nxt
	if prv != nil {
		prv.nxt = nil
	}
	if nxt != nil {
		nxt.prv = nil
	}
	n.prv = nil
	n.nxt = nil
	n.beforeValid = false
	n.afterValid = false
	if prv != nil {
		prv.invalidateChain()
	}
	if nxt != nil {
		nxt.invalidateChain()
	}
}

// invalidateChain discards traversal caches on every node reachable
// from n. Caches go stale whenever prv/nxt is reassigned.
func (n *AttackNode) invalidateChain() {
	for node := n; node != nil; node = node.prv {
		node.beforeValid = false
		node.afterValid = false
		node.cachedBefore = nil
		node.cachedAfter = nil
	}
	for node := n.nxt; node != nil; node = node.nxt {
		node.beforeValid = false
		node.afterValid = false
		node.cachedBefore = nil
		node.cachedAfter = nil
	}
}

// AllBefore collects the node's ancestors, nearest first.
func (n *AttackNode) AllBefore() []*AttackNode {
	if n.beforeValid {
		return n.cachedBefore
	}
	var ret []*AttackNode
	for tmp := n.prv; tmp != nil; tmp = tmp.prv {
		ret = append(ret, tmp)
	}
	n.cachedBefore = ret
	n.beforeValid = true
	return ret
}

// AllAfter collects the node's descendants, nearest first.
func (n *AttackNode) AllAfter() []*AttackNode {
	if n.afterValid {
		return n.cachedAfter
	}
	var ret []*AttackNode
	for tmp := n.nxt; tmp != nil; tmp = tmp.nxt {
		ret = append(ret, tmp)
	}
	n.cachedAfter = ret
	n.afterValid = true
	return ret
}

// All collects every node in the chain, in chain order.
func (n *AttackNode) All() []*AttackNode {
	before := n.AllBefore()
	after := n.AllAfter()
	ret := make([]*AttackNode, 0, len(before)+1+len(after))
	for i := len(before) - 1; i >= 0; i-- {
		ret = append(ret, before[i])
	}
	ret = append(ret, n)
	ret = append(ret, after...)
	return ret
}

// Factor1 is proportional to the attack graph's progress level: the
// further along the attack has progressed, the more likely it is to
// keep progressing. Follows a quadratic curve.
func (n *AttackNode) Factor1(s Scoring) float64 {
	exp := (1-s.GraphInterest)*4 + 1
	b := float64(len(n.AllBefore()))
	a := float64(len(n.AllAfter()))
	return math.Pow(b/(b+1+a), exp)
}

// Factor2 is proportional to how easy the attack graph is to
// complete: the fewer preconditions in total, the easier it is.
func (n *AttackNode) Factor2(s Scoring) float64 {
	total := len(n.Conditions)
	for _, node := range n.AllBefore() {
		total += len(node.Conditions)
	}
	for _, node := range n.AllAfter() {
		total += len(node.Conditions)
	}
	f := float64(total) / float64(s.MaxConditions) * s.EaseImpact
	return math.Min(math.Max(f, 0), 1)
}

// UpdateProbability recalculates the probability of the node being
// executed and appends it to the history. Returns whether the new
// value differed enough from the old one to be recorded.
func (n *AttackNode) UpdateProbability(ctx context.Context, checker ConditionChecker, alert *Alert, s Scoring) (bool, error) {
	// Factor 3 is proportional to how many conditions have been met.
	// If there are no conditions, this value is 1.
	factor3 := 1.0
	if len(n.Conditions) > 0 {
		met := 0
		for _, c := range n.Conditions {
			ok, err := checker.Check(ctx, c, alert)
			if err != nil {
				return false, err
			}
			if ok {
				met++
			}
		}
		factor3 = float64(met) / float64(len(n.Conditions))
	}

	old := n.Probability()
	next := (n.Factor1(s) + n.Factor2(s) + factor3) / 3
	if math.Abs(old-next) < s.ProbabilityEpsilon {
		return false, nil
	}
	n.ProbabilityHistory = append(n.ProbabilityHistory, next)
	return true, nil
}

// HistoricallyRisky checks if the node has been generally too risky:
// the arithmetic mean of its history exceeds the threshold.
func (n *AttackNode) HistoricallyRisky(s Scoring) bool {
	if len(n.ProbabilityHistory) == 0 {
		return false
	}
	sum := 0.0
	for _, p := range n.ProbabilityHistory {
		sum += p
	}
	return sum/float64(len(n.ProbabilityHistory)) > s.ProbabilityThreshold
}

// IsTriggered checks whether the alert triggers the node: the alert
// must cover the node's technique and every condition must be met.
func (n *AttackNode) IsTriggered(ctx context.Context, checker ConditionChecker, alert *Alert) (bool, error) {
	if !alert.Triggers(n) {
		return false, nil
	}
	for _, c := range n.Conditions {
		ok, err := checker.Check(ctx, c, alert)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
