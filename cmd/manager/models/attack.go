package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Attack is a live instance of an attack graph being tracked. The
// attack front is the next node expected to be triggered.
type Attack struct {
	Identifier int64
	// Graph is the chain's initial node.
	Graph *AttackNode
	Front *AttackNode
	// Context maps node identifiers (as decimal strings) to the
	// alerts that triggered them; non-numeric keys hold primitives.
	Context    map[string]any
	IsComplete bool
}

// NewAttack creates an attack tracking the front's chain.
func NewAttack(identifier int64, front *AttackNode) *Attack {
	return &Attack{
		Identifier: identifier,
		Graph:      front.First(),
		Front:      front,
		Context:    make(map[string]any),
	}
}

// RecordAlert stores the alert that triggered a node.
func (a *Attack) RecordAlert(node *AttackNode, alert *Alert) {
	a.Context[strconv.FormatInt(node.Identifier, 10)] = alert
}

// AlertFor retrieves the alert that triggered a node. Returns nil if
// the node hasn't been triggered yet.
func (a *Attack) AlertFor(node *AttackNode) *Alert {
	v, ok := a.Context[strconv.FormatInt(node.Identifier, 10)]
	if !ok {
		return nil
	}
	alert, ok := v.(*Alert)
	if !ok {
		return nil
	}
	return alert
}

// ContextJSON returns the attack's context as a JSON string. Alerts
// are stored in their serialized form under their node's numeric key.
func (a *Attack) ContextJSON() (string, error) {
	flat := make(map[string]any, len(a.Context))
	for k, v := range a.Context {
		if alert, ok := v.(*Alert); ok {
			flat[k] = alert.Serialize()
		} else {
			flat[k] = v
		}
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return "", fmt.Errorf("marshal attack context: %w", err)
	}
	return string(b), nil
}

// SetContextFromJSON rebuilds the context from its JSON form,
// deserializing alerts stored under numeric keys.
func (a *Attack) SetContextFromJSON(data string) error {
	var flat map[string]any
	if err := json.Unmarshal([]byte(data), &flat); err != nil {
		return fmt.Errorf("unmarshal attack context: %w", err)
	}
	if a.Context == nil {
		a.Context = make(map[string]any, len(flat))
	}
	for k, v := range flat {
		if _, err := strconv.ParseInt(k, 10, 64); err == nil {
			serialized, ok := v.(string)
			if !ok {
				return fmt.Errorf("attack context key %s: expected serialized alert, got %T", k, v)
			}
			alert, err := DeserializeAlert(serialized)
			if err != nil {
				return fmt.Errorf("attack context key %s: %w", k, err)
			}
			a.Context[k] = alert
			continue
		}
		a.Context[k] = v
	}
	return nil
}

// Tracks reports whether the attack already stores a byte-equal copy
// of the alert anywhere in its context.
func (a *Attack) Tracks(alert *Alert) bool {
	for _, node := range a.Graph.All() {
		if stored := a.AlertFor(node); stored != nil && stored.Equal(alert) {
			return true
		}
	}
	return false
}

// String returns a debug-friendly representation of the attack.
func (a *Attack) String() string {
	return fmt.Sprintf("attack %d on graph %d node %d",
		a.Identifier, a.Graph.Identifier, a.Front.Identifier)
}
