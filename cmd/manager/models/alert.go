package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// InvalidAlertError is returned when an alert doesn't conform to the
// expected format. Alerts failing validation are dropped with a
// warning and never mutate state.
type InvalidAlertError struct {
	Field  string
	Reason string
}

func (e *InvalidAlertError) Error() string {
	return fmt.Sprintf("invalid alert field %q: %s", e.Field, e.Reason)
}

// translation maps a source path in the raw alert to a flat typed
// attribute. The parser walks this table, not the input: unknown
// fields in the payload are ignored, absent optional branches are
// silently skipped.
type translation struct {
	path       []string
	attr       string
	stringList bool
}

var translations = []translation{
	{path: []string{"rule", "id"}, attr: "rule_id"},
	{path: []string{"rule", "mitre", "id"}, attr: "rule_mitre_ids", stringList: true},
	{path: []string{"syscheck", "sha1_after"}, attr: "file_hash"},
	{path: []string{"syscheck", "path"}, attr: "file_path"},
	{path: []string{"syscheck", "perm_after"}, attr: "file_permissions"},
	{path: []string{"agent", "id"}, attr: "agent_id"},
	{path: []string{"agent", "ip"}, attr: "agent_ip"},
	{path: []string{"data", "dst_ip"}, attr: "connection_dst_ip"},
	{path: []string{"data", "src_port"}, attr: "connection_src_port"},
	{path: []string{"data", "dst_port"}, attr: "connection_dst_port"},
	{path: []string{"data", "pid"}, attr: "connection_pid"},
}

// Alert is a parsed event with flat typed attributes. Attributes only
// exist when the corresponding branch was present in the raw payload.
type Alert struct {
	attrs map[string]any
}

// ParseAlert normalises a raw alert payload into a typed Alert.
func ParseAlert(raw map[string]any) (*Alert, error) {
	a := &Alert{attrs: make(map[string]any)}
	for _, t := range translations {
		value, present, err := walk(raw, t.path)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		if t.stringList {
			list, err := asStringList(value, t.path)
			if err != nil {
				return nil, err
			}
			a.attrs[t.attr] = list
			continue
		}
		if !isPrimitive(value) {
			return nil, &InvalidAlertError{
				Field:  t.path[len(t.path)-1],
				Reason: fmt.Sprintf("expected JSON primitive, got %T", value),
			}
		}
		a.attrs[t.attr] = value
	}
	return a, nil
}

// ParseAlertJSON parses a raw JSON payload into a typed Alert.
func ParseAlertJSON(payload []byte) (*Alert, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &InvalidAlertError{Field: "", Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}
	return ParseAlert(raw)
}

func walk(raw map[string]any, path []string) (any, bool, error) {
	current := raw
	for i, field := range path {
		value, ok := current[field]
		if !ok {
			return nil, false, nil
		}
		if i == len(path)-1 {
			return value, true, nil
		}
		next, ok := value.(map[string]any)
		if !ok {
			return nil, false, &InvalidAlertError{
				Field:  field,
				Reason: fmt.Sprintf("expected object, got %T", value),
			}
		}
		current = next
	}
	return nil, false, nil
}

func isPrimitive(value any) bool {
	switch value.(type) {
	case string, bool, float64, int, int64, []any:
		return true
	default:
		return false
	}
}

func asStringList(value any, path []string) ([]string, error) {
	raw, ok := value.([]any)
	if !ok {
		return nil, &InvalidAlertError{
			Field:  path[len(path)-1],
			Reason: fmt.Sprintf("expected list, got %T", value),
		}
	}
	list := make([]string, 0, len(raw))
	for _, e := range raw {
		s, ok := e.(string)
		if !ok {
			return nil, &InvalidAlertError{
				Field:  path[len(path)-1],
				Reason: fmt.Sprintf("expected string list element, got %T", e),
			}
		}
		list = append(list, s)
	}
	return list, nil
}

// Get returns a bound attribute by name.
func (a *Alert) Get(name string) (any, bool) {
	v, ok := a.attrs[name]
	return v, ok
}

// RuleID returns the originating rule identifier, or "" if unknown.
func (a *Alert) RuleID() string {
	if v, ok := a.attrs["rule_id"]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// Techniques returns the associated MITRE technique identifiers.
func (a *Alert) Techniques() []string {
	if v, ok := a.attrs["rule_mitre_ids"]; ok {
		if list, ok := v.([]string); ok {
			return list
		}
	}
	return nil
}

// Triggers checks if the alert's techniques cover the attack node.
func (a *Alert) Triggers(node *AttackNode) bool {
	for _, t := range a.Techniques() {
		if t == node.Technique {
			return true
		}
	}
	return false
}

// Serialize returns the alert's stable serialized form. Two alerts
// are considered the same event iff their serialized forms are
// byte-equal.
func (a *Alert) Serialize() string {
	// Map keys are sorted by encoding/json, making this canonical.
	b, err := json.Marshal(a.attrs)
	if err != nil {
		return ""
	}
	return string(b)
}

// DeserializeAlert rebuilds an alert from its serialized form.
func DeserializeAlert(serialized string) (*Alert, error) {
	var attrs map[string]any
	if err := json.Unmarshal([]byte(serialized), &attrs); err != nil {
		return nil, fmt.Errorf("deserialize alert: %w", err)
	}
	// rule_mitre_ids round-trips through []any
	if v, ok := attrs["rule_mitre_ids"]; ok {
		if raw, ok := v.([]any); ok {
			list := make([]string, 0, len(raw))
			for _, e := range raw {
				list = append(list, fmt.Sprintf("%v", e))
			}
			attrs["rule_mitre_ids"] = list
		}
	}
	return &Alert{attrs: attrs}, nil
}

// Equal reports whether two alerts are byte-equal in serialized form.
func (a *Alert) Equal(other *Alert) bool {
	if other == nil {
		return false
	}
	return bytes.Equal([]byte(a.Serialize()), []byte(other.Serialize()))
}
