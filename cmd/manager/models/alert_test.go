package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wazuhAlert() map[string]any {
	return map[string]any{
		"rule": map[string]any{
			"id":          "100003",
			"description": "Execute permission added to python script.",
			"mitre": map[string]any{
				"id": []any{"T1222.002"},
			},
		},
		"agent": map[string]any{
			"id": "001",
			"ip": "192.168.200.200",
		},
		"syscheck": map[string]any{
			"path":       "/tmp/zerologon_tester.py",
			"perm_after": "rwxr-xr-x",
			"sha1_after": "84dc56d99268f70619532536f8445f56609547c7",
		},
		"decoder": map[string]any{
			"name": "syscheck_integrity_changed",
		},
	}
}

func TestParseAlert_TranslatesKnownFields(t *testing.T) {
	alert, err := ParseAlert(wazuhAlert())
	require.NoError(t, err)

	v, ok := alert.Get("rule_id")
	require.True(t, ok)
	assert.Equal(t, "100003", v)

	v, ok = alert.Get("file_path")
	require.True(t, ok)
	assert.Equal(t, "/tmp/zerologon_tester.py", v)

	v, ok = alert.Get("file_permissions")
	require.True(t, ok)
	assert.Equal(t, "rwxr-xr-x", v)

	v, ok = alert.Get("agent_ip")
	require.True(t, ok)
	assert.Equal(t, "192.168.200.200", v)

	assert.Equal(t, []string{"T1222.002"}, alert.Techniques())
	assert.Equal(t, "100003", alert.RuleID())
}

func TestParseAlert_SkipsAbsentBranches(t *testing.T) {
	alert, err := ParseAlert(map[string]any{
		"rule": map[string]any{"id": "42"},
	})
	require.NoError(t, err)

	_, ok := alert.Get("file_path")
	assert.False(t, ok)
	_, ok = alert.Get("agent_id")
	assert.False(t, ok)
	assert.Empty(t, alert.Techniques())
}

func TestParseAlert_RejectsMalformedIntermediate(t *testing.T) {
	_, err := ParseAlert(map[string]any{
		"rule": "not-an-object",
	})
	require.Error(t, err)
	var invalid *InvalidAlertError
	assert.ErrorAs(t, err, &invalid)
}

func TestParseAlert_RejectsNonPrimitiveLeaf(t *testing.T) {
	_, err := ParseAlert(map[string]any{
		"rule": map[string]any{
			"id": map[string]any{"nested": true},
		},
	})
	require.Error(t, err)
	var invalid *InvalidAlertError
	assert.ErrorAs(t, err, &invalid)
}

func TestParseAlert_RejectsNonStringTechnique(t *testing.T) {
	_, err := ParseAlert(map[string]any{
		"rule": map[string]any{
			"mitre": map[string]any{"id": []any{1.0}},
		},
	})
	require.Error(t, err)
}

func TestParseAlertJSON_RejectsNonObject(t *testing.T) {
	_, err := ParseAlertJSON([]byte(`[1, 2, 3]`))
	require.Error(t, err)
	var invalid *InvalidAlertError
	assert.ErrorAs(t, err, &invalid)
}

func TestAlertSerializeRoundTrip(t *testing.T) {
	alert, err := ParseAlert(wazuhAlert())
	require.NoError(t, err)

	restored, err := DeserializeAlert(alert.Serialize())
	require.NoError(t, err)

	assert.True(t, alert.Equal(restored))
	assert.Equal(t, alert.Techniques(), restored.Techniques())
	assert.Equal(t, alert.Serialize(), restored.Serialize())
}

func TestAlertEqual(t *testing.T) {
	a, err := ParseAlert(wazuhAlert())
	require.NoError(t, err)
	b, err := ParseAlert(wazuhAlert())
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	raw := wazuhAlert()
	raw["agent"].(map[string]any)["ip"] = "10.0.0.1"
	c, err := ParseAlert(raw)
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestAlertTriggers(t *testing.T) {
	alert, err := ParseAlert(wazuhAlert())
	require.NoError(t, err)

	matching := NewAttackNode(1, "T1222.002", nil, nil, "")
	other := NewAttackNode(2, "T1059", nil, nil, "")
	assert.True(t, alert.Triggers(matching))
	assert.False(t, alert.Triggers(other))
}
