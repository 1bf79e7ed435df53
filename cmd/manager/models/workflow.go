package models

// Workflow is a remediation action reachable via an HTTP endpoint.
type Workflow struct {
	Identifier  int64
	Name        string
	Description string
	URL         string
	// EffectiveAttacks lists the MITRE techniques this workflow can
	// mitigate.
	EffectiveAttacks []string
	Cost             int
	// Params and Args build the HTTP request body, with the same
	// shapes and binding rules as Condition.
	Params map[string]any
	Args   map[string]any
	// Conditions must all be met for the workflow to be executable.
	Conditions []*Condition

	// Transient execution state.
	Executed bool
	Results  map[string]any
}

// Mitigates reports whether the workflow covers the given technique.
func (w *Workflow) Mitigates(technique string) bool {
	for _, t := range w.EffectiveAttacks {
		if t == technique {
			return true
		}
	}
	return false
}

// RequestBody binds the workflow's arguments against the alert and
// merges them with the constant params, producing the HTTP request
// body. The second return value is false when a required argument
// can't be resolved; the workflow must not be invoked in that case.
func (w *Workflow) RequestBody(alert *Alert) (map[string]any, bool) {
	return bindParameters(w.Params, w.Args, alert)
}
