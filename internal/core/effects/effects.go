// Package effects defines effect types as data structures representing I/O operations.
// Transitions in the functional core return effects; the app layer interprets them
// after the new issue state has been persisted.
package effects

// Effect is the base interface for all effects.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// SystemMessageEffect appends a system-authored message to an issue's thread.
type SystemMessageEffect struct {
	IssueID string
	Text    string
}

func (e SystemMessageEffect) EffectType() string { return "system_message" }

// NotifyEffect emits a fire-and-forget notification to the issue's parties.
type NotifyEffect struct {
	Kind    string // e.g., "resolution_offered", "escalated"
	IssueID string
}

func (e NotifyEffect) EffectType() string { return "notify" }

// LogEffect records an audit line for a transition worth an operator's attention.
type LogEffect struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }
