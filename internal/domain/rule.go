package domain

// RuleConfig defines an operator-supplied scoring rule evaluated alongside
// the built-in sequence rules. The expression is CEL and must return a
// bool; when it evaluates true the rule contributes Points to the event's
// score and appends Reason.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression over the replay context (current event, previous
	// event, dwell minutes, profile means).
	Expression string `json:"expression"`

	// Points added to the event score when the expression is true.
	Points int `json:"points"`

	// Reason appended to the result when the rule triggers.
	Reason string `json:"reason"`

	// Whether rule is active.
	Enabled bool `json:"enabled"`
}
