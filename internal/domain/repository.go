package domain

import (
	"context"
)

// Repository persists the event history, batch reports and custom rule
// configurations. The event history is read by the batch pipeline and
// appended by an external actuator; Kestrel itself only appends in tests
// and seeding.
type Repository interface {
	// SaveEvent appends an access event to the history.
	SaveEvent(ctx context.Context, event *AccessEvent) error

	// ListEvents returns the full history in insertion order.
	ListEvents(ctx context.Context) ([]AccessEvent, error)

	// SaveReport stores a batch analysis report.
	SaveReport(ctx context.Context, report *Report) error

	// GetReport retrieves a report by ID.
	GetReport(ctx context.Context, reportID string) (*Report, error)

	// SaveRuleConfig stores a custom scoring rule.
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error

	// GetRuleConfig retrieves a custom rule by ID.
	GetRuleConfig(ctx context.Context, ruleID string) (*RuleConfig, error)

	// ListRuleConfigs returns all enabled custom rules.
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}
