package domain

import (
	"context"
)

// Alert is a one-way security notification about a fraudulent access.
type Alert struct {
	CredentialID string `json:"credentialId"`

	// Timestamp is the raw timestamp string the source reported.
	Timestamp string `json:"timestamp"`

	// Message is free text for the receiving channel.
	Message string `json:"message"`
}

// AlertSink delivers alerts. Implementations must be safe for concurrent
// use: the monitor loop and the dispatcher invoke sinks from different
// goroutines. Delivery failure is the caller's to log; it is never retried
// for the same event identity.
type AlertSink interface {
	Notify(ctx context.Context, alert Alert) error
}
