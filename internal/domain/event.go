package domain

import (
	"time"
)

// ReaderKind identifies the sensor that recorded an access event.
type ReaderKind string

const (
	ReaderEntry ReaderKind = "ENTRY"
	ReaderExit  ReaderKind = "EXIT"
)

// Origin records which source an event came from. Provenance only;
// it carries no scoring semantics.
type Origin string

const (
	OriginHistorical Origin = "HISTORICAL"
	OriginLive       Origin = "LIVE"
)

// AccessEvent is a single badge read at an entry or exit reader.
// Events are immutable once constructed by a source adapter.
type AccessEvent struct {
	CredentialID string     `json:"credentialId"`
	Timestamp    time.Time  `json:"timestamp"`
	ReaderKind   ReaderKind `json:"readerKind"`

	// RawTimestamp is the timestamp string exactly as the source reported
	// it. Two origins may report the same instant with different precision,
	// so deduplication keys on the raw string, not the parsed instant.
	RawTimestamp string `json:"rawTimestamp"`

	// AccessPermitted is nil when the source did not report the field.
	AccessPermitted *bool `json:"accessPermitted,omitempty"`

	// Fraudulent is the upstream system's own precomputed verdict.
	// Only the live feed populates it; the monitor path reads it.
	Fraudulent *bool `json:"fraudulent,omitempty"`

	Origin Origin `json:"origin"`
}

// IdentityKey returns the composite key used to deduplicate events
// across sources.
func (e *AccessEvent) IdentityKey() string {
	return e.CredentialID + "|" + e.RawTimestamp
}

// Hour returns the event's hour of day in [0,24).
func (e *AccessEvent) Hour() int {
	return e.Timestamp.Hour()
}

// MinutesBetween returns the absolute elapsed time between two events
// in minutes.
func MinutesBetween(a, b *AccessEvent) float64 {
	d := b.Timestamp.Sub(a.Timestamp)
	if d < 0 {
		d = -d
	}
	return d.Minutes()
}
