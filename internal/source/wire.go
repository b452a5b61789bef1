// Package source provides event source adapters: the remote live feed and
// the bulk historical origins (SQL store or JSON snapshot).
package source

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/opensource-access/kestrel/internal/domain"
)

// wireEvent is the raw record shape reported by the remote feed and the
// snapshot file. All fields except credential_id and timestamp are optional.
type wireEvent struct {
	CredentialID    string `json:"credential_id"`
	Timestamp       string `json:"timestamp"`
	ReaderKind      string `json:"reader_kind"`
	AccessPermitted *bool  `json:"access_permitted"`
	Fraudulent      *bool  `json:"fraudulent"`
}

// timestampLayouts accepted on the wire: ISO-8601 with or without a zone.
// Zoneless inputs are taken as UTC so hour math stays deterministic.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses an ISO-8601 timestamp. An unparseable value is an
// error: the record is rejected, never defaulted to "now" - a fabricated
// instant would corrupt chronological ordering and every time-based rule.
func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

// parseReaderKind maps the wire values "entrada"/"saida" to reader kinds.
func parseReaderKind(raw string) (domain.ReaderKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "entrada":
		return domain.ReaderEntry, nil
	case "saida":
		return domain.ReaderExit, nil
	default:
		return "", fmt.Errorf("unknown reader kind %q", raw)
	}
}

// decodeEvent validates and converts one wire record. Missing required
// fields or an unparseable timestamp reject the record.
func decodeEvent(w wireEvent, origin domain.Origin) (*domain.AccessEvent, error) {
	if w.CredentialID == "" {
		return nil, fmt.Errorf("missing credential_id")
	}
	if w.Timestamp == "" {
		return nil, fmt.Errorf("missing timestamp")
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return nil, err
	}

	kind, err := parseReaderKind(w.ReaderKind)
	if err != nil {
		return nil, err
	}

	return &domain.AccessEvent{
		CredentialID:    w.CredentialID,
		Timestamp:       ts,
		RawTimestamp:    w.Timestamp,
		ReaderKind:      kind,
		AccessPermitted: w.AccessPermitted,
		Fraudulent:      w.Fraudulent,
		Origin:          origin,
	}, nil
}

// decodeBatch converts a keyed record map, skipping malformed records.
// Records are ordered by their opaque source key so repeated fetches of
// the same data decode to the same sequence.
func decodeBatch(records map[string]wireEvent, origin domain.Origin) []domain.AccessEvent {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	events := make([]domain.AccessEvent, 0, len(records))
	for _, k := range keys {
		ev, err := decodeEvent(records[k], origin)
		if err != nil {
			slog.Warn("skipping malformed event record",
				"key", k,
				"origin", origin,
				"error", err,
			)
			continue
		}
		events = append(events, *ev)
	}
	return events
}
