package domain

import (
	"time"
)

// Classification is the tier assigned to a scored event.
type Classification string

const (
	ClassNormal     Classification = "NORMAL"
	ClassSuspicious Classification = "SUSPICIOUS"
	ClassFraudulent Classification = "FRAUDULENT"
)

// ScoreResult is the rule engine's verdict for a single event. Produced
// once during a chronological replay and never mutated afterward.
type ScoreResult struct {
	CredentialID   string         `json:"credentialId"`
	Timestamp      time.Time      `json:"timestamp"`
	ReaderKind     ReaderKind     `json:"readerKind"`
	Score          int            `json:"score"`
	Classification Classification `json:"classification"`

	// Reasons holds one human-readable entry per triggered rule, in
	// rule evaluation order.
	Reasons []string `json:"reasons,omitempty"`
}

// Report is the outcome of one batch analysis run.
type Report struct {
	ID          string        `json:"id"`
	GeneratedAt time.Time     `json:"generatedAt"`
	Results     []ScoreResult `json:"results"`

	// Counts is the classification distribution, a pure fold over Results.
	Counts map[Classification]int `json:"counts"`

	// NoData is set when both origins were empty or unreachable. Callers
	// get an explicit empty report rather than an error.
	NoData bool `json:"noData"`

	HistoricalCount int `json:"historicalCount"`
	LiveCount       int `json:"liveCount"`
	DuplicateCount  int `json:"duplicateCount"`
}

// CountClassifications folds a result sequence into a distribution.
func CountClassifications(results []ScoreResult) map[Classification]int {
	counts := make(map[Classification]int, 3)
	for _, r := range results {
		counts[r.Classification]++
	}
	return counts
}
