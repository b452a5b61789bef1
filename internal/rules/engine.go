// Package rules implements the sequential fraud scoring engine.
package rules

import (
	"math"

	"github.com/opensource-access/kestrel/internal/domain"
)

// Rule point contributions. Policy constants: tune the thresholds in
// ScoringConfig, not these.
const (
	pointsInvalidSequence = 3
	pointsShortDwell      = 2
	pointsAtypicalHour    = 3
	pointsHardwareDenied  = 5
)

// Reason strings, one per built-in rule.
const (
	ReasonInvalidSequence = "duplicate reader kind in sequence"
	ReasonShortDwell      = "dwell time below threshold"
	ReasonAtypicalHour    = "hour deviates from established pattern"
	ReasonHardwareDenied  = "source system denied access"
)

// Engine replays events per credential in chronological order and scores
// each one. Replay state (the previous event per credential) is scoped to
// a single Evaluate call; nothing leaks across runs.
type Engine struct {
	cfg domain.ScoringConfig

	custom *CustomRules
}

// NewEngine creates an engine with the given scoring policy. Custom CEL
// rules can be loaded afterwards via LoadCustomRules.
func NewEngine(cfg domain.ScoringConfig) (*Engine, error) {
	custom, err := NewCustomRules()
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, custom: custom}, nil
}

// Custom returns the engine's custom rule set for loading and reloading.
func (e *Engine) Custom() *CustomRules {
	return e.custom
}

// Evaluate scores the deduplicated, time-ordered event sequence against
// the per-credential profiles. Results come back in input order, one per
// event.
func (e *Engine) Evaluate(events []domain.AccessEvent, profiles map[string]domain.CredentialProfile) []domain.ScoreResult {
	// last event per credential, for this run only
	prev := make(map[string]*domain.AccessEvent, len(profiles))

	results := make([]domain.ScoreResult, 0, len(events))
	for i := range events {
		ev := &events[i]
		results = append(results, e.scoreEvent(ev, prev[ev.CredentialID], profiles[ev.CredentialID]))

		// State advances unconditionally, whatever the classification.
		prev[ev.CredentialID] = ev
	}
	return results
}

func (e *Engine) scoreEvent(ev, last *domain.AccessEvent, profile domain.CredentialProfile) domain.ScoreResult {
	score := 0
	var reasons []string

	// R1: two ENTRYs or two EXITs in a row for the same credential.
	if last != nil && last.ReaderKind == ev.ReaderKind {
		score += pointsInvalidSequence
		reasons = append(reasons, ReasonInvalidSequence)
	}

	// R2: entry followed by an implausibly quick exit.
	if last != nil && last.ReaderKind == domain.ReaderEntry && ev.ReaderKind == domain.ReaderExit {
		if domain.MinutesBetween(last, ev) < e.cfg.MinDwellMinutes {
			score += pointsShortDwell
			reasons = append(reasons, ReasonShortDwell)
		}
	}

	// R3: entry hour far from the credential's established mean. Fires
	// only when a baseline exists.
	if ev.ReaderKind == domain.ReaderEntry && profile.MeanEntryHour != nil {
		if math.Abs(float64(ev.Hour())-*profile.MeanEntryHour) >= e.cfg.HourDeviationThreshold {
			score += pointsAtypicalHour
			reasons = append(reasons, ReasonAtypicalHour)
		}
	}

	// R4: the reader hardware itself denied the access. Fires only on an
	// explicit false, never on an absent field.
	if ev.AccessPermitted != nil && !*ev.AccessPermitted {
		score += pointsHardwareDenied
		reasons = append(reasons, ReasonHardwareDenied)
	}

	// Operator-defined CEL rules see the same replay context.
	customScore, customReasons := e.custom.Evaluate(ev, last, profile)
	score += customScore
	reasons = append(reasons, customReasons...)

	return domain.ScoreResult{
		CredentialID:   ev.CredentialID,
		Timestamp:      ev.Timestamp,
		ReaderKind:     ev.ReaderKind,
		Score:          score,
		Classification: e.classify(score),
		Reasons:        reasons,
	}
}

// classify maps a score to its tier. Monotonic: a higher score never gets
// a lower tier.
func (e *Engine) classify(score int) domain.Classification {
	switch {
	case score >= e.cfg.FraudThreshold:
		return domain.ClassFraudulent
	case score >= e.cfg.SuspiciousThreshold:
		return domain.ClassSuspicious
	default:
		return domain.ClassNormal
	}
}
