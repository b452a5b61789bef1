// Package profile computes per-credential behavioral baselines.
package profile

import (
	"github.com/opensource-access/kestrel/internal/domain"
)

// Build computes the per-credential profiles from the deduplicated,
// time-ordered event set. Pure function: recomputed wholesale every batch
// run, never updated incrementally.
func Build(events []domain.AccessEvent) map[string]domain.CredentialProfile {
	type sums struct {
		entrySum, exitSum     int
		entryCount, exitCount int
	}

	byCredential := make(map[string]*sums)
	for i := range events {
		ev := &events[i]
		s, ok := byCredential[ev.CredentialID]
		if !ok {
			s = &sums{}
			byCredential[ev.CredentialID] = s
		}
		switch ev.ReaderKind {
		case domain.ReaderEntry:
			s.entrySum += ev.Hour()
			s.entryCount++
		case domain.ReaderExit:
			s.exitSum += ev.Hour()
			s.exitCount++
		}
	}

	profiles := make(map[string]domain.CredentialProfile, len(byCredential))
	for credentialID, s := range byCredential {
		p := domain.CredentialProfile{CredentialID: credentialID}
		if s.entryCount > 0 {
			mean := float64(s.entrySum) / float64(s.entryCount)
			p.MeanEntryHour = &mean
		}
		if s.exitCount > 0 {
			mean := float64(s.exitSum) / float64(s.exitCount)
			p.MeanExitHour = &mean
		}
		profiles[credentialID] = p
	}
	return profiles
}
