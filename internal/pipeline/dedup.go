// Package pipeline implements the batch ingestion path: merge the two
// origins, deduplicate, profile, score, report.
package pipeline

import (
	"sort"

	"github.com/opensource-access/kestrel/internal/domain"
)

// Merge unions the historical and live sets, dropping records whose
// identity key has already been seen. Historical records are consumed
// first, so a record present in both origins keeps its historical copy.
//
// The result is stably sorted ascending by timestamp; ties keep insertion
// order (historical before live). The downstream sequence rules are
// order-sensitive, so two runs over the same inputs must produce the same
// sequence.
func Merge(historical, live []domain.AccessEvent) (merged []domain.AccessEvent, duplicates int) {
	seen := make(map[string]struct{}, len(historical)+len(live))
	merged = make([]domain.AccessEvent, 0, len(historical)+len(live))

	for _, set := range [][]domain.AccessEvent{historical, live} {
		for _, ev := range set {
			key := ev.IdentityKey()
			if _, ok := seen[key]; ok {
				duplicates++
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, ev)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	return merged, duplicates
}
