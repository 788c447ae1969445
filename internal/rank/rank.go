// Package rank orders canonical entities into a bounded leaderboard.
package rank

import (
	"sort"
	"time"

	"chainrank/internal/record"
)

// Build ranks entities by the named metric, descending, with ties broken by
// ascending display name and then identity key so the order is total even
// when distinct group keys share a display name. Entities that never
// reported the metric are excluded rather than sorted as zero. The result is
// truncated to limit; fewer qualifying entities are not padded.
//
// Build is pure: the same inputs always produce the same leaderboard.
func Build(entities map[string]*record.CanonicalEntity, metric string, limit int, now time.Time) *record.Leaderboard {
	qualified := make([]*record.CanonicalEntity, 0, len(entities))
	for _, e := range entities {
		if _, ok := e.Metric(metric); ok {
			qualified = append(qualified, e)
		}
	}

	sort.Slice(qualified, func(i, j int) bool {
		vi, _ := qualified[i].Metric(metric)
		vj, _ := qualified[j].Metric(metric)
		if vi != vj {
			return vi > vj
		}
		if qualified[i].DisplayName != qualified[j].DisplayName {
			return qualified[i].DisplayName < qualified[j].DisplayName
		}
		return qualified[i].IdentityKey < qualified[j].IdentityKey
	})

	if limit > 0 && len(qualified) > limit {
		qualified = qualified[:limit]
	}

	return &record.Leaderboard{
		Entries:  qualified,
		Metric:   metric,
		Limit:    limit,
		RankedAt: now,
	}
}
