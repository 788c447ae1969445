// Package merge folds raw records from all sources into canonical entities,
// one per identity key, reconciling conflicting attribute values.
package merge

import (
	"sort"

	"github.com/antzucaro/matchr"
	"go.uber.org/zap"

	"chainrank/internal/record"
)

// similarityWarn is the JaroWinkler score above which two distinct canonical
// names are flagged as a suspected missed fold. Flagged pairs are only
// logged; folding on fuzzy similarity would over-merge genuinely distinct
// entities.
const similarityWarn = 0.95

// Policy states which metrics are additive across sub-entities sharing an
// identity key, and which metric drives metadata selection. Keeping this
// explicit configuration (rather than per-source heuristics) makes the
// reconciliation auditable.
type Policy struct {
	Additive map[string]bool
	Primary  string
}

// NewPolicy builds a policy from the additive metric names and the run's
// primary ranking metric.
func NewPolicy(primary string, additive ...string) Policy {
	set := make(map[string]bool, len(additive))
	for _, m := range additive {
		set[m] = true
	}
	return Policy{Additive: set, Primary: primary}
}

// IsAdditive reports whether values of the named metric should be summed.
func (p Policy) IsAdditive(name string) bool {
	return p.Additive[name]
}

// IdentityKey derives the grouping key for a record: the source-supplied
// group key when present, otherwise the normalized display name.
func IdentityKey(r *record.RawRecord) string {
	if r.GroupKey != "" {
		return r.GroupKey
	}
	return record.NormalizeName(r.DisplayName)
}

// Merge folds records into canonical entities keyed by identity.
//
// Additive metrics are summed, so their merged value is independent of input
// order. Non-additive metrics are first-wins. Descriptive attributes (name,
// category, logo) track the contributing record with the largest value of
// the primary metric, maintained as a running maximum: a later record only
// takes over the metadata when it strictly exceeds every record seen so far.
func Merge(records []record.RawRecord, policy Policy, logger *zap.Logger) map[string]*record.CanonicalEntity {
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make(map[string]*record.CanonicalEntity)
	for i := range records {
		r := &records[i]
		if r.DisplayName == "" && r.GroupKey == "" {
			continue
		}
		key := IdentityKey(r)

		e, ok := out[key]
		if !ok {
			e = &record.CanonicalEntity{
				IdentityKey: key,
				Metrics:     make(map[string]float64, len(r.Metrics)),
			}
			out[key] = e
		}

		for name, v := range r.Metrics {
			if policy.IsAdditive(name) {
				e.Metrics[name] += v
			} else if _, seen := e.Metrics[name]; !seen {
				e.Metrics[name] = v
			}
		}

		primary, hasPrimary := r.Metric(policy.Primary)
		if !hasPrimary && e.DisplayName != "" {
			// A record with no primary metric never displaces metadata
			// chosen from one that had it.
			e.Sources = appendSource(e.Sources, r.SourceID)
			continue
		}
		adopt := e.DisplayName == ""
		if hasPrimary && e.ObservePrimary(primary) {
			adopt = true
		}
		if adopt {
			e.DisplayName = r.DisplayName
			e.Category = r.Category
			e.LogoRef = r.LogoRef
		}
		e.Sources = appendSource(e.Sources, r.SourceID)
	}

	auditNearDuplicates(out, logger)
	return out
}

func appendSource(sources []string, id string) []string {
	for _, s := range sources {
		if s == id {
			return sources
		}
	}
	return append(sources, id)
}

// auditNearDuplicates logs canonical name pairs that look like the same
// entity but did not share an identity key. Deliberately warn-only.
func auditNearDuplicates(entities map[string]*record.CanonicalEntity, logger *zap.Logger) {
	keys := make([]string, 0, len(entities))
	for k := range entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a, b := entities[keys[i]], entities[keys[j]]
			if a.DisplayName == "" || b.DisplayName == "" {
				continue
			}
			na, nb := record.NormalizeName(a.DisplayName), record.NormalizeName(b.DisplayName)
			if na == nb {
				continue // same name, distinct group keys: trust the sources
			}
			if sim := matchr.JaroWinkler(na, nb, false); sim >= similarityWarn {
				logger.Warn("suspected duplicate entities not folded",
					zap.String("left", a.DisplayName),
					zap.String("right", b.DisplayName),
					zap.Float64("similarity", sim))
			}
		}
	}
}
