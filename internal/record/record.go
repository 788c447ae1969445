// Package record defines the data model shared by the aggregation pipeline:
// raw per-source rows, merged canonical entities and the final leaderboard.
package record

import (
	"strings"
	"time"
	"unicode"
)

// RawRecord is one row extracted from one source at one point in time.
// Metrics that a source did not report are absent from the map; a missing
// metric is never the same thing as a reported zero.
type RawRecord struct {
	SourceID    string             `json:"source"`
	DisplayName string             `json:"name"`
	GroupKey    string             `json:"groupKey,omitempty"`
	Category    string             `json:"category,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`
	LogoRef     string             `json:"logo,omitempty"`
	ExtractedAt time.Time          `json:"extractedAt"`
}

// Metric returns the named metric and whether the source reported it.
func (r *RawRecord) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	return v, ok
}

// CanonicalEntity is the merged, deduplicated representation of one
// real-world entity across sources. It is mutated only by the merger during
// the fold and treated as frozen afterwards.
type CanonicalEntity struct {
	IdentityKey string             `json:"key"`
	DisplayName string             `json:"name"`
	Category    string             `json:"category,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`
	LogoRef     string             `json:"logo,omitempty"`
	Sources     []string           `json:"sources"`

	// maxPrimary tracks the largest primary-metric value seen so far among
	// contributing records. Metadata (name, category, logo) always follows
	// the record that holds this maximum, never the last record folded.
	maxPrimary float64
	hasPrimary bool
}

// Metric returns the named metric and whether any contributing record
// reported it.
func (e *CanonicalEntity) Metric(name string) (float64, bool) {
	v, ok := e.Metrics[name]
	return v, ok
}

// MaxPrimary reports the running maximum used for metadata selection.
func (e *CanonicalEntity) MaxPrimary() (float64, bool) {
	return e.maxPrimary, e.hasPrimary
}

// ObservePrimary records a contributing record's primary-metric value and
// reports whether it strictly exceeds the running maximum, meaning the
// caller should adopt that record's descriptive attributes.
func (e *CanonicalEntity) ObservePrimary(v float64) bool {
	if !e.hasPrimary || v > e.maxPrimary {
		e.maxPrimary = v
		e.hasPrimary = true
		return true
	}
	return false
}

// Leaderboard is an ordered, size-bounded ranking result. It is created once
// per run and never mutated; re-ranking produces a new Leaderboard.
type Leaderboard struct {
	Entries  []*CanonicalEntity `json:"entries"`
	Metric   string             `json:"metric"`
	Limit    int                `json:"limit"`
	RankedAt time.Time          `json:"rankedAt"`
}

// NormalizeName derives the fallback identity key from a free-text display
// name: case-folded with all whitespace removed, so "Pancake Swap" and
// "pancakeswap" collapse to the same key.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
