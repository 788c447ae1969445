// Package envelope packages a run's outcome into the machine-readable result
// boundary: leaderboard data, rendered image, caption and timestamp on
// success, a single error field on failure.
package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chainrank/internal/record"
)

// Result is the external result envelope. Exactly one of the two shapes is
// ever populated: a successful run fills everything but Error; a failed run
// fills only Error.
type Result struct {
	Image     []byte                    `json:"image,omitempty"` // PNG bytes, base64 in JSON
	Caption   string                    `json:"caption,omitempty"`
	Timestamp string                    `json:"timestamp,omitempty"` // ISO-8601 with zone offset
	RunID     string                    `json:"runId,omitempty"`
	Interval  string                    `json:"interval,omitempty"`
	Data      []*record.CanonicalEntity `json:"data,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

// Package builds a success envelope. image may be nil when rendering was
// skipped or failed; the textual leaderboard is still returned.
func Package(lb *record.Leaderboard, image []byte, caption, runID, interval string, now time.Time) *Result {
	return &Result{
		Image:     image,
		Caption:   caption,
		Timestamp: now.Format(time.RFC3339),
		RunID:     runID,
		Interval:  interval,
		Data:      lb.Entries,
	}
}

// Fail builds an error-only envelope. It never carries partial data.
func Fail(err error) *Result {
	return &Result{Error: err.Error()}
}

// ToJSON serializes the envelope.
func (r *Result) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// CaptionSpec is the fixed textual template captions are interpolated into.
type CaptionSpec struct {
	Title        string // e.g. "TOP BNBCHAIN DAPPS"
	Subtitle     string // e.g. "Top @BNBCHAIN Ecosystem Projects by Active Users (%s)"
	SourceCredit string // e.g. "DappBay & @ChainMindX"
	Hashtags     string // e.g. "#BNBChain #Dapps #ChainMind"
	MetricPrefix string // "$" for monetary metrics
	ShowMetric   bool   // append "(value)" after each name
}

// Caption interpolates leaderboard entries into the caption template. The
// list holds exactly as many lines as the leaderboard has entries; a short
// leaderboard is never padded.
func Caption(lb *record.Leaderboard, spec CaptionSpec, dateStr string) string {
	lines := make([]string, 0, len(lb.Entries))
	for i, e := range lb.Entries {
		line := fmt.Sprintf("%d. %s", i+1, e.DisplayName)
		if spec.ShowMetric {
			if v, ok := e.Metric(lb.Metric); ok {
				line += fmt.Sprintf(" (%s)", record.FormatValue(v, spec.MetricPrefix))
			}
		}
		lines = append(lines, line)
	}

	return fmt.Sprintf(`🏆 %s - %s

%s 👇

%s

Source: %s
%s`, spec.Title, dateStr, spec.Subtitle, strings.Join(lines, "\n"), spec.SourceCredit, spec.Hashtags)
}

// FormatDate renders a timestamp the way captions and footers display it.
func FormatDate(t time.Time) string {
	return t.Format("02 January 2006")
}

// intervalLong maps interval flags to badge labels.
var intervalLong = map[string]string{
	"24h": "24 HOURS",
	"7d":  "7 DAYS",
	"30d": "30 DAYS",
}

// intervalShort maps interval flags to caption labels.
var intervalShort = map[string]string{
	"24h": "24H",
	"7d":  "7D",
	"30d": "30D",
}

// LongInterval returns the badge label for an interval flag, falling back to
// the uppercased flag for unknown intervals.
func LongInterval(interval string) string {
	if l, ok := intervalLong[interval]; ok {
		return l
	}
	return strings.ToUpper(interval)
}

// ShortInterval returns the caption label for an interval flag.
func ShortInterval(interval string) string {
	if l, ok := intervalShort[interval]; ok {
		return l
	}
	return strings.ToUpper(interval)
}
