package record

import (
	"strconv"
	"strings"
)

// unit suffixes used by ranking pages for abbreviated figures.
var unitScale = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
	'T': 1e12,
}

// ParseValue parses a source-formatted numeric string into a float64.
// It tolerates the decorations ranking pages attach to figures: thousands
// separators, "$" prefixes, "%" suffixes, K/M/B/T unit abbreviations,
// explicit "+" signs and the unicode minus. Placeholder strings such as
// "N/A", "---" or "" report ok=false so callers can keep the metric absent
// instead of recording a fake zero.
func ParseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" || s == "-" || s == "--" || s == "---" {
		return 0, false
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "−", "-") // unicode minus
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	scale := 1.0
	if last := s[len(s)-1]; last >= 'A' && last <= 'Z' || last >= 'a' && last <= 'z' {
		mul, ok := unitScale[byte(strings.ToUpper(string(last))[0])]
		if !ok {
			return 0, false
		}
		scale = mul
		s = strings.TrimSpace(s[:len(s)-1])
		s = strings.TrimPrefix(s, "$")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * scale, true
}
