package record

import "fmt"

// FormatValue renders a metric value on the fixed unit-scale ladder used for
// every numeric figure the pipeline emits: billions and millions with two
// decimals, thousands with one, anything smaller as a plain integer. prefix
// ("$" for monetary metrics) is applied before the digits.
func FormatValue(v float64, prefix string) string {
	neg := ""
	if v < 0 {
		neg = "-"
		v = -v
	}
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%s%s%.2fB", neg, prefix, v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%s%s%.2fM", neg, prefix, v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%s%s%.1fK", neg, prefix, v/1e3)
	default:
		return fmt.Sprintf("%s%s%.0f", neg, prefix, v)
	}
}

// FormatChange renders a percentage-change metric with an explicit sign.
func FormatChange(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}
