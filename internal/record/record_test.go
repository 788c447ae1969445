package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Pancake Swap", "pancakeswap"},
		{"pancakeswap", "pancakeswap"},
		{"  PANCAKE\tSWAP  ", "pancakeswap"},
		{"Uniswap V3", "uniswapv3"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeName(c.in), "input %q", c.in)
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12345", 12345, true},
		{"12,345", 12345, true},
		{"1.2M", 1.2e6, true},
		{"3.5K", 3500, true},
		{"2B", 2e9, true},
		{"$1.2M", 1.2e6, true},
		{"+5.4%", 5.4, true},
		{"-3.2%", -3.2, true},
		{"−3.2%", -3.2, true}, // unicode minus
		{"0", 0, true},
		{"N/A", 0, false},
		{"---", 0, false},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseValue(c.in)
		assert.Equal(t, c.ok, ok, "ok for %q", c.in)
		if c.ok {
			assert.InDelta(t, c.want, got, 1e-9, "value for %q", c.in)
		}
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "$1.20M", FormatValue(1_200_000, "$"))
	assert.Equal(t, "$500.0K", FormatValue(500_000, "$"))
	assert.Equal(t, "2.50B", FormatValue(2_500_000_000, ""))
	assert.Equal(t, "42", FormatValue(42, ""))
	assert.Equal(t, "-$1.20M", FormatValue(-1_200_000, "$"))
}

func TestFormatChange(t *testing.T) {
	assert.Equal(t, "+5.40%", FormatChange(5.4))
	assert.Equal(t, "-3.20%", FormatChange(-3.2))
}

func TestObservePrimaryTracksRunningMax(t *testing.T) {
	e := &CanonicalEntity{}
	assert.True(t, e.ObservePrimary(100))
	assert.False(t, e.ObservePrimary(50))
	assert.False(t, e.ObservePrimary(100)) // ties never displace
	assert.True(t, e.ObservePrimary(150))

	max, ok := e.MaxPrimary()
	assert.True(t, ok)
	assert.Equal(t, 150.0, max)
}

func TestMetricAbsentVsZero(t *testing.T) {
	r := RawRecord{Metrics: map[string]float64{"users": 0}}
	v, ok := r.Metric("users")
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)

	_, ok = r.Metric("volume")
	assert.False(t, ok)
}
