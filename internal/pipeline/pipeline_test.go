package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainrank/internal/config"
	"chainrank/internal/record"
	"chainrank/internal/source"
)

type stubSource struct {
	name    string
	records []record.RawRecord
	err     error
}

func (s *stubSource) Name() string { return s.name }
func (s *stubSource) Fetch(ctx context.Context, opts source.Options) ([]record.RawRecord, error) {
	return s.records, s.err
}

func stubRecords(sourceID string, names []string, users []float64) []record.RawRecord {
	now := time.Now().UTC()
	out := make([]record.RawRecord, len(names))
	for i, name := range names {
		out[i] = record.RawRecord{
			SourceID:    sourceID,
			DisplayName: name,
			Category:    "DeFi",
			Metrics:     map[string]float64{"users": users[i]},
			ExtractedAt: now,
		}
	}
	return out
}

func testConfig(sources ...string) *config.Config {
	cfg := config.Defaults()
	cfg.Sources = sources
	return cfg
}

func TestRunProducesEnvelope(t *testing.T) {
	source.Register(&stubSource{
		name:    "stubok",
		records: stubRecords("stubok", []string{"PancakeSwap", "Venus", "Lista"}, []float64{300, 200, 100}),
	})

	var dumped string
	res := Run(context.Background(), Params{
		Cfg:      testConfig("stubok"),
		DumpHTML: func(html string) { dumped = html },
		Timeout:  time.Second,
	})

	require.Empty(t, res.Error)
	require.Len(t, res.Data, 3)
	assert.Equal(t, "PancakeSwap", res.Data[0].DisplayName)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "7d", res.Interval)
	assert.Nil(t, res.Image, "image is only rendered when requested")

	assert.Contains(t, res.Caption, "1. PancakeSwap")
	assert.Contains(t, res.Caption, "(7D)", "caption subtitle carries the interval label")

	_, err := time.Parse(time.RFC3339, res.Timestamp)
	assert.NoError(t, err)

	assert.Contains(t, dumped, "PancakeSwap", "debug hook receives the composed document")
	assert.Contains(t, dumped, "USERS: 7 DAYS")
}

func TestRunFailedSourceDoesNotAbort(t *testing.T) {
	source.Register(&stubSource{name: "stubbroken", err: source.ErrExtraction})
	source.Register(&stubSource{
		name:    "stubalive",
		records: stubRecords("stubalive", []string{"Venus"}, []float64{50}),
	})

	res := Run(context.Background(), Params{
		Cfg:     testConfig("stubbroken", "stubalive"),
		Timeout: time.Second,
	})

	require.Empty(t, res.Error)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Venus", res.Data[0].DisplayName)
}

func TestRunAllSourcesEmptyFails(t *testing.T) {
	source.Register(&stubSource{name: "stubempty"})

	res := Run(context.Background(), Params{
		Cfg:     testConfig("stubempty"),
		Timeout: time.Second,
	})

	assert.Equal(t, ErrNoData.Error(), res.Error)
	assert.Nil(t, res.Data)
	assert.Empty(t, res.Caption)
}

func TestRunUnknownSourceFailsFast(t *testing.T) {
	res := Run(context.Background(), Params{
		Cfg:     testConfig("doesnotexist"),
		Timeout: time.Second,
	})

	require.NotEmpty(t, res.Error)
	assert.Contains(t, res.Error, "doesnotexist")
}

func TestRunUnknownTimezoneFailsFast(t *testing.T) {
	cfg := testConfig("stubok")
	cfg.Timezone = "Mars/Olympus"

	res := Run(context.Background(), Params{Cfg: cfg, Timeout: time.Second})
	require.NotEmpty(t, res.Error)
	assert.Contains(t, res.Error, "Mars/Olympus")
}

func TestRunMergesAcrossSources(t *testing.T) {
	cfg := testConfig("stubfees1", "stubfees2")
	cfg.Metric = "fees"
	cfg.Additive = []string{"fees"}

	source.Register(&stubSource{
		name: "stubfees1",
		records: []record.RawRecord{
			{SourceID: "stubfees1", DisplayName: "PancakeSwap", Metrics: map[string]float64{"fees": 150}},
			{SourceID: "stubfees1", DisplayName: "Venus", Metrics: map[string]float64{"fees": 20}},
		},
	})
	source.Register(&stubSource{
		name: "stubfees2",
		records: []record.RawRecord{
			{SourceID: "stubfees2", DisplayName: "Pancake Swap", Metrics: map[string]float64{"fees": 80}},
		},
	})

	res := Run(context.Background(), Params{Cfg: cfg, Timeout: time.Second})
	require.Empty(t, res.Error)
	require.Len(t, res.Data, 2)

	assert.Equal(t, 1, strings.Count(strings.ToLower(res.Caption), "pancake"),
		"name variants fold into one entity")
	v, ok := res.Data[0].Metric("fees")
	require.True(t, ok)
	assert.Equal(t, 230.0, v)
}
