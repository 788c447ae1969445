package dune

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainrank/internal/source"
)

func TestMapRowResolvesFieldNames(t *testing.T) {
	now := time.Now()

	// Column names vary by query author; matching is case-insensitive.
	r, ok := mapRow(map[string]any{
		"Project":  "Polymarket",
		"Volume":   1250000.5,
		"Traders":  float64(4200),
		"Category": "Prediction",
	}, "dune", now)
	require.True(t, ok)

	assert.Equal(t, "Polymarket", r.DisplayName)
	assert.Equal(t, "Prediction", r.Category)
	assert.Equal(t, 1250000.5, r.Metrics["volume"])
	assert.Equal(t, 4200.0, r.Metrics["users"])
}

func TestMapRowPreferenceOrder(t *testing.T) {
	r, ok := mapRow(map[string]any{
		"project": "Preferred",
		"name":    "Fallback",
	}, "dune", time.Now())
	require.True(t, ok)
	assert.Equal(t, "Preferred", r.DisplayName)
}

func TestMapRowSkipsNameless(t *testing.T) {
	_, ok := mapRow(map[string]any{"volume": 100.0}, "dune", time.Now())
	assert.False(t, ok)

	_, ok = mapRow(map[string]any{"project": "   "}, "dune", time.Now())
	assert.False(t, ok)
}

func TestMapRowMissingMetricsStayAbsent(t *testing.T) {
	r, ok := mapRow(map[string]any{"market": "OnlyName"}, "dune", time.Now())
	require.True(t, ok)
	assert.Empty(t, r.Metrics)
}

func TestToFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(1.5), 1.5, true},
		{int(7), 7, true},
		{"123.4", 123.4, true},
		{" 99 ", 99, true},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, c := range cases {
		got, ok := toFloat(c.in)
		assert.Equal(t, c.ok, ok, "input %v", c.in)
		if ok {
			assert.Equal(t, c.want, got, "input %v", c.in)
		}
	}
}

func TestFetchMapsRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query/42/results", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Dune-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"rows":[
			{"question":"Will BTC hit 100k","volume":"2500000","users":321},
			{"question":"","volume":10},
			{"question":"Election winner","vol":900000.0}
		]}}`))
	}))
	defer srv.Close()

	s := New(srv.URL, 42)
	s.SetAPIKey("test-key")

	records, err := s.Fetch(context.Background(), source.Options{Interval: "7d"})
	require.NoError(t, err)
	require.Len(t, records, 2, "nameless rows are skipped")

	assert.Equal(t, "Will BTC hit 100k", records[0].DisplayName)
	assert.Equal(t, 2500000.0, records[0].Metrics["volume"])
	assert.Equal(t, 321.0, records[0].Metrics["users"])
	assert.Equal(t, 900000.0, records[1].Metrics["volume"])
}

func TestFetchRequiresAPIKey(t *testing.T) {
	t.Setenv("DUNE_API_KEY", "")

	s := New("https://example.invalid", 42)
	_, err := s.Fetch(context.Background(), source.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrExtraction))
}

func TestFetchEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"rows":[]}}`))
	}))
	defer srv.Close()

	s := New(srv.URL, 42)
	s.SetAPIKey("test-key")

	_, err := s.Fetch(context.Background(), source.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrExtraction))
}
