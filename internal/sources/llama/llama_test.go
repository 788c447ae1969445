package llama

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainrank/internal/source"
)

const fixture = `{
  "protocols": [
    {
      "name": "PancakeSwap AMM",
      "displayName": "PancakeSwap AMM",
      "slug": "pancakeswap-amm",
      "parentProtocol": "parent#pancakeswap",
      "category": "Dexs",
      "logo": "https://icons.llama.fi/pancakeswap.png",
      "total7d": 1200000,
      "change_7d": 4.2
    },
    {
      "name": "PancakeSwap AMM V3",
      "displayName": "PancakeSwap AMM V3",
      "slug": "pancakeswap-amm-v3",
      "parentProtocol": "parent#pancakeswap",
      "category": "Dexs",
      "total7d": 800000
    },
    {
      "name": "Venus",
      "slug": "venus",
      "category": "Lending",
      "total7d": 300000,
      "change_7d": -1.5
    },
    {
      "name": "Ghost Protocol",
      "slug": "ghost",
      "category": "Dexs",
      "total7d": null
    },
    {
      "name": "Zero Fees",
      "slug": "zero-fees",
      "category": "Dexs",
      "total7d": 0
    }
  ]
}`

func server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/overview/fees/bsc", r.URL.Path)
		assert.Equal(t, "dailyFees", r.URL.Query().Get("dataType"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fixture))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMapsProtocols(t *testing.T) {
	s := New(server(t).URL)

	records, err := s.Fetch(context.Background(), source.Options{Interval: "7d"})
	require.NoError(t, err)

	// Two protocols are dropped: one reports no fees, one reports zero.
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "llama", first.SourceID)
	assert.Equal(t, "PancakeSwap AMM", first.DisplayName)
	assert.Equal(t, "parent#pancakeswap", first.GroupKey)
	assert.Equal(t, "Dexs", first.Category)
	assert.Equal(t, "https://icons.llama.fi/pancakeswap.png", first.LogoRef)
	assert.Equal(t, 1200000.0, first.Metrics["fees"])
	assert.Equal(t, 4.2, first.Metrics["change"], "change is stored under its canonical name, not the API's per-interval field")
}

func TestFetchGroupKeyFallsBackToSlug(t *testing.T) {
	s := New(server(t).URL)

	records, err := s.Fetch(context.Background(), source.Options{Interval: "7d"})
	require.NoError(t, err)

	var venus *string
	for i := range records {
		if records[i].DisplayName == "Venus" {
			venus = &records[i].GroupKey
		}
	}
	require.NotNil(t, venus)
	assert.Equal(t, "venus", *venus)
}

func TestFetchSubEntitiesShareGroupKey(t *testing.T) {
	s := New(server(t).URL)

	records, err := s.Fetch(context.Background(), source.Options{Interval: "7d"})
	require.NoError(t, err)

	keys := map[string]int{}
	for _, r := range records {
		keys[r.GroupKey]++
	}
	assert.Equal(t, 2, keys["parent#pancakeswap"], "both versions carry the parent group key")
}

func TestFetchChangeStaysAbsentWhenUnreported(t *testing.T) {
	s := New(server(t).URL)

	records, err := s.Fetch(context.Background(), source.Options{Interval: "7d"})
	require.NoError(t, err)

	for _, r := range records {
		if r.DisplayName != "PancakeSwap AMM V3" {
			continue
		}
		_, ok := r.Metrics["change"]
		assert.False(t, ok, "unreported change must not default to zero")
	}
}

func TestFetchRejectsUnknownInterval(t *testing.T) {
	s := New(server(t).URL)

	_, err := s.Fetch(context.Background(), source.Options{Interval: "90d"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrExtraction))
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := New(srv.URL)
	_, err := s.Fetch(context.Background(), source.Options{Interval: "7d"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrExtraction))
}
