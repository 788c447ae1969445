// Package dune pulls ranking rows from a Dune Analytics query's latest
// result. Dune queries are free-form SQL, so column names vary between
// query authors; a per-field table of acceptable column names resolves the
// canonical metrics once instead of scattering lookups through the code.
package dune

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"chainrank/internal/record"
	"chainrank/internal/source"
)

const defaultBaseURL = "https://api.dune.com"

func init() {
	source.Register(New(defaultBaseURL, defaultQueryID))
}

// defaultQueryID is the prediction-market volume query this adapter was
// built for. Override with CHAINRANK_DUNE_QUERY / NewWithOptions as needed.
const defaultQueryID = 3455455

// fieldNames maps each canonical field to the source column names accepted
// for it, in preference order. Matching is case-insensitive.
var fieldNames = map[string][]string{
	"name":     {"project", "market", "question", "name"},
	"volume":   {"volume", "vol", "amount", "usd"},
	"users":    {"users", "active_users", "traders", "count"},
	"category": {"category", "type"},
}

// Scraper implements source.Source against the Dune results API.
type Scraper struct {
	client  *resty.Client
	queryID int
	apiKey  string
}

// New creates a scraper for the given query.
func New(baseURL string, queryID int) *Scraper {
	return &Scraper{
		client: resty.New().
			SetBaseURL(baseURL).
			SetRetryCount(2).
			SetRetryWaitTime(2 * time.Second),
		queryID: queryID,
	}
}

// SetAPIKey sets the Dune API key. When unset, Fetch falls back to the
// DUNE_API_KEY environment variable and fails fast if that is empty too.
func (s *Scraper) SetAPIKey(key string) { s.apiKey = key }

// Name returns the registry name.
func (s *Scraper) Name() string { return "dune" }

type resultResponse struct {
	Result struct {
		Rows []map[string]any `json:"rows"`
	} `json:"result"`
}

// Fetch requests the query's latest result and maps each row into a raw
// record via the field-name table. Columns that match nothing in the table
// stay absent rather than defaulting to zero.
func (s *Scraper) Fetch(ctx context.Context, opts source.Options) ([]record.RawRecord, error) {
	log := opts.Log().With(zap.String("source", s.Name()))

	key := s.apiKey
	if key == "" {
		key = os.Getenv("DUNE_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("%w: dune api key not configured", source.ErrExtraction)
	}

	var out resultResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("X-Dune-API-Key", key).
		SetResult(&out).
		Get(fmt.Sprintf("/api/v1/query/%d/results", s.queryID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrExtraction, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: unexpected status %d", source.ErrExtraction, resp.StatusCode())
	}
	if len(out.Result.Rows) == 0 {
		return nil, fmt.Errorf("%w: %v", source.ErrExtraction, source.ErrNoRows)
	}

	now := time.Now().UTC()
	records := make([]record.RawRecord, 0, len(out.Result.Rows))
	for _, row := range out.Result.Rows {
		r, ok := mapRow(row, s.Name(), now)
		if !ok {
			continue
		}
		records = append(records, r)
	}

	log.Info("fetched query rows",
		zap.Int("query", s.queryID),
		zap.Int("rows", len(out.Result.Rows)), zap.Int("records", len(records)))
	return records, nil
}

// mapRow resolves one result row against the field-name table. Rows without
// a resolvable name are skipped.
func mapRow(row map[string]any, sourceID string, now time.Time) (record.RawRecord, bool) {
	lowered := make(map[string]any, len(row))
	for k, v := range row {
		lowered[strings.ToLower(k)] = v
	}

	name, _ := lookup(lowered, fieldNames["name"]).(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return record.RawRecord{}, false
	}

	metrics := make(map[string]float64, 2)
	if v, ok := toFloat(lookup(lowered, fieldNames["volume"])); ok {
		metrics["volume"] = v
	}
	if v, ok := toFloat(lookup(lowered, fieldNames["users"])); ok {
		metrics["users"] = v
	}

	category, _ := lookup(lowered, fieldNames["category"]).(string)

	return record.RawRecord{
		SourceID:    sourceID,
		DisplayName: name,
		Category:    strings.TrimSpace(category),
		Metrics:     metrics,
		ExtractedAt: now,
	}, true
}

func lookup(row map[string]any, candidates []string) any {
	for _, c := range candidates {
		if v, ok := row[c]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
