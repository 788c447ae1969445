// Package llama pulls protocol fee rankings from the DefiLlama fees
// overview API. Protocols are reported per sub-entity (e.g. each version of
// a DEX separately); the parentProtocol field is surfaced as the group key
// so the merger can fold sub-entities together and sum their fees.
package llama

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"chainrank/internal/record"
	"chainrank/internal/source"
)

const defaultBaseURL = "https://api.llama.fi"

// intervalField maps the run interval to the API's total field.
var intervalField = map[string]string{
	"24h": "total24h",
	"7d":  "total7d",
	"30d": "total30d",
}

func init() {
	source.Register(New(defaultBaseURL))
}

// Scraper implements source.Source against the fees overview endpoint.
type Scraper struct {
	client *resty.Client
}

// New creates a scraper against the given API base URL.
func New(baseURL string) *Scraper {
	return &Scraper{
		client: resty.New().
			SetBaseURL(baseURL).
			SetRetryCount(2).
			SetRetryWaitTime(2 * time.Second),
	}
}

// Name returns the registry name.
func (s *Scraper) Name() string { return "llama" }

// protocol is one entry of the API's response envelope. Numeric fields are
// pointers so "not reported" stays distinguishable from "reported as zero".
type protocol struct {
	Name           string   `json:"name"`
	DisplayName    string   `json:"displayName"`
	Slug           string   `json:"slug"`
	ParentProtocol string   `json:"parentProtocol"`
	Category       string   `json:"category"`
	Logo           string   `json:"logo"`
	Total24h       *float64 `json:"total24h"`
	Total7d        *float64 `json:"total7d"`
	Total30d       *float64 `json:"total30d"`
	Change1d       *float64 `json:"change_1d"`
	Change7d       *float64 `json:"change_7d"`
	Change1m       *float64 `json:"change_1m"`
}

type overviewResponse struct {
	Protocols []protocol `json:"protocols"`
}

// Fetch requests the fees overview for the BSC chain and maps each protocol
// into a raw record. Protocols without a positive fee figure for the
// requested interval are dropped.
func (s *Scraper) Fetch(ctx context.Context, opts source.Options) ([]record.RawRecord, error) {
	log := opts.Log().With(zap.String("source", s.Name()))

	field, ok := intervalField[opts.Interval]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported interval %q", source.ErrExtraction, opts.Interval)
	}

	var out overviewResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"dataType":                       "dailyFees",
			"excludeTotalDataChart":          "true",
			"excludeTotalDataChartBreakdown": "true",
		}).
		SetResult(&out).
		Get("/overview/fees/bsc")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrExtraction, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: unexpected status %d", source.ErrExtraction, resp.StatusCode())
	}

	now := time.Now().UTC()
	records := make([]record.RawRecord, 0, len(out.Protocols))
	for _, p := range out.Protocols {
		fees := p.total(field)
		if fees == nil || *fees <= 0 {
			continue
		}

		name := p.DisplayName
		if name == "" {
			name = p.Name
		}

		// The API names its change field per interval; downstream consumers
		// read one canonical "change" metric regardless of interval.
		metrics := map[string]float64{"fees": *fees}
		if c := p.change(opts.Interval); c != nil {
			metrics["change"] = *c
		}

		groupKey := p.ParentProtocol
		if groupKey == "" {
			groupKey = p.Slug
		}

		records = append(records, record.RawRecord{
			SourceID:    s.Name(),
			DisplayName: name,
			GroupKey:    groupKey,
			Category:    p.Category,
			Metrics:     metrics,
			LogoRef:     p.Logo,
			ExtractedAt: now,
		})
	}

	log.Info("fetched protocols",
		zap.Int("reported", len(out.Protocols)), zap.Int("usable", len(records)))
	return records, nil
}

func (p *protocol) total(field string) *float64 {
	switch field {
	case "total24h":
		return p.Total24h
	case "total7d":
		return p.Total7d
	case "total30d":
		return p.Total30d
	}
	return nil
}

func (p *protocol) change(interval string) *float64 {
	switch interval {
	case "24h":
		return p.Change1d
	case "7d":
		return p.Change7d
	case "30d":
		return p.Change1m
	}
	return nil
}
