// Package dappbay extracts the DApp ranking table from dappbay.bnbchain.org.
// The page is a client-rendered table, so extraction goes through a real
// browser: navigate, settle, poll until the row count is stable, snapshot
// each row's HTML and run the declarative field fallback chains over it.
package dappbay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chainrank/internal/browser"
	"chainrank/internal/record"
	"chainrank/internal/source"
)

const rankingURL = "https://dappbay.bnbchain.org/ranking/activeusers?chains=56"

func init() {
	source.Register(&Scraper{})
}

// Scraper implements source.Source for the DappBay ranking table.
type Scraper struct{}

// Name returns the registry name.
func (s *Scraper) Name() string { return "dappbay" }

// Fetch navigates to the ranking page, applies the interval filter and
// extracts the visible rows. Transient failures are retried; when no rows
// ever stabilize the error wraps source.ErrExtraction so the caller treats
// this source's contribution as empty.
func (s *Scraper) Fetch(ctx context.Context, opts source.Options) ([]record.RawRecord, error) {
	log := opts.Log().With(zap.String("source", s.Name()))

	b, err := browser.New(browser.Config{
		ProxyURL: opts.ProxyURL,
		Headless: opts.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrExtraction, err)
	}
	defer b.Close()

	client := newClient(b, log)
	defer client.Close()

	var rows []string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		rows, err = client.fetchRows(ctx, rankingURL, opts.Interval, opts.Timeout)
		if err == nil {
			break
		}
		log.Warn("row extraction attempt failed",
			zap.Int("attempt", attempt), zap.Error(err))
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", source.ErrExtraction, ctx.Err())
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrExtraction, err)
	}

	records := parseRows(rows, s.Name(), opts.Limit, log)
	log.Info("extracted records",
		zap.Int("rows", len(rows)), zap.Int("records", len(records)))
	return records, nil
}

const maxAttempts = 3

// fieldRules is the per-field fallback chain for one ranking table row.
// Order matters: the first selector yielding non-empty text wins. New page
// layouts are handled by appending selectors, not by editing control flow.
var fieldRules = []source.FieldRule{
	{
		Field: "name",
		Selectors: []string{
			"td:nth-child(3) a p",
			"td:nth-child(3) p",
			"td:nth-child(3)",
		},
		Transform: source.FirstLine,
	},
	{Field: "category", Selectors: []string{"td:nth-child(4)"}},
	{Field: "users", Selectors: []string{"td:nth-child(5)"}},
	{Field: "change", Selectors: []string{"td:nth-child(6)"}},
	{Field: "txn", Selectors: []string{"td:nth-child(7)"}},
	{Field: "logo", Selectors: []string{"img"}, Attr: "src"},
	{Field: "logoLazy", Selectors: []string{"img"}, Attr: "data-src"},
}

// parseRows turns row HTML snapshots into raw records. Rows that cannot
// yield a display name are skipped, not failed.
func parseRows(rows []string, sourceID string, limit int, log *zap.Logger) []record.RawRecord {
	now := time.Now().UTC()
	records := make([]record.RawRecord, 0, len(rows))

	for _, rowHTML := range rows {
		if limit > 0 && len(records) >= limit {
			break
		}

		fields, err := source.ExtractFields(rowHTML, fieldRules)
		if err != nil {
			log.Debug("row parse failed", zap.Error(err))
			continue
		}

		name := fields["name"]
		if name == "" || name == "Unknown" || name == "---" {
			continue
		}

		metrics := make(map[string]float64, 3)
		for _, m := range []string{"users", "txn", "change"} {
			if v, ok := record.ParseValue(fields[m]); ok {
				metrics[m] = v
			}
		}

		logo := fields["logo"]
		if logo == "" {
			logo = fields["logoLazy"]
		}

		records = append(records, record.RawRecord{
			SourceID:    sourceID,
			DisplayName: name,
			Category:    fields["category"],
			Metrics:     metrics,
			LogoRef:     logo,
			ExtractedAt: now,
		})
	}
	return records
}
