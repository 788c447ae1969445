// Package fourmeme pulls the token leaderboard from four.meme. The site sits
// behind Cloudflare, so the internal API is called with an in-page fetch
// from a real browser session instead of a direct HTTP request.
package fourmeme

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"chainrank/internal/browser"
	"chainrank/internal/record"
	"chainrank/internal/source"
)

const (
	rankingURL = "https://four.meme/ranking"
	apiPath    = "/meme-api/v1/private/token/list"
)

func init() {
	source.Register(&Scraper{})
}

// Scraper implements source.Source for the four.meme token ranking.
type Scraper struct{}

// Name returns the registry name.
func (s *Scraper) Name() string { return "fourmeme" }

// apiEnvelope is the internal API's response shape. Code 0 means success.
type apiEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		List []token `json:"list"`
	} `json:"data"`
	Error string `json:"error,omitempty"` // set by the in-page fetch wrapper
}

type token struct {
	Name           string     `json:"name"`
	Symbol         string     `json:"symbol"`
	Address        string     `json:"address"`
	Logo           string     `json:"logo"`
	MarketCap      *flexFloat `json:"marketCap"`
	Price          *flexFloat `json:"price"`
	PriceChange24h *flexFloat `json:"priceChange24h"`
	Holders        *int       `json:"holders"`
	TxCount24h     *int       `json:"txCount24h"`
}

// flexFloat decodes numeric fields the API serializes inconsistently,
// sometimes as JSON numbers and sometimes as quoted strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// Fetch opens the ranking page to clear Cloudflare, then calls the internal
// token-list API from inside the page and maps the response into records.
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

	raw, err := fetchTokenList(ctx, b, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrExtraction, err)
	}

	records := mapTokens(raw, s.Name())
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %v", source.ErrExtraction, source.ErrNoRows)
	}
	log.Info("fetched tokens", zap.Int("records", len(records)))
	return records, nil
}

func fetchTokenList(ctx context.Context, b *browser.Browser, opts source.Options) (*apiEnvelope, error) {
	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := page.Timeout(opts.Timeout).Navigate(rankingURL); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	// Give the Cloudflare interstitial time to clear before touching the API.
	time.Sleep(5 * time.Second)

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("page", "1")
	q.Set("pageSize", strconv.Itoa(limit))
	q.Set("sortField", "marketCap")
	q.Set("sortOrder", "desc")
	apiURL := apiPath + "?" + q.Encode()

	val, err := page.Timeout(opts.Timeout).Eval(fmt.Sprintf(`async () => {
		try {
			const response = await fetch(%q);
			if (!response.ok) return { error: 'status ' + response.status };
			return await response.json();
		} catch (e) {
			return { error: e.message };
		}
	}`, apiURL))
	if err != nil {
		return nil, fmt.Errorf("in-page fetch failed: %w", err)
	}

	var out apiEnvelope
	raw, _ := val.Value.MarshalJSON()
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode api envelope: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("api fetch failed: %s", out.Error)
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("api returned code %d: %s", out.Code, out.Msg)
	}
	return &out, nil
}

// mapTokens converts the API list into raw records. The token address is a
// stable identifier and becomes the group key; metrics the API omitted stay
// absent.
func mapTokens(env *apiEnvelope, sourceID string) []record.RawRecord {
	now := time.Now().UTC()
	records := make([]record.RawRecord, 0, len(env.Data.List))
	for _, t := range env.Data.List {
		if t.Name == "" {
			continue
		}

		metrics := make(map[string]float64, 4)
		if t.MarketCap != nil {
			metrics["marketCap"] = float64(*t.MarketCap)
		}
		if t.PriceChange24h != nil {
			metrics["change"] = float64(*t.PriceChange24h) * 100
		}
		if t.Holders != nil {
			metrics["holders"] = float64(*t.Holders)
		}
		if t.TxCount24h != nil {
			metrics["txn"] = float64(*t.TxCount24h)
		}

		records = append(records, record.RawRecord{
			SourceID:    sourceID,
			DisplayName: t.Name,
			GroupKey:    t.Address,
			Category:    "Meme",
			Metrics:     metrics,
			LogoRef:     t.Logo,
			ExtractedAt: now,
		})
	}
	return records
}
