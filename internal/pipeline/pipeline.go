// Package pipeline wires the aggregation stages together: concurrent source
// fetches, merge, rank, asset resolution, composition, optional rendering
// and packaging. It is stateless between invocations; an external scheduler
// may drive it repeatedly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chainrank/internal/assets"
	"chainrank/internal/browser"
	"chainrank/internal/config"
	"chainrank/internal/envelope"
	"chainrank/internal/layout"
	"chainrank/internal/merge"
	"chainrank/internal/rank"
	"chainrank/internal/record"
	"chainrank/internal/source"
)

// renderSettle is how long the render page gets to finish font and image
// decoding before the screenshot.
const renderSettle = 3 * time.Second

// ErrNoData means every configured source came back empty.
var ErrNoData = errors.New("no source produced any records")

// Params carries the per-invocation knobs that come from the CLI rather
// than the config file.
type Params struct {
	Cfg         *config.Config
	RenderImage bool
	DumpHTML    func(html string) // optional debug hook for the composed document
	Timeout     time.Duration     // per-source fetch budget
	Headless    bool
	ProxyURL    string
	Logger      *zap.Logger
}

// Run executes one aggregation run and always returns an envelope: a data
// envelope on success, an error envelope when the run produced nothing or
// the configuration was unusable. It never returns a partially populated
// envelope.
func Run(ctx context.Context, p Params) *envelope.Result {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	runID := uuid.NewString()
	log = log.With(zap.String("run", runID))

	// Configuration problems abort before any network activity.
	loc, err := time.LoadLocation(p.Cfg.Timezone)
	if err != nil {
		return envelope.Fail(fmt.Errorf("%w: unknown timezone %q", config.ErrConfig, p.Cfg.Timezone))
	}
	tmpl, err := loadTemplate(p.Cfg.Template)
	if err != nil {
		return envelope.Fail(err)
	}
	srcs := make([]source.Source, 0, len(p.Cfg.Sources))
	for _, name := range p.Cfg.Sources {
		s, ok := source.Get(name)
		if !ok {
			return envelope.Fail(fmt.Errorf("%w: unknown source %q (have %s)",
				config.ErrConfig, name, strings.Join(source.Names(), ", ")))
		}
		srcs = append(srcs, s)
	}

	records := fetchAll(ctx, srcs, p, log)
	if len(records) == 0 {
		log.Error("all sources came back empty")
		return envelope.Fail(ErrNoData)
	}

	policy := merge.NewPolicy(p.Cfg.Metric, p.Cfg.Additive...)
	entities := merge.Merge(records, policy, log)
	lb := rank.Build(entities, p.Cfg.Metric, p.Cfg.Limit, time.Now().In(loc))
	log.Info("ranked leaderboard",
		zap.Int("records", len(records)),
		zap.Int("entities", len(entities)),
		zap.Int("ranked", len(lb.Entries)))

	resolver := assets.NewResolver(p.Cfg.AssetBase, assets.WithLogger(log))
	refs := make([]string, 0, len(lb.Entries))
	for _, e := range lb.Entries {
		if e.LogoRef != "" {
			refs = append(refs, e.LogoRef)
		}
	}
	resolved := resolver.ResolveAll(ctx, refs)

	now := time.Now().In(loc)
	dateStr := envelope.FormatDate(now)
	style := layout.Style{
		MetricLabel:  p.Cfg.Caption.MetricLabel,
		MetricPrefix: p.Cfg.Caption.MetricPrefix,
		ChangeMetric: p.Cfg.Caption.ChangeMetric,
		Badge:        fmt.Sprintf("%s: %s", strings.ToUpper(p.Cfg.Caption.MetricLabel), envelope.LongInterval(p.Cfg.Interval)),
		Footer:       fmt.Sprintf("%s | %s", dateStr, p.Cfg.Caption.Handle),
	}

	doc, err := layout.Compose(lb, tmpl, resolved, style)
	if err != nil {
		return envelope.Fail(err)
	}
	html := doc.HTML()
	if p.DumpHTML != nil {
		p.DumpHTML(html)
	}

	// A render failure is fatal to the image only; the textual leaderboard
	// still ships.
	var image []byte
	if p.RenderImage {
		image, err = render(html, tmpl, p)
		if err != nil {
			log.Error("render failed, packaging without image", zap.Error(err))
			image = nil
		}
	}

	spec := envelope.CaptionSpec{
		Title:        p.Cfg.Caption.Title,
		Subtitle:     strings.ReplaceAll(p.Cfg.Caption.Subtitle, "{interval}", envelope.ShortInterval(p.Cfg.Interval)),
		SourceCredit: p.Cfg.Caption.SourceCredit,
		Hashtags:     p.Cfg.Caption.Hashtags,
		MetricPrefix: p.Cfg.Caption.MetricPrefix,
		ShowMetric:   p.Cfg.Caption.ShowMetric,
	}
	caption := envelope.Caption(lb, spec, dateStr)

	return envelope.Package(lb, image, caption, runID, p.Cfg.Interval, now)
}

// fetchAll runs every source adapter concurrently. Sources share no state,
// so they only rendezvous on the results slice. A failed source contributes
// nothing; it never aborts the run.
func fetchAll(ctx context.Context, srcs []source.Source, p Params, log *zap.Logger) []record.RawRecord {
	opts := source.Options{
		Interval: p.Cfg.Interval,
		Limit:    p.Cfg.Limit,
		Timeout:  p.Timeout,
		ProxyURL: p.ProxyURL,
		Headless: p.Headless,
		Logger:   log,
	}

	var mu sync.Mutex
	var records []record.RawRecord

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range srcs {
		s := s
		g.Go(func() error {
			// opts.Timeout bounds a single page interaction; the context
			// leaves room for the adapter's bounded retries on top.
			fetchCtx, cancel := context.WithTimeout(ctx, 3*p.Timeout)
			defer cancel()

			recs, err := s.Fetch(fetchCtx, opts)
			if err != nil {
				log.Warn("source failed, continuing without it",
					zap.String("source", s.Name()), zap.Error(err))
				return nil
			}
			mu.Lock()
			records = append(records, recs...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // goroutines absorb their own errors
	return records
}

func loadTemplate(path string) (*layout.Template, error) {
	if path == "" {
		return layout.Default(), nil
	}
	tmpl, err := layout.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	return tmpl, nil
}

// render acquires a browser for the duration of one composition call and
// always releases it.
func render(html string, tmpl *layout.Template, p Params) ([]byte, error) {
	b, err := browser.New(browser.Config{
		ProxyURL: p.ProxyURL,
		Headless: p.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire render browser: %w", err)
	}
	defer b.Close()

	return b.RenderHTML(html, tmpl.Width, tmpl.Height, renderSettle)
}
