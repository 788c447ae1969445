// Package source defines the adapter contract every data source implements,
// the registry sources self-register into, and the declarative field
// extraction rules used by DOM-table adapters.
package source

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"chainrank/internal/record"
)

// ErrExtraction means a source could not produce any usable rows after
// retries. It is non-fatal to a run: the source's contribution is empty.
var ErrExtraction = errors.New("extraction failed")

// ErrNoRows means the page or response never yielded a stable, non-empty
// row set within the adapter's wait budget.
var ErrNoRows = errors.New("no rows stabilized")

// Options carries the per-run parameters shared by all adapters.
type Options struct {
	Interval string // 24h, 7d or 30d
	Limit    int    // soft cap on rows an adapter should return
	Timeout  time.Duration
	ProxyURL string
	Headless bool
	Logger   *zap.Logger
}

// Log returns the configured logger, or a no-op one.
func (o Options) Log() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Source produces raw records for one upstream ranking source. Fetch is
// idempotent and performs only read-only network access.
type Source interface {
	Name() string
	Fetch(ctx context.Context, opts Options) ([]record.RawRecord, error)
}
