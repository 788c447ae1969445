// Package assets retrieves remote logo images and encodes them as data URIs
// embeddable in the composed document. A missing logo is a cosmetic
// degradation, never a pipeline failure: Resolve returns Empty on any error.
package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Empty is the placeholder returned when a logo cannot be resolved. The
// compositor renders the slot without an image.
const Empty = ""

const (
	defaultTimeout = 10 * time.Second
	maxPayload     = 4 << 20 // images larger than this are treated as failures
)

// Resolver fetches logos over HTTP and caches them for the duration of one
// run. Concurrent requests for the same ref collapse into a single fetch.
type Resolver struct {
	client  *resty.Client
	baseURL string // scheme+host used to absolutize root-relative refs
	logger  *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout overrides the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.client.SetTimeout(d) }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver. baseURL supplies the scheme and host for
// root-relative logo refs (e.g. "https://dappbay.bnbchain.org").
func NewResolver(baseURL string, opts ...Option) *Resolver {
	r := &Resolver{
		client: resty.New().
			SetTimeout(defaultTimeout).
			SetRetryCount(1),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  zap.NewNop(),
		cache:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches ref and returns it as a data URI, or Empty on any failure.
// Results are cached by the raw ref for the rest of the run.
func (r *Resolver) Resolve(ctx context.Context, ref string) string {
	if ref == "" {
		return Empty
	}
	if strings.HasPrefix(ref, "data:") {
		return ref // already embeddable
	}

	r.mu.RLock()
	cached, ok := r.cache[ref]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	v, _, _ := r.group.Do(ref, func() (interface{}, error) {
		uri := r.fetch(ctx, ref)
		if uri == Empty && ctx.Err() != nil {
			// The winning caller's context died mid-fetch. That says nothing
			// about the logo itself, so leave the cache alone and let a
			// later caller retry.
			return uri, nil
		}
		r.mu.Lock()
		r.cache[ref] = uri
		r.mu.Unlock()
		return uri, nil
	})
	return v.(string)
}

// ResolveAll resolves every ref concurrently and returns a ref -> data URI
// map. Failed refs map to Empty.
func (r *Resolver) ResolveAll(ctx context.Context, refs []string) map[string]string {
	out := make(map[string]string, len(refs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ref := range refs {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			uri := r.Resolve(ctx, ref)
			mu.Lock()
			out[ref] = uri
			mu.Unlock()
		}(ref)
	}
	wg.Wait()
	return out
}

func (r *Resolver) fetch(ctx context.Context, ref string) string {
	url := r.absolutize(ref)

	resp, err := r.client.R().SetContext(ctx).Get(url)
	if err != nil {
		r.logger.Warn("logo fetch failed", zap.String("url", url), zap.Error(err))
		return Empty
	}
	if !resp.IsSuccess() {
		r.logger.Warn("logo fetch returned non-success status",
			zap.String("url", url), zap.Int("status", resp.StatusCode()))
		return Empty
	}
	body := resp.Body()
	if len(body) == 0 || len(body) > maxPayload {
		r.logger.Warn("logo payload rejected",
			zap.String("url", url), zap.Int("bytes", len(body)))
		return Empty
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(body))
}

// absolutize turns protocol-relative and root-relative refs into absolute
// URLs against the configured base.
func (r *Resolver) absolutize(ref string) string {
	switch {
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	case strings.HasPrefix(ref, "/"):
		return r.baseURL + ref
	default:
		return ref
	}
}
