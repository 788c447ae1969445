// Package browser wraps a rod-controlled headless Chrome instance. It is the
// single owner of the browser lifecycle: adapters and the compositor borrow
// pages from it and the caller releases everything with Close.
package browser

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// defaultUserAgent is a plausible desktop Chrome identity. Ranking sites
// serve empty shells to obvious automation clients.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls how the browser is launched.
type Config struct {
	ProxyURL  string
	Headless  bool
	UserAgent string // defaults to a desktop Chrome UA when empty
}

// Browser wraps a rod.Browser instance together with its launcher.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      Config
}

// New launches a browser with the given config.
func New(cfg Config) (b *Browser, err error) {
	defer func() {
		// rod's Must* helpers panic on launch failure; surface that as an
		// error so a missing Chrome binary doesn't kill the process.
		if r := recover(); r != nil {
			b = nil
			err = fmt.Errorf("failed to launch browser: %v", r)
		}
	}()

	l := launcher.New().Headless(cfg.Headless)
	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}

	url := l.MustLaunch()
	return &Browser{
		browser:  rod.New().ControlURL(url).MustConnect(),
		launcher: l,
		cfg:      cfg,
	}, nil
}

// NewPage creates a page with the configured user agent and the webdriver
// property masked.
func (b *Browser) NewPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}

	ua := b.cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua})
	_, _ = page.EvalOnNewDocument(`Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`)

	return page, nil
}

// RenderHTML renders a self-contained HTML document to a PNG bitmap of the
// given dimensions. The page is always closed, including on error paths.
func (b *Browser) RenderHTML(html string, width, height int, settle time.Duration) ([]byte, error) {
	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create render page: %w", err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("failed to set document content: %w", err)
	}

	// Let fonts and embedded images finish decoding before the screenshot.
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to wait for document load: %w", err)
	}
	if settle > 0 {
		time.Sleep(settle)
	}

	img, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return img, nil
}

// Close shuts down the browser and kills the launcher process.
func (b *Browser) Close() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return nil
}
