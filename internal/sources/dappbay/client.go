package dappbay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"chainrank/internal/browser"
	"chainrank/internal/source"
)

const (
	settleDelay  = 3 * time.Second
	filterDelay  = 5 * time.Second
	pollInterval = 500 * time.Millisecond
	stableWait   = 20 * time.Second
)

// client drives one DappBay page. Navigation, filter interaction and
// extraction run sequentially because each step depends on the DOM state
// left by the previous one.
type client struct {
	browser *browser.Browser
	page    *rod.Page
	log     *zap.Logger
}

func newClient(b *browser.Browser, log *zap.Logger) *client {
	return &client{browser: b, log: log}
}

// Close releases the page.
func (c *client) Close() {
	if c.page != nil {
		c.page.Close()
	}
}

// fetchRows navigates to the ranking page, ensures the requested interval
// filter is active and returns the outerHTML of every stable table row.
func (c *client) fetchRows(ctx context.Context, url, interval string, timeout time.Duration) ([]string, error) {
	page, err := c.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	if c.page != nil {
		c.page.Close()
	}
	c.page = page
	page = page.Context(ctx)

	if err := page.Timeout(timeout).Navigate(url); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to wait for page load: %w", err)
	}

	// Let XHR-driven content land before poking at the table.
	wait := page.Timeout(timeout).WaitRequestIdle(
		500*time.Millisecond, nil, nil,
		[]proto.NetworkResourceType{proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia},
	)
	wait()
	time.Sleep(settleDelay)

	if interval == "7d" {
		c.ensureSevenDayFilter(page)
	}

	if err := c.waitStableRows(ctx, page); err != nil {
		return nil, err
	}

	return c.rowsHTML(page)
}

// ensureSevenDayFilter clicks the 7D granularity button unless it is already
// active. A failed click is logged and extraction proceeds with whatever
// granularity the page has; the filter state check keeps a repeated click
// from toggling it away.
func (c *client) ensureSevenDayFilter(page *rod.Page) {
	active, err := evalBool(page, 5*time.Second, `() => {
		const elements = Array.from(document.querySelectorAll('div, button, span'));
		const btn = elements.find(el => el.innerText.trim() === '7D' &&
			(el.classList.contains('group-item') || el.classList.contains('group-button-selected')));
		if (!btn) return false;
		return btn.classList.contains('active') ||
			btn.classList.contains('group-button-selected') ||
			btn.getAttribute('data-active') === 'true';
	}`)
	if err == nil && active {
		c.log.Debug("7D filter already active")
		return
	}

	clicked, err := evalBool(page, 5*time.Second, `() => {
		const elements = Array.from(document.querySelectorAll('div, button, span'));
		const btn = elements.find(el => el.innerText.trim() === '7D' &&
			(el.classList.contains('group-item') || el.classList.contains('group-button-selected')));
		if (!btn) return false;
		btn.click();
		return true;
	}`)
	if err != nil || !clicked {
		c.log.Warn("failed to apply 7D filter", zap.Error(err))
		return
	}
	// The table reloads after the filter changes.
	time.Sleep(filterDelay)
}

// waitStableRows polls until the table has a non-zero row count that holds
// steady across two consecutive polls and the first row carries real data.
// A page that never stabilizes yields ErrNoRows.
func (c *client) waitStableRows(ctx context.Context, page *rod.Page) error {
	deadline := time.Now().Add(stableWait)
	prev := -1

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}

		count, err := evalInt(page, 5*time.Second, `() => {
			const rows = document.querySelectorAll('table tbody tr');
			if (rows.length === 0) return 0;
			return rows[0].innerText.length > 10 ? rows.length : 0;
		}`)
		if err != nil {
			continue
		}
		if count > 0 && count == prev {
			return nil
		}
		prev = count
	}

	return source.ErrNoRows
}

// rowsHTML snapshots the outerHTML of every table row so field extraction
// can run after the browser is released.
func (c *client) rowsHTML(page *rod.Page) ([]string, error) {
	val, err := page.Timeout(10 * time.Second).Eval(`() => {
		const rows = Array.from(document.querySelectorAll('table tbody tr'));
		return rows.map(r => r.outerHTML);
	}`)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot rows: %w", err)
	}

	var rows []string
	raw, _ := val.Value.MarshalJSON()
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse row snapshot: %w", err)
	}
	if len(rows) == 0 {
		return nil, source.ErrNoRows
	}
	return rows, nil
}

func evalBool(page *rod.Page, timeout time.Duration, js string) (bool, error) {
	val, err := page.Timeout(timeout).Eval(js)
	if err != nil {
		return false, err
	}
	var out bool
	raw, _ := val.Value.MarshalJSON()
	if err := json.Unmarshal(raw, &out); err != nil {
		return false, err
	}
	return out, nil
}

func evalInt(page *rod.Page, timeout time.Duration, js string) (int, error) {
	val, err := page.Timeout(timeout).Eval(js)
	if err != nil {
		return 0, err
	}
	var out int
	raw, _ := val.Value.MarshalJSON()
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, err
	}
	return out, nil
}
