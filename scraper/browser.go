package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"sir_scrooper/config"
)

const readyPollInterval = 500 * time.Millisecond

// BrowserNavigator drives a shared headless Chromium via Playwright.
// The browser is launched lazily on first Open and shared across sessions;
// every navigation gets its own page so a bounded worker pool can fetch
// details concurrently without sharing tabs.
type BrowserNavigator struct {
	cfg *config.ScraperConfig

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewBrowserNavigator(cfg *config.ScraperConfig) *BrowserNavigator {
	return &BrowserNavigator{cfg: cfg}
}

func (n *BrowserNavigator) ensureBrowser() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.initialized {
		return nil
	}

	var err error
	n.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	n.browser, err = n.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(n.cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		n.pw.Stop()
		n.pw = nil
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	n.initialized = true
	return nil
}

func (n *BrowserNavigator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.browser != nil {
		n.browser.Close()
		n.browser = nil
	}
	if n.pw != nil {
		n.pw.Stop()
		n.pw = nil
	}
	n.initialized = false
}

// Open navigates to url and waits for the ready signal. Navigation errors are
// retried with a short backoff; after the last attempt a degraded empty
// handle is returned together with ErrPageLoadTimeout so the caller can keep
// going with whatever it got.
func (n *BrowserNavigator) Open(ctx context.Context, url string, opts OpenOptions) (*Page, error) {
	if err := n.ensureBrowser(); err != nil {
		return &Page{URL: url, Degraded: true}, err
	}

	retries := n.cfg.NavRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &Page{URL: url, Degraded: true}, err
		}

		page, err := n.openOnce(url, opts)
		if err == nil {
			return page, nil
		}
		lastErr = err
		log.Printf("Navigation attempt %d/%d failed for %s: %v", attempt, retries, url, err)

		if attempt < retries {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return &Page{URL: url, Degraded: true}, ctx.Err()
			}
		}
	}

	return &Page{URL: url, Degraded: true}, fmt.Errorf("%w: %s: %v", ErrPageLoadTimeout, url, lastErr)
}

func (n *BrowserNavigator) openOnce(url string, opts OpenOptions) (*Page, error) {
	page, err := n.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	_, err = page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(n.cfg.WaitTimeout.Milliseconds()) + 10000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, fmt.Errorf("goto: %w", err)
	}

	degraded := false
	if opts.ReadySelector != "" && !n.waitForSelector(page, opts.ReadySelector) {
		log.Printf("Timeout waiting for %q on %s, reading degraded content", opts.ReadySelector, url)
		degraded = true
	}

	if opts.ScrollToLoad {
		n.scrollToBottom(page)
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}

	return &Page{URL: page.URL(), HTML: content, Degraded: degraded}, nil
}

// waitForSelector polls for the content-readiness signal up to the configured
// wait timeout. False means the page should be treated as degraded.
func (n *BrowserNavigator) waitForSelector(page playwright.Page, selector string) bool {
	deadline := time.Now().Add(n.cfg.WaitTimeout)
	for time.Now().Before(deadline) {
		count, err := page.Locator(selector).Count()
		if err == nil && count > 0 {
			return true
		}
		page.WaitForTimeout(float64(readyPollInterval.Milliseconds()))
	}
	return false
}

// scrollToBottom repeats scroll-and-settle until the document height stops
// growing, so lazy-loaded result cards are all present before reading.
func (n *BrowserNavigator) scrollToBottom(page playwright.Page) {
	previousHeight := -1.0
	for i := 0; i < 30; i++ {
		page.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`)
		page.WaitForTimeout(1500)

		result, err := page.Evaluate(`document.body.scrollHeight`)
		if err != nil {
			return
		}
		height, ok := toFloat(result)
		if !ok || height == previousHeight {
			return
		}
		previousHeight = height
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	default:
		return 0, false
	}
}
