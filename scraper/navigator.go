package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is the outcome of one navigation: the rendered markup plus a degraded
// flag when the ready wait expired before the content signal appeared.
type Page struct {
	URL      string
	HTML     string
	Degraded bool
}

// Document parses the captured markup. Parsing happens off-session, so no
// browser resource is held while a page is being picked apart.
func (p *Page) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
}

type OpenOptions struct {
	// ReadySelector is polled after navigation; when it never appears within
	// the wait timeout the page is returned degraded, not failed.
	ReadySelector string

	// ScrollToLoad scrolls to the bottom until the document height settles,
	// for indexes that lazy-load cards on scroll.
	ScrollToLoad bool
}

// Navigator owns browser sessions. Each Open acquires its own tab and
// releases it on every exit path; concurrent Opens are safe.
type Navigator interface {
	Open(ctx context.Context, url string, opts OpenOptions) (*Page, error)
	Close()
}
