package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"sir_scrooper/config"
	"sir_scrooper/models"
)

// Listing index markup hooks.
const (
	selResultItem     = "li.Search-results__item"
	selResultCard     = "a.Results-card"
	selCardAddress    = "h3.Results-card__body-address"
	selAddressWrapper = ".Results-card__body-address-wrapper"

	indexReadySelector = "li.Search-results__item, .Search-results"

	agentHeaderMarker = "Showing listings marketed by"
)

// Next-page controls, in preference order. The site has changed this markup
// before, hence the chain.
var nextPageSelectors = []string{
	"a.Search-results__pagination-next",
	"a[rel='next']",
	"li.pagination-next a",
	"a[aria-label='Next page']",
}

// Walker discovers an agent's listing links across the paginated index.
// Each DiscoverLinks call re-walks from page 1; the sequence is finite and
// not restartable mid-walk.
type Walker struct {
	nav Navigator
	cfg *config.Config
}

func NewWalker(nav Navigator, cfg *config.Config) *Walker {
	return &Walker{nav: nav, cfg: cfg}
}

// ResolveAgent loads page 1 of the agent's index and pulls the identity from
// the "Showing listings marketed by ..." header. The loaded page is returned
// so discovery does not refetch it. A missing header is fatal for the agent.
func (w *Walker) ResolveAgent(ctx context.Context, agentID string) (*models.AgentIdentity, *Page, error) {
	page, err := w.nav.Open(ctx, w.cfg.AgentIndexURL(agentID), OpenOptions{
		ReadySelector: indexReadySelector,
		ScrollToLoad:  true,
	})
	if page == nil || page.HTML == "" {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrAgentUnresolved, agentID, err)
	}

	doc, derr := page.Document()
	if derr != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrAgentUnresolved, agentID, derr)
	}

	name := parseAgentName(doc)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: %s: no marketing header found", ErrAgentUnresolved, agentID)
	}

	return &models.AgentIdentity{ID: agentID, Name: name}, page, nil
}

func parseAgentName(doc *goquery.Document) string {
	var name string
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.TrimSpace(p.Text())
		idx := strings.Index(text, agentHeaderMarker)
		if idx < 0 {
			return true
		}
		part := strings.TrimSpace(text[idx+len(agentHeaderMarker):])
		// Header reads "... marketed by Jane Doe. 12 results"; keep the name.
		if dot := strings.IndexByte(part, '.'); dot >= 0 {
			part = part[:dot]
		}
		name = strings.TrimSpace(part)
		return false
	})
	return name
}

// DiscoverLinks walks the index from page 1, deduplicating by normalized
// URL. first may carry the already-loaded page 1 from ResolveAgent.
// Termination: no next control, a page with zero new links, the MaxPages
// backstop, or the loop guard: an identical link set on two consecutive
// pages returns the links gathered so far with ErrPaginationLoop.
func (w *Walker) DiscoverLinks(ctx context.Context, agentID string, first *Page) ([]models.ListingLink, error) {
	page := first
	if page == nil {
		var err error
		page, err = w.nav.Open(ctx, w.cfg.AgentIndexURL(agentID), OpenOptions{
			ReadySelector: indexReadySelector,
			ScrollToLoad:  true,
		})
		if page == nil || page.HTML == "" {
			return nil, err
		}
	}

	links := []models.ListingLink{}
	seen := make(map[string]bool)
	prevSig := ""

	for pageNum := 1; pageNum <= w.cfg.Scraper.MaxPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return links, err
		}

		doc, err := page.Document()
		if err != nil {
			log.Printf("Index page %d unparsable for agent %s: %v", pageNum, agentID, err)
			return links, nil
		}

		cards := parseListingCards(doc, page.URL)
		sig := cardSignature(cards)
		if pageNum > 1 && sig != "" && sig == prevSig {
			return links, fmt.Errorf("%w: page %d repeats the previous link set", ErrPaginationLoop, pageNum)
		}
		prevSig = sig

		added := 0
		for _, card := range cards {
			key := normalizeURL(card.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			links = append(links, card)
			added++
		}
		log.Printf("Agent %s index page %d: %d cards, %d new (total %d)", agentID, pageNum, len(cards), added, len(links))

		if pageNum > 1 && added == 0 {
			break
		}

		nextURL := nextPageURL(doc, page.URL)
		if nextURL == "" {
			break
		}

		select {
		case <-time.After(time.Duration(w.cfg.Scraper.PageDelayMS) * time.Millisecond):
		case <-ctx.Done():
			return links, ctx.Err()
		}

		page, err = w.nav.Open(ctx, nextURL, OpenOptions{
			ReadySelector: indexReadySelector,
			ScrollToLoad:  true,
		})
		if page == nil || page.HTML == "" {
			log.Printf("Index page %d failed for agent %s: %v", pageNum+1, agentID, err)
			break
		}
	}

	return links, nil
}

func parseListingCards(doc *goquery.Document, baseURL string) []models.ListingLink {
	var cards []models.ListingLink
	doc.Find(selResultItem).Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find(selResultCard).First().Attr("href")
		if !ok || href == "" {
			return
		}

		name := strings.TrimSpace(item.Find(selCardAddress).First().Text())
		location := ""
		if wrapper := item.Find(selAddressWrapper).First(); wrapper.Length() > 0 {
			full := strings.TrimSpace(wrapper.Text())
			if name != "" && strings.HasPrefix(full, name) {
				location = strings.TrimLeft(strings.TrimPrefix(full, name), ", \t\n")
			} else {
				location = full
			}
			location = strings.Join(strings.Fields(location), " ")
		}

		cards = append(cards, models.ListingLink{
			Name:     name,
			Location: location,
			URL:      absoluteURL(baseURL, href),
		})
	})
	return cards
}

func cardSignature(cards []models.ListingLink) string {
	if len(cards) == 0 {
		return ""
	}
	keys := make([]string, 0, len(cards))
	for _, c := range cards {
		keys = append(keys, normalizeURL(c.URL))
	}
	return strings.Join(keys, "|")
}

// nextPageURL resolves the index's next-page control, or "" when the walk
// is done.
func nextPageURL(doc *goquery.Document, baseURL string) string {
	for _, s := range nextPageSelectors {
		a := doc.Find(s).First()
		if a.Length() == 0 {
			continue
		}
		if _, disabled := a.Attr("disabled"); disabled {
			continue
		}
		if href, ok := a.Attr("href"); ok && href != "" && href != "#" {
			return absoluteURL(baseURL, href)
		}
	}
	return ""
}

func absoluteURL(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// normalizeURL is the dedup key: scheme and host lowercased, trailing slash
// and fragment dropped.
func normalizeURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return strings.ToLower(strings.TrimRight(strings.TrimSpace(raw), "/"))
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.Fragment = ""
	return parsed.String()
}
