package scraper

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sir_scrooper/storage"
)

// slowNavigator wraps fakeNavigator with per-URL latency so detail fetches
// finish out of order.
type slowNavigator struct {
	fakeNavigator
	delays map[string]time.Duration
}

func (s *slowNavigator) Open(ctx context.Context, url string, opts OpenOptions) (*Page, error) {
	if d, ok := s.delays[url]; ok {
		time.Sleep(d)
	}
	return s.fakeNavigator.Open(ctx, url, opts)
}

func detailPage(title string) string {
	return fmt.Sprintf(`<html><body>
		<h1>%s</h1>
		<div class="description">Listing %s.</div>
		</body></html>`, title, title)
}

func detailURL(slug string) string {
	return "https://www.sothebysrealty.com/turksandcaicossir/eng/sales/detail/" + slug
}

func testStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return rows
}

func TestRunAgent_HappyPath(t *testing.T) {
	cfg := testConfig(t)
	nav := &fakeNavigator{pages: map[string]string{
		testIndexURL:                      loadFixture(t, "index_page1.html"),
		testIndexURL + "?page=2":          loadFixture(t, "index_page2.html"),
		detailURL("villa-aquamarine"):     loadFixture(t, "detail_full.html"),
		detailURL("long-bay-parcel/"):     loadFixture(t, "detail_sparse.html"),
		detailURL("ocean-point-condo"):    detailPage("Ocean Point Condo 2B"),
		detailURL("chalk-sound-villa"):    detailPage("Chalk Sound Villa"),
		detailURL("north-caicos-estate"):  detailPage("North Caicos Estate"),
	}}

	store := testStore(t)
	o := NewOrchestrator(cfg, nav, store)
	summary := o.RunAgent(context.Background(), "jane")

	if summary.Err != nil {
		t.Fatalf("run failed: %v", summary.Err)
	}
	if summary.AgentName != "Jane Doe" {
		t.Fatalf("expected agent Jane Doe, got %q", summary.AgentName)
	}

	agent, err := store.GetAgent("jane")
	if err != nil {
		t.Fatalf("agent lookup failed: %v", err)
	}
	if agent == nil || agent.Name != "Jane Doe" {
		t.Fatalf("run must persist the resolved agent, got %+v", agent)
	}
	if summary.LinksFound != 5 {
		t.Fatalf("expected 5 links, got %d", summary.LinksFound)
	}
	if summary.DetailsExtracted != 5 || summary.DetailsFailed != 0 {
		t.Fatalf("expected 5 extracted / 0 failed, got %d / %d", summary.DetailsExtracted, summary.DetailsFailed)
	}

	links := readCSV(t, summary.LinksFile)
	if len(links) != 6 {
		t.Fatalf("expected header + 5 link rows, got %d", len(links))
	}
	if links[0][0] != "name" || links[0][1] != "location" || links[0][2] != "url" {
		t.Fatalf("unexpected link header %v", links[0])
	}
	if links[1][0] != "Villa Aquamarine" {
		t.Fatalf("unexpected first link row %v", links[1])
	}

	details := readCSV(t, summary.DetailsFile)
	if len(details) != 6 {
		t.Fatalf("expected header + 5 detail rows, got %d", len(details))
	}
	if len(details[0]) != 84 {
		t.Fatalf("expected 84 columns, got %d", len(details[0]))
	}
	if details[1][2] != "P5WX7L" {
		t.Fatalf("expected first detail row to be the full villa, got property ID %q", details[1][2])
	}
}

func TestRunAgent_ZeroListings(t *testing.T) {
	cfg := testConfig(t)
	nav := &fakeNavigator{pages: map[string]string{
		testIndexURL: loadFixture(t, "index_empty.html"),
	}}

	o := NewOrchestrator(cfg, nav, testStore(t))
	summary := o.RunAgent(context.Background(), "jane")

	if summary.Err != nil {
		t.Fatalf("a zero-listing agent is still a successful run: %v", summary.Err)
	}
	if summary.LinksFound != 0 || summary.DetailsExtracted != 0 {
		t.Fatalf("expected empty result, got %d links %d details", summary.LinksFound, summary.DetailsExtracted)
	}

	// Both files exist header-only.
	links := readCSV(t, summary.LinksFile)
	if len(links) != 1 {
		t.Fatalf("expected header-only links file, got %d rows", len(links))
	}
	details := readCSV(t, summary.DetailsFile)
	if len(details) != 1 {
		t.Fatalf("expected header-only details file, got %d rows", len(details))
	}
	if len(details[0]) != 84 {
		t.Fatalf("expected 84 header columns, got %d", len(details[0]))
	}
}

func TestRunAgent_ResolutionFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	nav := &fakeNavigator{pages: map[string]string{}}

	o := NewOrchestrator(cfg, nav, testStore(t))
	summary := o.RunAgent(context.Background(), "jane")

	if !errors.Is(summary.Err, ErrAgentUnresolved) {
		t.Fatalf("expected ErrAgentUnresolved, got %v", summary.Err)
	}
	if summary.LinksFile != "" || summary.DetailsFile != "" {
		t.Fatal("no output files may be written when resolution fails")
	}
}

func TestRunAgent_DetailFailuresYieldPartialRows(t *testing.T) {
	cfg := testConfig(t)
	// Only the first of three listings has a detail page; the second URL
	// serves an unrecognizable page, the third fails outright.
	nav := &fakeNavigator{pages: map[string]string{
		testIndexURL:                   loadFixture(t, "index_page1.html"),
		testIndexURL + "?page=2":       loadFixture(t, "index_page2.html"),
		detailURL("villa-aquamarine"):  loadFixture(t, "detail_full.html"),
		detailURL("long-bay-parcel/"):  loadFixture(t, "not_a_listing.html"),
		detailURL("chalk-sound-villa"): detailPage("Chalk Sound Villa"),
		detailURL("north-caicos-estate"): detailPage("North Caicos Estate"),
	}}

	o := NewOrchestrator(cfg, nav, testStore(t))
	summary := o.RunAgent(context.Background(), "jane")

	if summary.Err != nil {
		t.Fatalf("detail failures must not fail the run: %v", summary.Err)
	}
	if summary.DetailsExtracted != 3 || summary.DetailsFailed != 2 {
		t.Fatalf("expected 3 extracted / 2 partial, got %d / %d", summary.DetailsExtracted, summary.DetailsFailed)
	}

	// The partial rows still occupy their discovery positions with the
	// agent, category, and title carried from the link.
	details := readCSV(t, summary.DetailsFile)
	if len(details) != 6 {
		t.Fatalf("expected header + 5 rows, got %d", len(details))
	}
	row := details[2] // Long Bay parcel, unrecognizable detail page
	if row[0] != "Jane Doe" || row[1] != "Real Estate" {
		t.Fatalf("partial row lost link fields: %v", row[:2])
	}
	if row[2] != "" || row[8] != "" {
		t.Fatalf("partial row must leave extracted fields empty, got id %q price %q", row[2], row[8])
	}
}

func TestRunAgent_PreservesDiscoveryOrderUnderConcurrency(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scraper.Concurrency = 3

	slugs := []string{"villa-aquamarine", "long-bay-parcel/", "ocean-point-condo", "chalk-sound-villa", "north-caicos-estate"}
	titles := []string{"First", "Second", "Third", "Fourth", "Fifth"}

	pages := map[string]string{
		testIndexURL:             loadFixture(t, "index_page1.html"),
		testIndexURL + "?page=2": loadFixture(t, "index_page2.html"),
	}
	delays := map[string]time.Duration{}
	for i, slug := range slugs {
		pages[detailURL(slug)] = detailPage(titles[i])
		// Earlier listings finish last.
		delays[detailURL(slug)] = time.Duration(len(slugs)-i) * 30 * time.Millisecond
	}
	nav := &slowNavigator{fakeNavigator: fakeNavigator{pages: pages}, delays: delays}

	o := NewOrchestrator(cfg, nav, testStore(t))
	summary := o.RunAgent(context.Background(), "jane")
	if summary.Err != nil {
		t.Fatalf("run failed: %v", summary.Err)
	}

	details := readCSV(t, summary.DetailsFile)
	if len(details) != 6 {
		t.Fatalf("expected header + 5 rows, got %d", len(details))
	}
	for i, want := range titles {
		if got := details[i+1][22]; got != want {
			t.Fatalf("row %d out of order: expected title %q, got %q", i, want, got)
		}
	}
}
