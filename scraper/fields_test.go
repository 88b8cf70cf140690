package scraper

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"sir_scrooper/models"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

func fixtureContext(t *testing.T, name string) *pageContext {
	t.Helper()
	html := loadFixture(t, name)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse fixture %s: %v", name, err)
	}
	return newPageContext(doc, html)
}

func TestNormalizeNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"$1,250,000", "1250000", true},
		{"US$900,000", "900000", true},
		{"3,400 Sq Ft.", "3400", true},
		{"4", "4", true},
		{"0.75", "0.75", true},
		{"-12.5", "-12.5", true},
		{"2018", "2018", true},
		{"1,234.56 acres", "1234.56", true},
		{"Price upon request", "", false},
		{"", "", false},
		{"   ", "", false},
		{"N/A", "", false},
	}

	for _, c := range cases {
		got, ok := normalizeNumber(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("normalizeNumber(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestExtract_FallbackOrder(t *testing.T) {
	px := fixtureContext(t, "detail_full.html")

	// Label hit wins over later strategies.
	if got := px.extract(specPropertyID); got != "P5WX7L" {
		t.Fatalf("expected property ID P5WX7L, got %q", got)
	}
	// Numeric field normalized from the label value.
	if got := px.extract(specPrice); got != "1250000" {
		t.Fatalf("expected price 1250000, got %q", got)
	}
	if got := px.extract(specTotalSqft); got != "3400" {
		t.Fatalf("expected sqft 3400, got %q", got)
	}
}

func TestExtract_AbsentField(t *testing.T) {
	px := fixtureContext(t, "detail_sparse.html")

	if got := px.extract(specMLS); got != "" {
		t.Fatalf("expected absent MLS, got %q", got)
	}
	if got := px.extract(specBedrooms); got != "" {
		t.Fatalf("expected absent bedrooms, got %q", got)
	}
	// Regex fallback still resolves the price on the sparse template.
	if got := px.extract(specPrice); got != "900000" {
		t.Fatalf("expected price 900000 via regex fallback, got %q", got)
	}
}

func TestLatLng_JSONBlob(t *testing.T) {
	px := fixtureContext(t, "detail_full.html")

	lat, lng := px.latLng()
	if lat != "21.7846" || lng != "-72.2719" {
		t.Fatalf("expected 21.7846,-72.2719, got %q,%q", lat, lng)
	}
}

func TestLatLng_QueryToken(t *testing.T) {
	px := fixtureContext(t, "detail_sparse.html")

	lat, lng := px.latLng()
	if lat != "21.7512" || lng != "-72.1533" {
		t.Fatalf("expected 21.7512,-72.1533, got %q,%q", lat, lng)
	}
}

func TestLatLng_InvalidPair(t *testing.T) {
	html := `<html><body><div class="description">x</div>
		<script>{"latitude":{"_text":"121.5"},"longitude":{"_text":"-72.1"}}</script>
		</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	px := newPageContext(doc, html)

	lat, lng := px.latLng()
	if lat != "" || lng != "" {
		t.Fatalf("out-of-range latitude must yield neither coordinate, got %q,%q", lat, lng)
	}
}

func TestGallery_CleansAndDedupes(t *testing.T) {
	px := fixtureContext(t, "detail_full.html")

	images := px.gallery()
	want := []string{
		"https://photos.sothebysrealty.com/ta/villa-aquamarine-1.jpg",
		"https://photos.sothebysrealty.com/ta/villa-aquamarine-2.jpg",
		"https://photos.sothebysrealty.com/ta/villa-aquamarine-3.jpg",
	}
	if len(images) != len(want) {
		t.Fatalf("expected %d images, got %d: %v", len(want), len(images), images)
	}
	for i := range want {
		if images[i] != want[i] {
			t.Fatalf("image %d: expected %s, got %s", i, want[i], images[i])
		}
	}
}

func TestGallery_Cap(t *testing.T) {
	px := fixtureContext(t, "detail_gallery_overflow.html")

	images := px.gallery()
	if len(images) != models.MaxGalleryImages {
		t.Fatalf("expected gallery capped at %d, got %d", models.MaxGalleryImages, len(images))
	}
	if images[0] != "https://photos.sothebysrealty.com/ta/villa-panorama-1.jpg" {
		t.Fatalf("unexpected first image %s", images[0])
	}
	// Slide 12 repeats in the carousel; the duplicate must collapse so slide
	// 13 follows directly.
	if images[12] != "https://photos.sothebysrealty.com/ta/villa-panorama-13.jpg" {
		t.Fatalf("consecutive duplicate not collapsed, image 12 is %s", images[12])
	}
}

func TestCleanImageURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{
			"https://media.sothebysrealty.com/resize?url=https://photos.sothebysrealty.com/ta/a.jpg&w=1200",
			"https://photos.sothebysrealty.com/ta/a.jpg",
		},
		{
			// No url= wrapper: the URL is truncated at the first extra param.
			"https://photos.sothebysrealty.com/ta/b.jpg?h=800&crop=1",
			"https://photos.sothebysrealty.com/ta/b.jpg?h=800",
		},
		{
			"https://photos.sothebysrealty.com/ta/c.jpg",
			"https://photos.sothebysrealty.com/ta/c.jpg",
		},
	}

	for _, c := range cases {
		if got := cleanImageURL(c.in); got != c.want {
			t.Fatalf("cleanImageURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
