package scraper

import (
	"errors"
	"reflect"
	"testing"

	"sir_scrooper/models"
)

func TestParseDetail_FullPage(t *testing.T) {
	page := &Page{
		URL:  "https://www.sothebysrealty.com/turksandcaicossir/eng/sales/detail/villa-aquamarine",
		HTML: loadFixture(t, "detail_full.html"),
	}
	link := models.ListingLink{
		Name:     "Villa Aquamarine",
		Location: "Grace Bay, Providenciales, Turks And Caicos Islands",
		URL:      page.URL,
	}

	rec, err := ParseDetail(page, link, "Jane Doe")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if rec.AgentName != "Jane Doe" {
		t.Fatalf("expected agent Jane Doe, got %q", rec.AgentName)
	}
	if rec.Category != models.Category {
		t.Fatalf("expected category %q, got %q", models.Category, rec.Category)
	}
	if rec.Name != "Villa Aquamarine" || rec.URL != page.URL {
		t.Fatalf("link fields not carried over: %q %q", rec.Name, rec.URL)
	}
	if rec.PropertyID != "P5WX7L" {
		t.Fatalf("expected property ID P5WX7L, got %q", rec.PropertyID)
	}
	if rec.MLS != "2400119" {
		t.Fatalf("expected MLS 2400119, got %q", rec.MLS)
	}
	if rec.Status != "Active" {
		t.Fatalf("expected status Active, got %q", rec.Status)
	}
	if rec.MarketedBy != "Turks & Caicos Sotheby's International Realty" {
		t.Fatalf("unexpected marketed by %q", rec.MarketedBy)
	}
	if rec.PropertyType != "Single Family Home" {
		t.Fatalf("unexpected property type %q", rec.PropertyType)
	}
	if rec.Style != "Beachfront Villa" {
		t.Fatalf("unexpected style %q", rec.Style)
	}
	if rec.Price != "1250000" {
		t.Fatalf("expected price 1250000, got %q", rec.Price)
	}
	if rec.YearBuilt != "2018" {
		t.Fatalf("expected year built 2018, got %q", rec.YearBuilt)
	}
	if rec.Bedrooms != "4" || rec.FullBaths != "3" || rec.PartialBaths != "1" {
		t.Fatalf("unexpected bed/bath counts: %q %q %q", rec.Bedrooms, rec.FullBaths, rec.PartialBaths)
	}
	if rec.TotalSqft != "3400" {
		t.Fatalf("expected sqft 3400, got %q", rec.TotalSqft)
	}
	if rec.LotSize != "0.75" || rec.LotSizeUnit != "acre(s)" {
		t.Fatalf("unexpected lot size %q %q", rec.LotSize, rec.LotSizeUnit)
	}
	if rec.Parking != "2 Car Garage" {
		t.Fatalf("unexpected parking %q", rec.Parking)
	}
	if rec.Cooling != "Central Air" {
		t.Fatalf("unexpected cooling %q", rec.Cooling)
	}
	if rec.InteriorFeatures != "Vaulted Ceilings, Walk-in Closet, Wet Bar" {
		t.Fatalf("unexpected interior features %q", rec.InteriorFeatures)
	}
	if rec.AdditionalFeatures != "Standby Generator, Hurricane Shutters, Private Dock" {
		t.Fatalf("unexpected additional features %q", rec.AdditionalFeatures)
	}
	if rec.Latitude != "21.7846" || rec.Longitude != "-72.2719" {
		t.Fatalf("unexpected coordinates %q,%q", rec.Latitude, rec.Longitude)
	}
	if rec.DescriptionTitle != "Villa Aquamarine" {
		t.Fatalf("unexpected description title %q", rec.DescriptionTitle)
	}
	if rec.Description == "" {
		t.Fatal("expected a description")
	}
	if len(rec.Images) != 3 {
		t.Fatalf("expected 3 gallery images, got %d", len(rec.Images))
	}
	if rec.Partial {
		t.Fatal("full page must not be partial")
	}
}

func TestParseDetail_Deterministic(t *testing.T) {
	page := &Page{
		URL:  "https://www.sothebysrealty.com/turksandcaicossir/eng/sales/detail/villa-aquamarine",
		HTML: loadFixture(t, "detail_full.html"),
	}
	link := models.ListingLink{Name: "Villa Aquamarine", URL: page.URL}

	first, err := ParseDetail(page, link, "Jane Doe")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	second, err := ParseDetail(page, link, "Jane Doe")
	if err != nil {
		t.Fatalf("second parse failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("same markup must produce identical records")
	}
}

func TestParseDetail_SparsePage(t *testing.T) {
	page := &Page{
		URL:  "https://www.sothebysrealty.com/turksandcaicossir/eng/sales/detail/long-bay-parcel",
		HTML: loadFixture(t, "detail_sparse.html"),
	}
	link := models.ListingLink{Name: "Long Bay Land Parcel", URL: page.URL}

	rec, err := ParseDetail(page, link, "Jane Doe")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// Missing fields stay empty rather than failing the parse.
	if rec.PropertyID != "" || rec.MLS != "" || rec.Bedrooms != "" {
		t.Fatalf("expected absent fields, got %q %q %q", rec.PropertyID, rec.MLS, rec.Bedrooms)
	}
	if rec.Price != "900000" {
		t.Fatalf("expected price 900000, got %q", rec.Price)
	}
	if rec.Latitude != "21.7512" || rec.Longitude != "-72.1533" {
		t.Fatalf("unexpected coordinates %q,%q", rec.Latitude, rec.Longitude)
	}
	if len(rec.Images) != 0 {
		t.Fatalf("expected no images, got %d", len(rec.Images))
	}
	if rec.Partial {
		t.Fatal("sparse but recognizable page must not be partial")
	}
}

func TestParseDetail_DegradedPageMarksPartial(t *testing.T) {
	page := &Page{
		URL:      "https://www.sothebysrealty.com/turksandcaicossir/eng/sales/detail/long-bay-parcel",
		HTML:     loadFixture(t, "detail_sparse.html"),
		Degraded: true,
	}
	link := models.ListingLink{Name: "Long Bay Land Parcel", URL: page.URL}

	rec, err := ParseDetail(page, link, "Jane Doe")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !rec.Partial {
		t.Fatal("degraded page must mark the record partial")
	}
}

func TestParseDetail_UnrecognizablePage(t *testing.T) {
	page := &Page{
		URL:  "https://www.sothebysrealty.com/turksandcaicossir/eng/sales/detail/gone",
		HTML: loadFixture(t, "not_a_listing.html"),
	}

	_, err := ParseDetail(page, models.ListingLink{URL: page.URL}, "Jane Doe")
	if !errors.Is(err, ErrInvalidPropertyPage) {
		t.Fatalf("expected ErrInvalidPropertyPage, got %v", err)
	}
}

func TestParseDetail_GalleryOrderAndCap(t *testing.T) {
	page := &Page{
		URL:  "https://www.sothebysrealty.com/turksandcaicossir/eng/sales/detail/villa-panorama",
		HTML: loadFixture(t, "detail_gallery_overflow.html"),
	}

	rec, err := ParseDetail(page, models.ListingLink{Name: "Villa Panorama", URL: page.URL}, "Jane Doe")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(rec.Images) != models.MaxGalleryImages {
		t.Fatalf("expected %d images, got %d", models.MaxGalleryImages, len(rec.Images))
	}
	if rec.Images[0] != "https://photos.sothebysrealty.com/ta/villa-panorama-1.jpg" {
		t.Fatalf("unexpected first image %s", rec.Images[0])
	}
}
