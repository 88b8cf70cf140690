package scraper

import (
	"fmt"

	"sir_scrooper/models"
)

// The detail field table: one FieldSpec per schema field, in schema order.
// Section/label pairs mirror the site's listing-info columns; selector and
// regex fallbacks cover the older templates that lack the column markup.
var (
	specPropertyID = FieldSpec{Name: "property_id", Strategies: []Strategy{
		label("Listing Details", "Property ID"),
		re(`"propertyId":"([A-Z0-9-]+)"`),
	}}
	specMLS = FieldSpec{Name: "mls", Strategies: []Strategy{
		label("Listing Details", "MLS#"),
		label("Listing Details", "MLS Number"),
	}}
	specStatus = FieldSpec{Name: "status", Strategies: []Strategy{
		label("Listing Details", "Status"),
		sel(".c-ldp-header__status"),
	}}
	specMarketedBy = FieldSpec{Name: "marketed_by", Strategies: []Strategy{
		label("Listing Details", "Marketed By"),
		sel(".c-ldp-agent-card__office"),
	}}
	specPropertyType = FieldSpec{Name: "property_type", Strategies: []Strategy{
		label("Listing Details", "Property type"),
		label("Listing Details", "Property Type"),
	}}
	specStyle = FieldSpec{Name: "style", Strategies: []Strategy{
		label("Utilities & Building", "Style"),
	}}
	specPrice = FieldSpec{Name: "price", Numeric: true, Strategies: []Strategy{
		label("Listing Details", "Price"),
		sel(".c-ldp-header__price"),
		re(`"price":\{"_text":"([^"]+)"`),
	}}
	specYearBuilt = FieldSpec{Name: "year_built", Numeric: true, Strategies: []Strategy{
		label("Utilities & Building", "Year Built"),
		label("Listing Details", "Year Built"),
	}}
	specBedrooms = FieldSpec{Name: "bedrooms", Numeric: true, Strategies: []Strategy{
		label("Interior", "Bedrooms"),
		sel(".c-ldp-header__beds"),
	}}
	specFullBaths = FieldSpec{Name: "full_baths", Numeric: true, Strategies: []Strategy{
		label("Interior", "Full Bathrooms"),
		sel(".c-ldp-header__baths"),
	}}
	specPartialBaths = FieldSpec{Name: "partial_baths", Numeric: true, Strategies: []Strategy{
		label("Interior", "partial baths"),
		label("Interior", "Partial Bathrooms"),
	}}
	specTotalSqft = FieldSpec{Name: "total_sqft", Numeric: true, Strategies: []Strategy{
		label("Utilities & Building", "total sqft"),
		sel(".c-ldp-header__sqft"),
	}}
	specLotSize = FieldSpec{Name: "lot_size", Strategies: []Strategy{
		label("Utilities & Building", "Lot Size"),
	}}
	specLotSizeUnit = FieldSpec{Name: "lot_size_unit", Strategies: []Strategy{
		label("Utilities & Building", "Lot Size Unit"),
	}}
	specParking = FieldSpec{Name: "parking", Strategies: []Strategy{
		label("Utilities & Building", "parking"),
		label("Exterior", "Parking"),
	}}
	specCooling = FieldSpec{Name: "cooling", Strategies: []Strategy{
		label("Utilities & Building", "cooling"),
	}}
	specInteriorFeatures = FieldSpec{Name: "interior_features", Strategies: []Strategy{
		label("Interior", "Features"),
	}}
	specAdditionalFeatures = FieldSpec{Name: "additional_features", Strategies: []Strategy{
		label("Additional Features", "Features"),
		sel(".property-details-accordion-content"),
	}}
	specDescriptionTitle = FieldSpec{Name: "description_title", Strategies: []Strategy{
		sel("h1.c-ldp-header__address"),
		sel(".description-title"),
		sel("h1"),
	}}
	specDescription = FieldSpec{Name: "description", Strategies: []Strategy{
		sel("div.description"),
		sel(".c-ldp-description__text"),
	}}
)

// ParseDetail extracts one complete PropertyRecord from a detail page.
// Individual missing fields never fail the parse; the only error is
// ErrInvalidPropertyPage when the markup carries no listing layout at all
// (wrong URL, interstitial, hard block).
func ParseDetail(page *Page, link models.ListingLink, agentName string) (*models.PropertyRecord, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPropertyPage, err)
	}

	px := newPageContext(doc, page.HTML)
	if !px.recognizable() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPropertyPage, page.URL)
	}

	rec := &models.PropertyRecord{
		AgentName: agentName,
		Category:  models.Category,
		Name:      link.Name,
		URL:       link.URL,
	}

	rec.PropertyID = px.extract(specPropertyID)
	rec.MLS = px.extract(specMLS)
	rec.Status = px.extract(specStatus)
	rec.MarketedBy = px.extract(specMarketedBy)
	rec.PropertyType = px.extract(specPropertyType)
	rec.Style = px.extract(specStyle)
	rec.Price = px.extract(specPrice)
	rec.YearBuilt = px.extract(specYearBuilt)
	rec.Bedrooms = px.extract(specBedrooms)
	rec.FullBaths = px.extract(specFullBaths)
	rec.PartialBaths = px.extract(specPartialBaths)
	rec.TotalSqft = px.extract(specTotalSqft)
	rec.LotSize = px.extract(specLotSize)
	rec.LotSizeUnit = px.extract(specLotSizeUnit)
	rec.Parking = px.extract(specParking)
	rec.Cooling = px.extract(specCooling)
	rec.InteriorFeatures = px.extract(specInteriorFeatures)
	rec.AdditionalFeatures = px.extract(specAdditionalFeatures)
	rec.DescriptionTitle = px.extract(specDescriptionTitle)
	rec.Description = px.extract(specDescription)
	rec.Latitude, rec.Longitude = px.latLng()
	rec.Images = px.gallery()

	if page.Degraded {
		rec.Partial = true
	}

	return rec, nil
}
