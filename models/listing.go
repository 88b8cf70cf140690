package models

import "time"

// MaxGalleryImages caps the image URLs kept per property. Extra gallery
// images are dropped silently, never an error.
const MaxGalleryImages = 60

// Category tags every detail row. The pipeline only handles one vertical.
const Category = "Real Estate"

// ListingLink is one discovered reference to a property detail page.
// URL is unique within an agent's result set after normalization;
// Name and Location may be empty when the card omits them.
type ListingLink struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	URL      string `json:"url"`
}

// PropertyRecord is the fully parsed attribute set for one property.
// Every scalar field is a string with "" as the absent sentinel, so each
// output row carries the full schema regardless of what the page had.
// Records are terminal: produced from exactly one ListingLink, never mutated.
type PropertyRecord struct {
	AgentName          string   `json:"agent_name"`
	Category           string   `json:"category"`
	Name               string   `json:"name"`
	URL                string   `json:"url"`
	PropertyID         string   `json:"property_id"`
	MLS                string   `json:"mls"`
	Status             string   `json:"status"`
	MarketedBy         string   `json:"marketed_by"`
	PropertyType       string   `json:"property_type"`
	Style              string   `json:"style"`
	Price              string   `json:"price"`
	YearBuilt          string   `json:"year_built"`
	Bedrooms           string   `json:"bedrooms"`
	FullBaths          string   `json:"full_baths"`
	PartialBaths       string   `json:"partial_baths"`
	TotalSqft          string   `json:"total_sqft"`
	LotSize            string   `json:"lot_size"`
	LotSizeUnit        string   `json:"lot_size_unit"`
	Parking            string   `json:"parking"`
	Cooling            string   `json:"cooling"`
	InteriorFeatures   string   `json:"interior_features"`
	AdditionalFeatures string   `json:"additional_features"`
	Latitude           string   `json:"latitude"`
	Longitude          string   `json:"longitude"`
	DescriptionTitle   string   `json:"description_title"`
	Description        string   `json:"description"`
	Images             []string `json:"images"`

	// Partial marks a record whose page load or parse failed partway;
	// whatever fields resolved before the failure are kept.
	Partial bool `json:"partial"`
}

// StoredRecord wraps a PropertyRecord with persistence metadata.
type StoredRecord struct {
	ID        string         `json:"id" db:"id"`
	AgentID   string         `json:"agent_id" db:"agent_id"`
	RunID     int64          `json:"run_id" db:"run_id"`
	Record    PropertyRecord `json:"record"`
	ScrapedAt time.Time      `json:"scraped_at" db:"scraped_at"`
	Synced    bool           `json:"synced" db:"synced"`
}

// GalleryImage is one queued gallery URL awaiting archive upload.
type GalleryImage struct {
	ID          int64      `json:"id" db:"id"`
	RecordID    string     `json:"record_id" db:"record_id"`
	URL         string     `json:"url" db:"url"`
	Position    int        `json:"position" db:"position"`
	Status      string     `json:"status" db:"status"` // pending, uploaded, failed
	Attempts    int        `json:"attempts" db:"attempts"`
	S3Key       string     `json:"s3_key" db:"s3_key"`
	ContentHash string     `json:"content_hash" db:"content_hash"`
	UploadedAt  *time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// Gallery image status
const (
	ImageStatusPending  = "pending"
	ImageStatusUploaded = "uploaded"
	ImageStatusFailed   = "failed"
)
