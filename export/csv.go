package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"sir_scrooper/models"
)

// Column layouts are fixed so every emitted file has a stable schema, no
// matter which fields a given listing resolved.
var linkHeader = []string{"name", "location", "url"}

var detailScalarHeader = []string{
	"agent_name", "category", "property_id", "mls", "status", "marketed_by",
	"property_type", "style", "price", "year_built", "bedrooms", "full_baths",
	"partial_baths", "total_sqft", "lot_size", "lot_size_unit", "parking",
	"cooling", "interior_features", "additional_features", "latitude",
	"longitude", "description_title", "description",
}

// DetailHeader returns the detail-table header: the scalar columns followed
// by image_1..image_60.
func DetailHeader() []string {
	header := make([]string, 0, len(detailScalarHeader)+models.MaxGalleryImages)
	header = append(header, detailScalarHeader...)
	for i := 1; i <= models.MaxGalleryImages; i++ {
		header = append(header, fmt.Sprintf("image_%d", i))
	}
	return header
}

// SanitizeAgentName derives the output filename stem: non-alphanumeric
// characters become underscores, and an empty result falls back to
// "property".
func SanitizeAgentName(name string) string {
	out := make([]rune, 0, len(name))
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	// Collapse to "property" when nothing usable survived.
	for _, c := range out {
		if c != '_' {
			return string(out)
		}
	}
	return "property"
}

// WriteLinks emits the link index table. A zero-listing agent still gets a
// header-only file.
func WriteLinks(dir, agentName string, links []models.ListingLink) (string, error) {
	path := filepath.Join(dir, SanitizeAgentName(agentName)+"_links.csv")
	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, []string{l.Name, l.Location, l.URL})
	}
	if err := writeCSV(path, linkHeader, rows); err != nil {
		return "", err
	}
	return path, nil
}

// WriteDetails emits the detail table with the fixed column order.
func WriteDetails(dir, agentName string, records []models.PropertyRecord) (string, error) {
	path := filepath.Join(dir, SanitizeAgentName(agentName)+"_properties.csv")
	rows := make([][]string, 0, len(records))
	for i := range records {
		rows = append(rows, DetailRow(&records[i]))
	}
	if err := writeCSV(path, DetailHeader(), rows); err != nil {
		return "", err
	}
	return path, nil
}

// DetailRow flattens one record into the fixed column order. Absent fields
// stay empty; image columns past the gallery length stay empty too.
func DetailRow(rec *models.PropertyRecord) []string {
	row := make([]string, 0, len(detailScalarHeader)+models.MaxGalleryImages)
	row = append(row,
		rec.AgentName, rec.Category, rec.PropertyID, rec.MLS, rec.Status,
		rec.MarketedBy, rec.PropertyType, rec.Style, rec.Price, rec.YearBuilt,
		rec.Bedrooms, rec.FullBaths, rec.PartialBaths, rec.TotalSqft,
		rec.LotSize, rec.LotSizeUnit, rec.Parking, rec.Cooling,
		rec.InteriorFeatures, rec.AdditionalFeatures, rec.Latitude,
		rec.Longitude, rec.DescriptionTitle, rec.Description,
	)
	for i := 0; i < models.MaxGalleryImages; i++ {
		if i < len(rec.Images) {
			row = append(row, rec.Images[i])
		} else {
			row = append(row, "")
		}
	}
	return row
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	werr := w.Write(header)
	for _, row := range rows {
		if werr != nil {
			break
		}
		werr = w.Write(row)
	}
	w.Flush()
	if werr == nil {
		werr = w.Error()
	}

	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write %s: %w", path, werr)
	}
	return nil
}
