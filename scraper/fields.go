package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"sir_scrooper/models"
)

// Listing-detail markup hooks. The site renders field tables as titled
// columns of label/value items; the hero carousel carries the gallery.
const (
	selInfoColumn  = ".m-property-details-listing-info__column"
	selColumnTitle = ".m-property-details-listing-info__column-title"
	selInfoItem    = ".m-listing-info__item"
	selItemTitle   = ".m-listing-info__item-title"
	selItemContent = ".m-listing-info__item-content"
	selHeroWrapper = ".c-ldp-hero-carousel__wrapper"
	selHeroImage   = ".c-ldp-hero-slide__image"
)

type strategyKind int

const (
	byLabel strategyKind = iota
	bySelector
	byAttr
	byRegex
)

// Strategy is one way of locating a field in the markup. A FieldSpec tries
// its strategies in order and keeps the first non-empty hit, which is what
// lets one field table survive the site's template variations.
type Strategy struct {
	kind     strategyKind
	section  string // byLabel: column title, "" matches any column
	label    string // byLabel: item title
	selector string // bySelector / byAttr
	attr     string // byAttr
	pattern  *regexp.Regexp
}

func label(section, name string) Strategy {
	return Strategy{kind: byLabel, section: section, label: name}
}

func sel(css string) Strategy {
	return Strategy{kind: bySelector, selector: css}
}

func attr(css, name string) Strategy {
	return Strategy{kind: byAttr, selector: css, attr: name}
}

func re(pattern string) Strategy {
	return Strategy{kind: byRegex, pattern: regexp.MustCompile(pattern)}
}

// FieldSpec is the ordered strategy list for one semantic field. Numeric
// fields additionally pass value normalization; a hit that fails numeric
// validation falls through to the next strategy.
type FieldSpec struct {
	Name       string
	Numeric    bool
	Strategies []Strategy
}

// pageContext indexes one parsed detail page for repeated field extraction.
// The label table is built once; strategies then run against the index, the
// document, or the raw markup depending on their kind.
type pageContext struct {
	doc    *goquery.Document
	html   string
	labels map[string]string // "section\x00label" and "\x00label", lowercased
}

func newPageContext(doc *goquery.Document, html string) *pageContext {
	px := &pageContext{doc: doc, html: html, labels: make(map[string]string)}

	doc.Find(selInfoColumn).Each(func(_ int, column *goquery.Selection) {
		section := strings.TrimSpace(column.Find(selColumnTitle).First().Text())
		column.Find(selInfoItem).Each(func(_ int, item *goquery.Selection) {
			title := strings.TrimSpace(item.Find(selItemTitle).First().Text())
			content := strings.TrimSpace(item.Find(selItemContent).First().Text())
			if title == "" || content == "" {
				return
			}
			px.labels[labelKey(section, title)] = content
			// Unsectioned key keeps lookups working when a template
			// drops or renames column titles.
			if _, exists := px.labels[labelKey("", title)]; !exists {
				px.labels[labelKey("", title)] = content
			}
		})
	})

	return px
}

func labelKey(section, label string) string {
	return strings.ToLower(strings.TrimSpace(section)) + "\x00" + strings.ToLower(strings.TrimSpace(label))
}

// recognizable reports whether the page carries any known listing layout.
// A page with none of the anchors is not a property page at all.
func (px *pageContext) recognizable() bool {
	if len(px.labels) > 0 {
		return true
	}
	if px.doc.Find(selHeroWrapper).Length() > 0 {
		return true
	}
	return px.doc.Find("div.description").Length() > 0
}

// extract runs the field's strategies in order and returns the first
// non-empty (and, for numeric fields, valid) value, or "" when absent.
func (px *pageContext) extract(spec FieldSpec) string {
	for _, st := range spec.Strategies {
		value := px.runStrategy(st)
		if value == "" {
			continue
		}
		if spec.Numeric {
			if normalized, ok := normalizeNumber(value); ok {
				return normalized
			}
			continue
		}
		return value
	}
	return ""
}

func (px *pageContext) runStrategy(st Strategy) string {
	switch st.kind {
	case byLabel:
		if v, ok := px.labels[labelKey(st.section, st.label)]; ok {
			return v
		}
		if st.section != "" {
			// Tolerate columns that moved between sections.
			return px.labels[labelKey("", st.label)]
		}
		return ""
	case bySelector:
		return strings.TrimSpace(px.doc.Find(st.selector).First().Text())
	case byAttr:
		v, _ := px.doc.Find(st.selector).First().Attr(st.attr)
		return strings.TrimSpace(v)
	case byRegex:
		m := st.pattern.FindStringSubmatch(px.html)
		if len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
		return ""
	}
	return ""
}

// normalizeNumber strips currency symbols, thousands separators, units and
// other formatting, then validates the remainder as a number. "$1,250,000"
// comes back as "1250000".
func normalizeNumber(raw string) (string, bool) {
	var b strings.Builder
	seenDot := false
	for _, c := range strings.TrimSpace(raw) {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '.' && !seenDot:
			seenDot = true
			b.WriteRune(c)
		case c == '-' && b.Len() == 0:
			b.WriteRune(c)
		default:
			// Currency markers and separators before the digits are
			// formatting; anything after them is a unit suffix.
			if b.Len() > 0 && c != ',' && c != ' ' && c != ' ' {
				goto done
			}
		}
	}
done:
	s := strings.TrimSuffix(b.String(), ".")
	if s == "" || s == "-" {
		return "", false
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return "", false
	}
	return s, true
}

// Geo-coordinates live in an embedded JSON blob on well-formed pages; older
// templates only expose them through a "lat,lng" map query token.
var (
	latPattern      = regexp.MustCompile(`"latitude":\{"_text":"(-?\d+\.?\d*)"`)
	lngPattern      = regexp.MustCompile(`"longitude":\{"_text":"(-?\d+\.?\d*)"`)
	latLngTokenExpr = regexp.MustCompile(`[?&]query=(-?\d+\.\d+)\s*,\s*(-?\d+\.\d+)`)
)

// latLng extracts the coordinate pair. Both values must validate as floats
// independently; anything else yields absent for both.
func (px *pageContext) latLng() (string, string) {
	latM := latPattern.FindStringSubmatch(px.html)
	lngM := lngPattern.FindStringSubmatch(px.html)
	if len(latM) > 1 && len(lngM) > 1 {
		if lat, lng, ok := validCoordPair(latM[1], lngM[1]); ok {
			return lat, lng
		}
	}

	if m := latLngTokenExpr.FindStringSubmatch(px.html); len(m) > 2 {
		if lat, lng, ok := validCoordPair(m[1], m[2]); ok {
			return lat, lng
		}
	}

	return "", ""
}

func validCoordPair(lat, lng string) (string, string, bool) {
	latF, err1 := strconv.ParseFloat(lat, 64)
	lngF, err2 := strconv.ParseFloat(lng, 64)
	if err1 != nil || err2 != nil {
		return "", "", false
	}
	if latF < -90 || latF > 90 || lngF < -180 || lngF > 180 {
		return "", "", false
	}
	return lat, lng, true
}

// gallery collects hero-slide image sources in document order, unwraps the
// image CDN's url= parameter, collapses consecutive carousel repeats, and
// truncates to MaxGalleryImages. Never fails.
func (px *pageContext) gallery() []string {
	var images []string
	px.doc.Find(selHeroImage).Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		if !strings.HasPrefix(src, "http") {
			return
		}
		cleaned := cleanImageURL(src)
		if len(images) > 0 && images[len(images)-1] == cleaned {
			return
		}
		images = append(images, cleaned)
	})

	if len(images) > models.MaxGalleryImages {
		images = images[:models.MaxGalleryImages]
	}
	return images
}

// cleanImageURL unwraps resizer URLs of the form
// https://cdn/.../resize?url=<original>&w=... down to the original asset.
func cleanImageURL(src string) string {
	if parsed, err := url.Parse(src); err == nil {
		if original := parsed.Query().Get("url"); original != "" {
			return original
		}
	}
	if i := strings.IndexByte(src, '&'); i >= 0 {
		return src[:i]
	}
	return src
}
