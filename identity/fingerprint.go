package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"sir_scrooper/models"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Fingerprint identifies a property across runs and relistings. The site's
// own Property ID wins when present; otherwise the identity is derived from
// the normalized name plus the stable physical attributes.
func Fingerprint(rec *models.PropertyRecord) string {
	var input string
	if rec.PropertyID != "" {
		input = "pid|" + strings.ToLower(strings.TrimSpace(rec.PropertyID))
	} else {
		input = fmt.Sprintf("%s|%s|%s|%s|%s",
			NormalizeName(rec.Name),
			NormalizeName(rec.DescriptionTitle),
			rec.Bedrooms,
			rec.FullBaths,
			rec.TotalSqft,
		)
	}
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeName lowercases, strips punctuation, and collapses whitespace so
// cosmetic listing-title edits don't change the fingerprint.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = nonAlnumRegex.ReplaceAllString(name, " ")
	name = multiSpaceRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
