// Package parser turns raw catalog markup text into typed record fields.
// Every function here is total: malformed input degrades to a documented
// fallback value instead of an error, so a single bad field never drops a
// whole item.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-books-api/models"
)

// FallbackTitle is emitted when the title anchor or attribute is missing.
const FallbackTitle = "N/A"

// DefaultRatingWords maps the catalog's ordinal rating vocabulary to stars.
// Anything outside the map reads as 0, meaning "unrecognized rating marker".
var DefaultRatingWords = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

// ParsePrice extracts the first contiguous run of digits and dots from
// free-text and parses it as a price. Missing or unparseable input yields
// 0.0, which callers must treat as "unknown" rather than a real price.
func ParsePrice(text string) float64 {
	start := -1
	end := -1
	for i, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			if start < 0 {
				start = i
			}
			end = i + 1
			continue
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return 0.0
	}

	value, err := strconv.ParseFloat(strings.Trim(text[start:end], "."), 64)
	if err != nil || value < 0 {
		return 0.0
	}
	return value
}

// RatingFromWord maps a rating word to its numeric star value using words,
// falling back to DefaultRatingWords when words is nil.
func RatingFromWord(word string, words map[string]int) int {
	if words == nil {
		words = DefaultRatingWords
	}
	return words[strings.TrimSpace(word)]
}

// RatingWordFromClass picks the rating word out of a CSS class attribute
// like "star-rating Three". Returns "" if the attribute has no second token.
func RatingWordFromClass(class string) string {
	parts := strings.Fields(class)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Available reports whether the raw stock text contains the in-stock marker.
// The match is case-sensitive: the phrase is part of the origin site's
// markup contract, not natural language.
func Available(text, marker string) bool {
	return marker != "" && strings.Contains(text, marker)
}

// NormalizeTitle trims the extracted title and substitutes the fallback for
// empty input.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return FallbackTitle
	}
	return title
}

// ValidateRecord ensures a record is structurally sound before it enters the
// output pipeline.
func ValidateRecord(r *models.BookRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if r.ID <= 0 {
		return fmt.Errorf("record %q has non-positive id %d", r.Title, r.ID)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("record %d missing title", r.ID)
	}
	if r.Price < 0 {
		return fmt.Errorf("record %q has negative price %f", r.Title, r.Price)
	}
	if r.Rating < 0 || r.Rating > 5 {
		return fmt.Errorf("record %q has rating %d outside 0..5", r.Title, r.Rating)
	}
	if r.DetailURL == "" {
		return fmt.Errorf("record %q missing detail url", r.Title)
	}
	return nil
}
