package protocol

import (
	"fmt"
	"slices"
	"strings"
)

// Countries accepted by country filters, in menu order.
var Countries = []string{"au", "ca", "jp", "ae", "sa", "kr", "us", "ma"}

// Languages accepted by language filters, in menu order.
var Languages = []string{"ar", "en"}

// Categories accepted by category filters, in menu order.
var Categories = []string{"business", "general", "health", "science", "sports", "technology"}

// CountryNames holds display names for Countries.
var CountryNames = map[string]string{
	"au": "Australia",
	"ca": "Canada",
	"jp": "Japan",
	"ae": "UAE",
	"sa": "Saudi Arabia",
	"kr": "South Korea",
	"us": "USA",
	"ma": "Morocco",
}

// LanguageNames holds display names for Languages.
var LanguageNames = map[string]string{
	"ar": "Arabic",
	"en": "English",
}

// FilterValues returns the closed value set for kind, or nil when kind takes
// free text (keyword) or no value (all).
func FilterValues(kind FilterKind) []string {
	switch kind {
	case FilterCategory:
		return Categories
	case FilterCountry:
		return Countries
	case FilterLanguage:
		return Languages
	default:
		return nil
	}
}

// NeedsValue reports whether kind is sent after a READY reply.
func NeedsValue(kind FilterKind) bool {
	return kind != FilterAll
}

// ValidateFilter checks value against the rules for kind.
func ValidateFilter(kind FilterKind, value string) error {
	switch kind {
	case FilterAll:
		return nil
	case FilterKeyword:
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: keyword must not be empty", ErrInvalidFilter)
		}
		return nil
	case FilterCategory, FilterCountry, FilterLanguage:
		if !slices.Contains(FilterValues(kind), value) {
			return fmt.Errorf("%w: unsupported %s %q", ErrInvalidFilter, kind, value)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown filter kind %q", ErrInvalidFilter, kind)
	}
}
