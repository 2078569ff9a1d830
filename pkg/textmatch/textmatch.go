// Package textmatch provides the locale-insensitive text comparison used for
// free-text element matching. The target portals render the same label with
// and without diacritics depending on locale negotiation, so comparisons run
// over a folded key: case-folded, whitespace-collapsed, diacritics stripped.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize lowercases value and collapses whitespace runs into single
// spaces. Diacritics are preserved.
func Normalize(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

// Fold returns the comparison key for value: Normalize plus diacritics
// removal. Fold is idempotent: folding an already-folded string yields
// itself.
func Fold(value string) string {
	stripped, _, err := transform.String(foldDiacritics, value)
	if err != nil {
		// Transform only fails on malformed input; compare the raw form then.
		stripped = value
	}
	return Normalize(stripped)
}

// ContainsFold reports whether the folded form of haystack contains the
// folded form of needle.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// EqualFold reports whether two strings fold to the same comparison key.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}
