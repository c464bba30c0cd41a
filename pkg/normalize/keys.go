// Package normalize turns raw source strings into the canonical forms used as
// graph natural keys. Every string key goes through Key so that case and
// whitespace variants of the same name merge into one node.
package normalize

import (
	"strings"
	"unicode"
)

// strippedPunct are punctuation characters removed from keys. The set is
// fixed; anything else (ampersands, hyphens) is meaningful in org names.
var strippedPunct = map[rune]bool{
	'.':  true,
	',':  true,
	'\'': true,
	'"':  true,
}

// Key canonicalizes a string natural key: uppercase, trim, collapse inner
// whitespace, strip fixed punctuation.
func Key(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		if strippedPunct[r] {
			continue
		}
		if unicode.IsSpace(r) {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
			continue
		}
		result.WriteRune(r)
		prevSpace = false
	}

	return strings.TrimSpace(result.String())
}

// Zip normalizes a US zip code to its five-digit form. Returns "" when fewer
// than five digits are present.
func Zip(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() < 5 {
		return ""
	}
	return digits.String()[:5]
}

// Digits keeps only digit characters.
func Digits(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
