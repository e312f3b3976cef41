package occasion

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// MaxDistance is the largest normalized edit distance accepted as a fuzzy
// match, both for occasion names and for field labels.
const MaxDistance = 2

// Normalize lower-cases s and drops every rune that is not a letter or digit,
// so "Partner 1 Name" and "partner1name" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Distance is the edit distance between the normalized forms of a and b.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(Normalize(a), Normalize(b))
}

// related reports whether two already-normalized strings are equal or one
// contains the other.  Empty strings never relate.
func related(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// near reports whether two already-normalized strings are within
// MaxDistance edits of each other or related by containment.
func near(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return related(a, b) || levenshtein.ComputeDistance(a, b) <= MaxDistance
}

// Humanize turns a camelCase field key into a label: "partner1Name" becomes
// "Partner1 Name".
func Humanize(key string) string {
	var b strings.Builder
	for i, r := range key {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
