package ledger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Well-known category field keys.  Bookings store each service category's
// selections under one of these, or under selected<PascalName> for
// categories added later.
const (
	KeyCakes     = "cakes"
	KeyDecor     = "decor"
	KeyGifts     = "gifts"
	KeyMovies    = "movies"
	KeyExtras    = "extraAddOns"
	customPrefix = "selected"
)

var knownDisplay = map[string]string{
	KeyCakes:  "Cakes",
	KeyDecor:  "Decor",
	KeyGifts:  "Gifts",
	KeyMovies: "Movies",
	KeyExtras: "Extra Add-Ons",
}

// FieldKey derives the booking field key for a service category display
// name.  Passing a key that is already derived returns it unchanged.
func FieldKey(name string) string {
	name = strings.TrimSpace(name)
	if isSelectedKey(name) {
		return name
	}
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "cake"):
		return KeyCakes
	case strings.Contains(lower, "decor"):
		return KeyDecor
	case strings.Contains(lower, "gift"):
		return KeyGifts
	case strings.Contains(lower, "movie"):
		return KeyMovies
	case strings.Contains(lower, "extra"), strings.Contains(lower, "add-on"), strings.Contains(lower, "addon"):
		return KeyExtras
	}
	return customPrefix + pascal(name)
}

// DisplayName reconstructs a presentable category name from a field key.
func DisplayName(key string) string {
	if d, ok := knownDisplay[key]; ok {
		return d
	}
	rest := strings.TrimPrefix(key, customPrefix)
	var b strings.Builder
	for i, r := range rest {
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

func isSelectedKey(s string) bool {
	if !strings.HasPrefix(s, customPrefix) || len(s) == len(customPrefix) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[len(customPrefix):])
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

func pascal(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		b.WriteString(string(rs))
	}
	return b.String()
}

// IsCategoryKey reports whether k has the shape of a category field key.
func IsCategoryKey(k string) bool {
	if _, ok := knownDisplay[k]; ok {
		return true
	}
	return isSelectedKey(k)
}
