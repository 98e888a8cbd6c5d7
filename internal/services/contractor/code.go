package contractor

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics removes combining marks so "División" becomes "Division".
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// DeriveCode derives a short uppercase code from a contractor name:
// initials of the first four words for multi-word names, otherwise the first
// four letters of the single word. The result is the root code only;
// collision suffixing happens against the store on insert.
func DeriveCode(name string) string {
	normalized, _, err := transform.String(stripDiacritics, name)
	if err != nil {
		normalized = name
	}
	normalized = strings.ToUpper(normalized)

	// Keep letters, digits and spaces only.
	var b strings.Builder
	for _, r := range normalized {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}

	words := strings.Fields(b.String())
	switch {
	case len(words) >= 2:
		if len(words) > 4 {
			words = words[:4]
		}
		var code strings.Builder
		for _, w := range words {
			code.WriteByte(w[0])
		}
		return code.String()
	case len(words) == 1:
		w := words[0]
		if len(w) > 4 {
			w = w[:4]
		}
		return w
	default:
		return ""
	}
}
