package tenant

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 50

// slugTransformer strips diacritics so "Café Ação" slugs as "cafe-acao".
var slugTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives a URL-safe slug from an organization name: lowercase ASCII
// letters and digits, spaces collapsed to single hyphens, capped at 50 runes.
func Slugify(name string) string {
	folded, _, err := transform.String(slugTransformer, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	lastHyphen := true
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '-' || r == '_':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
