package page

import (
	"strings"

	"github.com/goliatone/go-slug"
	"github.com/mozillazg/go-unidecode"
)

// Slug derives a path safe identifier from a title: lowercase ASCII letters
// and digits, with every other run collapsed to a single "-". Non-ASCII
// letters are transliterated first, so "Café" becomes "cafe".
//
// It returns "" when nothing usable remains.
func Slug(title string) string {
	ascii := unidecode.Unidecode(title)
	s, err := slug.Normalize(ascii)
	if err != nil || s == "" {
		s = ascii
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}
