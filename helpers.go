package lemystere

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify converts a title to a URL-safe slug: lowercase, accents folded,
// anything outside [a-z0-9 -] dropped, spaces turned into hyphens and runs
// of hyphens collapsed. The result never starts or ends with a hyphen.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(foldAccents(s)))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// foldAccents strips combining marks after canonical decomposition, so
// "è" becomes "e". Characters without an ASCII base are left for Slugify to
// drop.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// BuildURL appends path segments to base. Each segment is escaped on its
// own, so a slash inside a slug cannot add a path step.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return base
	}
	raw := u.EscapedPath()
	for _, seg := range pathSegments {
		u.Path += "/" + seg
		raw += "/" + url.PathEscape(seg)
	}
	u.RawPath = raw
	return u.String()
}
