package catalog

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	yearPattern = regexp.MustCompile(`^(\d{4})(?:-\d{2})?(?:-\d{2})?$`)
)

// fixEncoding maps UTF-8 text that was decoded as Latin-1 back, for the common
// "Ã©" style pairs. Google Books returns such pairs for some volumes.
func fixEncoding(s string) string {
	if !strings.ContainsRune(s, 'Ã') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == 'Ã' && i+1 < len(runes) && runes[i+1] >= 0x80 && runes[i+1] <= 0xBF {
			b.WriteRune(runes[i+1] + 0x40)
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// cleanText strips markup, decodes entities and curls straight quotes.
func cleanText(s string) string {
	return curlQuotes(html.UnescapeString(stripPolicy.Sanitize(s)))
}

// curlQuotes turns straight quotes and double dashes into their typographic forms.
// A quote opens after start of text, whitespace or an opening bracket, and closes
// otherwise.
func curlQuotes(s string) string {
	if !strings.ContainsAny(s, `'"-.`) {
		return s
	}
	s = strings.ReplaceAll(s, "---", "—")
	s = strings.ReplaceAll(s, "--", "–")
	s = strings.ReplaceAll(s, "...", "…")

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		opening := i == 0 || isOpeningContext(runes[i-1])
		switch {
		case r == '"' && opening:
			b.WriteRune('“')
		case r == '"':
			b.WriteRune('”')
		case r == '\'' && opening:
			b.WriteRune('‘')
		case r == '\'':
			b.WriteRune('’')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isOpeningContext(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '(', '[', '{', '—', '–', '“', '‘':
		return true
	}
	return false
}

// publishedYear extracts YYYY from YYYY, YYYY-MM or YYYY-MM-DD.
func publishedYear(date string) string {
	m := yearPattern.FindStringSubmatch(date)
	if m == nil {
		return ""
	}
	return m[1]
}

// normalizeISBN keeps the digits (and a trailing X check digit) of an ISBN.
func normalizeISBN(isbn string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(isbn) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		}
	}
	out := b.String()
	if len(out) != 10 && len(out) != 13 {
		return ""
	}
	if strings.Contains(out[:len(out)-1], "X") {
		return ""
	}
	return out
}
