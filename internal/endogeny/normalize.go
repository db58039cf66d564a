package endogeny

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	honorificPattern = regexp.MustCompile(`(?i)\b(dr|prof|professor|mr|ms|mrs)\b\.?`)
	nonAlnumPattern  = regexp.MustCompile(`[^a-z0-9\s]`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// NormalizeName folds a person name to its comparable form: compatibility
// decomposition, marks and non-ASCII dropped, lower case, honorifics and
// punctuation removed, whitespace collapsed.
func NormalizeName(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range folded {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	text := strings.ToLower(b.String())
	text = honorificPattern.ReplaceAllString(text, " ")
	text = nonAlnumPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

// InitialsKey returns "initials|family" for a normalized name
func InitialsKey(normalized string) string {
	parts := strings.Fields(normalized)
	if len(parts) == 0 {
		return ""
	}
	var initials strings.Builder
	for _, part := range parts[:len(parts)-1] {
		initials.WriteByte(part[0])
	}
	return initials.String() + "|" + parts[len(parts)-1]
}
