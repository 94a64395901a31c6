package staffing

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText folds compatibility characters (non-breaking spaces, full
// width digits) and collapses every whitespace run, newlines included, to a
// single space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// NormalizeTitle is NormalizeText plus lower-casing. Both DSP titles and
// catalog titles go through it so containment matching is case and
// whitespace insensitive.
func NormalizeTitle(s string) string {
	return strings.ToLower(NormalizeText(s))
}

// TitleContains reports whether candidate contains title. Both must already
// be normalized. An empty title never matches.
func TitleContains(candidate, title string) bool {
	return title != "" && strings.Contains(candidate, title)
}
