package sportsfeed

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName canonicalizes a team name or abbreviation for matching:
// lowercased, accents stripped, whitespace collapsed.
func NormalizeName(name string) string {
	name = strings.ToLower(name)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)

	name = strings.Join(strings.Fields(name), " ")
	return strings.TrimSpace(name)
}

// SameTeam reports whether two team labels refer to the same team after
// normalization. One side being a prefix of the other counts as a match
// ("SF" vs "SF 49ers"), which covers abbreviation-vs-display-name pairs.
func SameTeam(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return strings.HasPrefix(na, nb+" ") || strings.HasPrefix(nb, na+" ")
}
