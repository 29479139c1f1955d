package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for fuzzy search (lowercase, no diacritics, spaces for dashes).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return name
}

// CleanPersonName trims a display name and collapses inner whitespace runs.
func CleanPersonName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// PersonNameKey returns the case-insensitive identity of a person name.
// "Bob", " bob " and "BOB" share a key; "Zoë" and "Zoe" do not.
func PersonNameKey(name string) string {
	return cases.Fold().String(CleanPersonName(name))
}
