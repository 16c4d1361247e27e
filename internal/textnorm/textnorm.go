// Package textnorm normalizes free text the way the registry stores it.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold strips diacritics, so "Nicolò" becomes "Nicolo".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Upper uppercases s, keeping accents.
func Upper(s string) string {
	return strings.ToUpper(s)
}

// Clean trims s, collapses internal whitespace and uppercases the result.
func Clean(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// Key returns a comparison key: folded, cleaned and uppercased.
func Key(s string) string {
	return Clean(Fold(s))
}
