// =============================================================================
// Separador - Schema Recovery
// =============================================================================
//
// This package recovers the column layout of a decoded grid:
//   - Normalize     : accent and case insensitive text form
//   - LocateHeader  : finds the label row below any banner rows
//   - BuildColumnMap: resolves labels to canonical roles
//
// =============================================================================

package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// NORMALIZATION
// =============================================================================

// Normalize trims, strips diacritics and uppercases s.
// "Competência " becomes "COMPETENCIA".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return strings.ToUpper(out)
}

// normalizeLabel is Normalize plus collapsed whitespace and trailing
// punctuation removed, so "Valor  (R$):" and "VALOR (R$)" compare equal.
func normalizeLabel(s string) string {
	n := strings.Join(strings.Fields(Normalize(s)), " ")
	return strings.TrimRight(n, ".: ")
}
