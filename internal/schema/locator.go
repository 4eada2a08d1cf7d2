package schema

import (
	"strings"

	"github.com/ginjaninja78/separador/internal/types"
)

// =============================================================================
// HEADER LOCATOR
// =============================================================================

// HeaderSearchRows is the last row inspected for labels. Files with more
// banner rows than this fall back to row 1.
const HeaderSearchRows = 20

var (
	// supplierMarkers identify the supplier/launch column label.
	supplierMarkers = []string{"LANCAMENTO", "FORNECEDOR"}

	// amountMarkers identify the amount column label.
	amountMarkers = []string{"VALOR"}
)

// LocateHeader returns the 1-based header row and whether it was found.
// The first row within HeaderSearchRows whose normalized text carries both
// a supplier marker and an amount marker wins; otherwise row 1 is returned
// with found set to false.
func LocateHeader(grid *types.Grid) (row int, found bool) {
	last := grid.NumRows()
	if last > HeaderSearchRows {
		last = HeaderSearchRows
	}
	for r := 1; r <= last; r++ {
		var b strings.Builder
		for _, c := range grid.Row(r) {
			b.WriteString(Normalize(c.String()))
			b.WriteByte(' ')
		}
		joined := b.String()
		if containsAny(joined, supplierMarkers) && containsAny(joined, amountMarkers) {
			return r, true
		}
	}
	return 1, false
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
