// =============================================================================
// Separador - Row Transformer
// =============================================================================
//
// This module turns the data rows of a grid into canonical rows, one pass,
// in input order. Rows are only dropped when the period cell cannot be read
// or falls outside the filter; every other bad cell degrades to an empty,
// zero or absent value.
//
// USAGE:
//   stream := converter.Transform(grid, columns, headerRow, filter)
//   for stream.Next() {
//       row := stream.Row()
//       ...
//   }
//   stats := stream.Stats()
//
// =============================================================================

package converter

import (
	"strings"
	"time"

	"github.com/ginjaninja78/separador/internal/schema"
	"github.com/ginjaninja78/separador/internal/types"
)

// =============================================================================
// STATISTICS
// =============================================================================

// TransformStats counts what happened to the data rows.
type TransformStats struct {
	// RowsScanned is the number of non-empty rows after the header.
	RowsScanned int

	// RowsEmitted is the number of canonical rows produced.
	RowsEmitted int

	// DroppedUnparsedPeriod counts rows whose period cell could not be read.
	DroppedUnparsedPeriod int

	// DroppedOutOfPeriod counts rows outside the requested months or year.
	DroppedOutOfPeriod int

	// AmountsDefaulted counts emitted rows whose amount fell back to zero.
	AmountsDefaulted int

	// PaymentDatesAbsent counts emitted rows with no payment date.
	PaymentDatesAbsent int
}

// =============================================================================
// ROW STREAM
// =============================================================================

// RowStream yields canonical rows lazily. It is single-use and not safe
// for concurrent use.
type RowStream struct {
	grid    *types.Grid
	columns *schema.ColumnMap
	filter  types.PeriodFilter

	// next is the 1-based grid row to read on the following call to Next.
	next int

	current   types.CanonicalRow
	rowNumber int
	stats     TransformStats
}

// Transform starts a stream over the rows below headerRow.
func Transform(grid *types.Grid, columns *schema.ColumnMap, headerRow int, filter types.PeriodFilter) *RowStream {
	return &RowStream{
		grid:    grid,
		columns: columns,
		filter:  filter,
		next:    headerRow + 1,
	}
}

// Next advances to the next emitted row. It returns false when the grid is
// exhausted.
func (s *RowStream) Next() bool {
	for s.next <= s.grid.NumRows() {
		r := s.next
		s.next++

		if s.grid.RowIsEmpty(r) {
			continue
		}
		s.stats.RowsScanned++

		row, ok := s.transformRow(r)
		if !ok {
			continue
		}
		s.current = row
		s.rowNumber = r
		s.stats.RowsEmitted++
		return true
	}
	return false
}

// Row returns the current canonical row.
func (s *RowStream) Row() types.CanonicalRow {
	return s.current
}

// RowNumber returns the 1-based grid row of the current canonical row.
func (s *RowStream) RowNumber() int {
	return s.rowNumber
}

// Stats returns the counters accumulated so far.
func (s *RowStream) Stats() TransformStats {
	return s.stats
}

// Collect drains the stream.
func (s *RowStream) Collect() []types.CanonicalRow {
	rows := []types.CanonicalRow{}
	for s.Next() {
		rows = append(rows, s.Row())
	}
	return rows
}

// transformRow builds the canonical row for grid row r. False means the row
// is dropped.
func (s *RowStream) transformRow(r int) (types.CanonicalRow, bool) {
	period, ok := ParseDate(s.cell(r, schema.RolePeriod))
	if !ok {
		s.stats.DroppedUnparsedPeriod++
		return types.CanonicalRow{}, false
	}
	if !s.filter.Matches(period) {
		s.stats.DroppedOutOfPeriod++
		return types.CanonicalRow{}, false
	}

	supplier, code := SplitSupplier(s.cell(r, schema.RoleSupplierLine).String())
	if v := s.text(r, schema.RoleCode); v != "" {
		code = v
	}

	_, docNumber := SplitDocument(s.cell(r, schema.RoleDocumentTypeLine).String())
	if v := s.text(r, schema.RoleDocumentNumber); v != "" {
		docNumber = v
	}

	amount, ok := ParseAmount(s.cell(r, schema.RoleAmount))
	if !ok {
		s.stats.AmountsDefaulted++
	}

	var paymentDate *time.Time
	if t, ok := ParseDate(s.cell(r, schema.RolePaymentDate)); ok {
		paymentDate = &t
	} else {
		s.stats.PaymentDatesAbsent++
	}

	return types.CanonicalRow{
		Code:           code,
		Supplier:       supplier,
		Category:       s.text(r, schema.RoleCategory),
		DocumentNumber: docNumber,
		Period:         period,
		PaymentDate:    paymentDate,
		Status:         s.text(r, schema.RoleStatus),
		Amount:         amount,
	}, true
}

// cell reads the cell mapped to role; absent roles read as empty.
func (s *RowStream) cell(r int, role schema.Role) types.Cell {
	col, ok := s.columns.Index(role)
	if !ok {
		return types.Cell{}
	}
	return s.grid.Cell(r, col)
}

// text reads a cell directly as trimmed text.
func (s *RowStream) text(r int, role schema.Role) string {
	return strings.TrimSpace(s.cell(r, role).String())
}
