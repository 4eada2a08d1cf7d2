// =============================================================================
// Separador - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - decoder     (produces Grid)
//   - schema      (reads Grid, produces ColumnMap)
//   - converter   (reads Grid + ColumnMap, produces CanonicalRow)
//   - xlsxwriter  (consumes CanonicalRow)
//
// =============================================================================

package types

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CELL TYPES
// =============================================================================

// CellKind identifies the type of value held by a Cell.
type CellKind int

const (
	// CellEmpty is a cell with no value.
	CellEmpty CellKind = iota

	// CellText is a cell holding free text.
	CellText

	// CellNumber is a cell holding a native number.
	CellNumber

	// CellDate is a cell holding a native date or datetime.
	CellDate
)

// String returns a short name for the kind, used in logs and test output.
func (k CellKind) String() string {
	switch k {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellDate:
		return "date"
	default:
		return "empty"
	}
}

// Cell is a single typed value of a Grid.
// Only the field matching Kind is meaningful.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
}

// TextCell builds a text cell. Blank text yields an empty cell.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell builds a number cell.
func NumberCell(f float64) Cell {
	return Cell{Kind: CellNumber, Number: f}
}

// DateCell builds a date cell.
func DateCell(t time.Time) Cell {
	return Cell{Kind: CellDate, Time: t}
}

// plainNumber matches text that is unambiguously a machine-formatted number.
// Locale-formatted amounts ("1.234,56") and codes with leading zeros stay text.
var plainNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

// thousandsDot matches "1.234": a dot followed by exactly three digits is a
// thousands separator in pt-BR, so the amount parser must see the text.
var thousandsDot = regexp.MustCompile(`^-?[1-9][0-9]*\.[0-9]{3}$`)

// InferCell builds a cell from untyped text, as produced by decoders whose
// source carries no type information (HTML tables, delimited text).
func InferCell(s string) Cell {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Cell{}
	}
	if plainNumber.MatchString(trimmed) && !thousandsDot.MatchString(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return NumberCell(f)
		}
	}
	return Cell{Kind: CellText, Text: s}
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty || (c.Kind == CellText && strings.TrimSpace(c.Text) == "")
}

// String renders the cell as text.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		if c.Time.Hour() == 0 && c.Time.Minute() == 0 && c.Time.Second() == 0 {
			return c.Time.Format("2006-01-02")
		}
		return c.Time.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// =============================================================================
// GRID
// =============================================================================

// Grid is a 1-indexed two-dimensional table of typed cells.
// Rows may be ragged; missing cells read as empty.
type Grid struct {
	rows    [][]Cell
	numCols int
}

// NewGrid builds a grid from 0-indexed rows. The slice is owned by the grid.
func NewGrid(rows [][]Cell) *Grid {
	g := &Grid{rows: rows}
	for _, r := range rows {
		if len(r) > g.numCols {
			g.numCols = len(r)
		}
	}
	return g
}

// NumRows returns the number of rows.
func (g *Grid) NumRows() int {
	return len(g.rows)
}

// NumCols returns the width of the widest row.
func (g *Grid) NumCols() int {
	return g.numCols
}

// Cell returns the cell at the 1-based position. Out of range reads as empty.
func (g *Grid) Cell(row, col int) Cell {
	if row < 1 || row > len(g.rows) || col < 1 {
		return Cell{}
	}
	r := g.rows[row-1]
	if col > len(r) {
		return Cell{}
	}
	return r[col-1]
}

// Row returns the cells of a 1-based row.
func (g *Grid) Row(row int) []Cell {
	if row < 1 || row > len(g.rows) {
		return nil
	}
	return g.rows[row-1]
}

// RowIsEmpty reports whether every cell of the row is empty.
func (g *Grid) RowIsEmpty(row int) bool {
	for _, c := range g.Row(row) {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// =============================================================================
// CANONICAL SCHEMA
// =============================================================================

// CanonicalRow is one filtered output row in the fixed 8-field schema.
type CanonicalRow struct {
	// Code is the supplier code split out of the supplier line.
	Code string

	// Supplier is the supplier name.
	Supplier string

	// Category is the rubric, read directly.
	Category string

	// DocumentNumber is the number split out of the document type line.
	DocumentNumber string

	// Period is the accounting period as a UTC date. Never zero.
	Period time.Time

	// PaymentDate is nil when the source cell was absent or unparseable.
	PaymentDate *time.Time

	// Status is read directly.
	Status string

	// Amount is always finite and rounded to 2 decimals.
	Amount decimal.Decimal
}

// PeriodFilter selects rows by month set and a single year.
type PeriodFilter struct {
	Months []int
	Year   int
}

// Matches reports whether t falls inside the filter.
func (f PeriodFilter) Matches(t time.Time) bool {
	if t.Year() != f.Year {
		return false
	}
	m := int(t.Month())
	for _, want := range f.Months {
		if want == m {
			return true
		}
	}
	return false
}
