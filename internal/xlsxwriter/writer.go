// =============================================================================
// Separador - XLSX Output Builder
// =============================================================================
//
// This module writes canonical rows into a fresh styled workbook.
//
// OUTPUT LAYOUT:
//   | A      | B          | C       | D         | E           | F              | G        | H     |
//   |--------|------------|---------|-----------|-------------|----------------|----------|-------|
//   | CÓDIGO | FORNECEDOR | RUBRICA | DOCUMENTO | COMPETÊNCIA | DATA PAGAMENTO | SITUAÇÃO | VALOR |
//
// STYLING:
//   - Every non-empty cell gets a thin border on all four sides
//   - Header: bold, centered
//   - Code, period and payment date: centered
//   - Amount: right aligned, #,##0.00
//   - Everything else: left aligned
//   - Period is a real date shown as a 3-letter month and 2-digit year
//   - Payment date is a real date shown as dd/mm/yyyy
//
// =============================================================================

package xlsxwriter

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/separador/internal/types"
)

// =============================================================================
// LAYOUT
// =============================================================================

// Header holds the display labels of the output columns, in order.
var Header = []string{
	"CÓDIGO",
	"FORNECEDOR",
	"RUBRICA",
	"DOCUMENTO",
	"COMPETÊNCIA",
	"DATA PAGAMENTO",
	"SITUAÇÃO",
	"VALOR",
}

// Output columns, 1-based.
const (
	ColCode = iota + 1
	ColSupplier
	ColCategory
	ColDocument
	ColPeriod
	ColPaymentDate
	ColStatus
	ColAmount
)

const (
	// PeriodFormat renders September 2025 as "set-25".
	PeriodFormat = "[$-416]mmm-yy"

	// PaymentDateFormat renders a day/month/year date.
	PaymentDateFormat = "dd/mm/yyyy"

	// amountNumFmt is the built-in "#,##0.00" format.
	amountNumFmt = 4
)

// columnWidths keeps long supplier and category names readable.
var columnWidths = []float64{12, 40, 30, 16, 14, 16, 14, 16}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the output workbook.
type Options struct {
	// SheetName is the name of the single output sheet.
	SheetName string
}

// DefaultOptions returns the default output options.
func DefaultOptions() Options {
	return Options{SheetName: "Filtrado"}
}

// =============================================================================
// DOCUMENT
// =============================================================================

// styleSet holds the style ids registered in one workbook.
type styleSet struct {
	header  int
	left    int
	center  int
	period  int
	payment int
	amount  int
}

// Document is an output workbook being filled. Not safe for concurrent use.
type Document struct {
	file   *excelize.File
	sheet  string
	styles styleSet
	rows   int
}

// New creates a document holding only the header row.
func New(opts Options) (*Document, error) {
	if opts.SheetName == "" {
		opts.SheetName = DefaultOptions().SheetName
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), opts.SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	d := &Document{file: f, sheet: opts.SheetName}
	if err := d.registerStyles(); err != nil {
		f.Close()
		return nil, err
	}
	if err := d.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

// Append writes one canonical row below the previous one.
func (d *Document) Append(row types.CanonicalRow) error {
	r := d.rows + 2

	cells := []struct {
		col   int
		value interface{}
		style int
	}{
		{ColCode, row.Code, d.styles.center},
		{ColSupplier, row.Supplier, d.styles.left},
		{ColCategory, row.Category, d.styles.left},
		{ColDocument, row.DocumentNumber, d.styles.left},
		{ColPeriod, row.Period, d.styles.period},
		{ColPaymentDate, row.PaymentDate, d.styles.payment},
		{ColStatus, row.Status, d.styles.left},
		{ColAmount, row.Amount.InexactFloat64(), d.styles.amount},
	}

	for _, c := range cells {
		value, ok := cellValue(c.value)
		if !ok {
			// Empty cells stay unstyled.
			continue
		}
		if err := d.set(c.col, r, value, c.style); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r, err)
		}
	}
	d.rows++
	return nil
}

// Rows returns the number of data rows written.
func (d *Document) Rows() int {
	return d.rows
}

// Bytes serializes the workbook and releases it.
func (d *Document) Bytes() ([]byte, error) {
	defer d.file.Close()
	buf, err := d.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Close releases the workbook without serializing it.
func (d *Document) Close() error {
	return d.file.Close()
}

// Build writes rows in the order given and serializes the result.
func Build(rows []types.CanonicalRow) ([]byte, error) {
	return BuildWithOptions(rows, DefaultOptions())
}

// BuildWithOptions is Build with explicit options.
func BuildWithOptions(rows []types.CanonicalRow, opts Options) ([]byte, error) {
	d, err := New(opts)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := d.Append(row); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d.Bytes()
}

// =============================================================================
// HELPERS
// =============================================================================

func (d *Document) writeHeader() error {
	for i, label := range Header {
		if err := d.set(i+1, 1, label, d.styles.header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := d.file.SetColWidth(d.sheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set width of column %s: %w", col, err)
		}
	}
	return nil
}

func (d *Document) set(col, row int, value interface{}, style int) error {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := d.file.SetCellValue(d.sheet, ref, value); err != nil {
		return err
	}
	return d.file.SetCellStyle(d.sheet, ref, ref, style)
}

// cellValue unwraps optional values. False means nothing should be written.
func cellValue(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case *time.Time:
		if t == nil {
			return nil, false
		}
		return *t, true
	case time.Time:
		return t, !t.IsZero()
	default:
		return v, v != nil
	}
}

func (d *Document) registerStyles() error {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	periodFmt := PeriodFormat
	paymentFmt := PaymentDateFormat

	defs := []struct {
		target *int
		style  *excelize.Style
	}{
		{&d.styles.header, &excelize.Style{
			Border:    border,
			Font:      &excelize.Font{Bold: true},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}},
		{&d.styles.left, &excelize.Style{
			Border:    border,
			Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		}},
		{&d.styles.center, &excelize.Style{
			Border:    border,
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}},
		{&d.styles.period, &excelize.Style{
			Border:       border,
			Alignment:    &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			CustomNumFmt: &periodFmt,
		}},
		{&d.styles.payment, &excelize.Style{
			Border:       border,
			Alignment:    &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			CustomNumFmt: &paymentFmt,
		}},
		{&d.styles.amount, &excelize.Style{
			Border:    border,
			Alignment: &excelize.Alignment{Horizontal: "right", Vertical: "center"},
			NumFmt:    amountNumFmt,
		}},
	}
	for _, def := range defs {
		id, err := d.file.NewStyle(def.style)
		if err != nil {
			return fmt.Errorf("failed to create style: %w", err)
		}
		*def.target = id
	}
	return nil
}
