package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	xls "github.com/shakinm/xlsReader/xls"
	"github.com/yamitzky/xlrd-go/xlrd"

	"github.com/ginjaninja78/separador/internal/sniffer"
	"github.com/ginjaninja78/separador/internal/types"
)

// =============================================================================
// LEGACY DECODER
// =============================================================================

// legacyName is passed to xlrd alongside the in-memory contents.
const legacyName = "upload.xls"

// LegacyDecoder reads the binary spreadsheet format.
//
// xlrd is tried first because it exposes the workbook date mode and cell
// formats, so date serials become calendar dates. xlsReader is the backup
// for workbooks xlrd rejects; it yields text only.
type LegacyDecoder struct{}

// NewLegacyDecoder creates a legacy decoder.
func NewLegacyDecoder() *LegacyDecoder {
	return &LegacyDecoder{}
}

// Kind implements Decoder.
func (d *LegacyDecoder) Kind() sniffer.Kind {
	return sniffer.Legacy
}

// Decode implements Decoder.
func (d *LegacyDecoder) Decode(data []byte) (*types.Grid, error) {
	grid, errPrimary := safeDecode(decodeXlrd, data)
	if errPrimary == nil {
		return grid, nil
	}
	grid, errBackup := safeDecode(decodeXlsReader, data)
	if errBackup == nil {
		return grid, nil
	}
	return nil, &DecodeError{Kind: sniffer.Legacy, Err: errors.Join(errPrimary, errBackup)}
}

// safeDecode turns a codec panic on corrupt input into an error.
func safeDecode(fn func([]byte) (*types.Grid, error), data []byte) (grid *types.Grid, err error) {
	defer func() {
		if r := recover(); r != nil {
			grid, err = nil, fmt.Errorf("codec panic: %v", r)
		}
	}()
	return fn(data)
}

// =============================================================================
// XLRD
// =============================================================================

func decodeXlrd(data []byte) (*types.Grid, error) {
	book, err := xlrd.OpenWorkbook(legacyName, &xlrd.OpenWorkbookOptions{
		FormattingInfo: true,
		FileContents:   data,
	})
	if err != nil {
		return nil, fmt.Errorf("xlrd: %w", err)
	}
	if book.NSheets == 0 {
		return nil, fmt.Errorf("xlrd: workbook has no sheets")
	}
	sheet, err := book.SheetByIndex(0)
	if err != nil {
		return nil, fmt.Errorf("xlrd: %w", err)
	}

	rows := make([][]types.Cell, sheet.NRows)
	for r := 0; r < sheet.NRows; r++ {
		cells := make([]types.Cell, sheet.NCols)
		for c := 0; c < sheet.NCols; c++ {
			cells[c] = xlrdCell(book, sheet.CellType(r, c), sheet.CellValue(r, c), sheet.CellXFIndex(r, c))
		}
		rows[r] = cells
	}
	return types.NewGrid(rows), nil
}

func xlrdCell(book *xlrd.Book, cellType int, value interface{}, xfIndex int) types.Cell {
	switch cellType {
	case xlrd.XL_CELL_EMPTY, xlrd.XL_CELL_BLANK, xlrd.XL_CELL_ERROR:
		return types.Cell{}
	case xlrd.XL_CELL_TEXT:
		return types.TextCell(fmt.Sprint(value))
	case xlrd.XL_CELL_BOOLEAN:
		return types.TextCell(fmt.Sprint(value))
	}

	// Numbers, and date cells when the codec flags them itself.
	f, ok := toFloat(value)
	if !ok {
		if value == nil {
			return types.Cell{}
		}
		return types.InferCell(fmt.Sprint(value))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return types.Cell{}
	}
	if xlrdIsDate(book, xfIndex) {
		// The workbook's own date mode picks the 1900 or 1904 epoch.
		if t, err := xlrd.XldateAsDatetime(f, book.Datemode); err == nil {
			return types.DateCell(t)
		}
	}
	return types.NumberCell(f)
}

func xlrdIsDate(book *xlrd.Book, xfIndex int) bool {
	if xfIndex < 0 || xfIndex >= len(book.XFList) {
		return false
	}
	key := book.XFList[xfIndex].FormatKey
	if isBuiltinDateNumFmt(key) {
		return true
	}
	if book.FormatMap == nil {
		return false
	}
	format := book.FormatMap[key]
	if format == nil || format.FormatString == "" {
		return false
	}
	return xlrd.IsDateFormatString(book, format.FormatString)
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// =============================================================================
// XLSREADER
// =============================================================================

func decodeXlsReader(data []byte) (*types.Grid, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xlsReader: %w", err)
	}
	sheet, err := workbook.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, fmt.Errorf("xlsReader: no sheets found")
	}

	var rows [][]types.Cell
	for _, row := range sheet.GetRows() {
		var cells []types.Cell
		for _, col := range row.GetCols() {
			cells = append(cells, types.InferCell(col.GetString()))
		}
		rows = append(rows, cells)
	}
	return types.NewGrid(rows), nil
}
