package decoder

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/separador/internal/sniffer"
	"github.com/ginjaninja78/separador/internal/types"
)

// =============================================================================
// NATIVE DECODER
// =============================================================================

// NativeDecoder reads the first sheet of a zipped spreadsheet container and
// keeps native number and date typing.
type NativeDecoder struct{}

// NewNativeDecoder creates a native decoder.
func NewNativeDecoder() *NativeDecoder {
	return &NativeDecoder{}
}

// Kind implements Decoder.
func (d *NativeDecoder) Kind() sniffer.Kind {
	return sniffer.Native
}

// Decode implements Decoder.
func (d *NativeDecoder) Decode(data []byte) (*types.Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Kind: sniffer.Native, Err: fmt.Errorf("not a spreadsheet container: %w", err)}
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, &DecodeError{Kind: sniffer.Native, Err: fmt.Errorf("workbook has no sheets")}
	}

	// The 1904 flag decides the serial epoch. Missing props mean 1900.
	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil {
		date1904 = props.Date1904 != nil && *props.Date1904
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &DecodeError{Kind: sniffer.Native, Err: fmt.Errorf("failed to read sheet '%s': %w", sheetName, err)}
	}

	r := &nativeReader{
		file:      f,
		sheet:     sheetName,
		date1904:  date1904,
		dateStyle: make(map[int]bool),
	}

	out := make([][]types.Cell, len(rows))
	for i, row := range rows {
		cells := make([]types.Cell, len(row))
		for j, raw := range row {
			cells[j] = r.cell(i+1, j+1, raw)
		}
		out[i] = cells
	}
	return types.NewGrid(out), nil
}

// nativeReader carries per-workbook state while converting cells.
type nativeReader struct {
	file      *excelize.File
	sheet     string
	date1904  bool
	dateStyle map[int]bool
}

func (r *nativeReader) cell(row, col int, raw string) types.Cell {
	if strings.TrimSpace(raw) == "" {
		return types.Cell{}
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return types.TextCell(raw)
	}
	cellType, err := r.file.GetCellType(r.sheet, ref)
	if err != nil {
		return types.TextCell(raw)
	}

	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool, excelize.CellTypeError:
		return types.TextCell(raw)
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return types.DateCell(t)
		}
		if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
			return types.DateCell(t)
		}
		return types.TextCell(raw)
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return types.InferCell(raw)
		}
		if r.isDateCell(ref) {
			if t, err := excelize.ExcelDateToTime(f, r.date1904); err == nil {
				return types.DateCell(t)
			}
		}
		return types.NumberCell(f)
	default:
		// Formula results carry no type, so infer from text.
		return types.InferCell(raw)
	}
}

func (r *nativeReader) isDateCell(ref string) bool {
	styleID, err := r.file.GetCellStyle(r.sheet, ref)
	if err != nil || styleID == 0 {
		return false
	}
	if isDate, ok := r.dateStyle[styleID]; ok {
		return isDate
	}
	isDate := false
	if style, err := r.file.GetStyle(styleID); err == nil && style != nil {
		isDate = isBuiltinDateNumFmt(style.NumFmt)
		if !isDate && style.CustomNumFmt != nil {
			isDate = IsDateFormatCode(*style.CustomNumFmt)
		}
	}
	r.dateStyle[styleID] = isDate
	return isDate
}

// =============================================================================
// DATE FORMAT DETECTION
// =============================================================================

// isBuiltinDateNumFmt reports whether a built-in number format id renders a
// date. Pure time formats (45-47) are excluded.
func isBuiltinDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 50 && id <= 58:
		return true
	default:
		return false
	}
}

var (
	fmtBrackets = regexp.MustCompile(`\[[^\]]*\]`)
	fmtQuoted   = regexp.MustCompile(`"[^"]*"`)
	fmtEscaped  = regexp.MustCompile(`\\.`)
)

// IsDateFormatCode reports whether a custom number format code renders a date.
// Locale tags, literals and escapes are ignored. A bare "m" only counts when
// no hour or second token makes it a minute.
func IsDateFormatCode(code string) bool {
	s := fmtBrackets.ReplaceAllString(code, "")
	s = fmtQuoted.ReplaceAllString(s, "")
	s = fmtEscaped.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	if strings.ContainsAny(s, "dy") {
		return true
	}
	return strings.Contains(s, "m") && !strings.ContainsAny(s, "hs")
}
