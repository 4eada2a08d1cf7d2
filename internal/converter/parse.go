package converter

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/separador/internal/schema"
	"github.com/ginjaninja78/separador/internal/types"
)

// =============================================================================
// DATE PARSING
// =============================================================================

// dateLayouts are tried in order. Each layout is tried in full first, then
// its date part alone against the text before the first space.
var dateLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2006-1-2 15:04:05",
	"2006/1/2 15:04:05",
	"2-1-2006 15:04:05",
	"2.1.2006 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2/1/06",
	// Month precision, common for the period column.
	"1/2006",
	"2006-1",
}

// monthNames maps Portuguese month abbreviations to months.
var monthNames = map[string]time.Month{
	"JAN": time.January, "FEV": time.February, "MAR": time.March,
	"ABR": time.April, "MAI": time.May, "JUN": time.June,
	"JUL": time.July, "AGO": time.August, "SET": time.September,
	"OUT": time.October, "NOV": time.November, "DEZ": time.December,
}

var monthNameYear = regexp.MustCompile(`^([A-Z]{3})[A-Z]*\.?\s*[-/ ]\s*([0-9]{2}|[0-9]{4})$`)

// ParseDate reads a date from a cell. Native dates are taken as-is; text
// goes through dateLayouts. The result is a UTC date with no time of day.
func ParseDate(c types.Cell) (time.Time, bool) {
	switch c.Kind {
	case types.CellDate:
		return dateOnly(c.Time), true
	case types.CellText:
		return ParseDateText(c.Text)
	default:
		return time.Time{}, false
	}
}

// ParseDateText parses the text forms seen in exports.
func ParseDateText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	datePart := s
	if i := strings.IndexByte(s, ' '); i >= 0 {
		datePart = s[:i]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
		layoutDate, _, hasTime := strings.Cut(layout, " ")
		if !hasTime {
			continue
		}
		if t, err := time.Parse(layoutDate, datePart); err == nil {
			return dateOnly(t), true
		}
	}
	return parseMonthName(s)
}

// parseMonthName reads "set-25", "SET/2025" or "Setembro/2025".
func parseMonthName(s string) (time.Time, bool) {
	m := monthNameYear.FindStringSubmatch(schema.Normalize(s))
	if m == nil {
		return time.Time{}, false
	}
	month, ok := monthNames[m[1]]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	if len(m[2]) == 2 {
		year += 2000
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// AMOUNT PARSING
// =============================================================================

// ParseAmount reads a currency amount rounded to 2 decimals. The second
// result is false when a non-empty cell could not be read and zero was used.
func ParseAmount(c types.Cell) (decimal.Decimal, bool) {
	switch c.Kind {
	case types.CellNumber:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(c.Number).Round(2), true
	case types.CellText:
		return ParseAmountText(c.Text)
	case types.CellEmpty:
		return decimal.Zero, true
	default:
		return decimal.Zero, false
	}
}

var amountNoise = strings.NewReplacer("R$", "", "$", "", " ", "", "\u00a0", "", "\t", "")

// ParseAmountText cleans a locale formatted amount such as "R$ 1.234,56"
// or "(1.234,56)". The separator that appears last is the decimal one.
func ParseAmountText(s string) (decimal.Decimal, bool) {
	s = amountNoise.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, true
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	} else if strings.HasSuffix(s, "-") {
		negative = !negative
		s = s[:len(s)-1]
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	switch {
	case lastComma > lastDot:
		// 1.234,56
		s = strings.ReplaceAll(s[:lastComma], ".", "") + "." + s[lastComma+1:]
		s = strings.Replace(s, ",", "", -1)
	case lastComma >= 0:
		// 1,234.56
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		// 1.234.567
		s = strings.ReplaceAll(s, ".", "")
	case lastDot > 0 && len(s)-lastDot-1 == 3 && s[:lastDot] != "0":
		// 1.234 reads as thousands in this locale.
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d.Round(2), true
}

// =============================================================================
// COMPOUND CELLS
// =============================================================================

var (
	codeLabel     = regexp.MustCompile(`(?i)\bc[oó]d(?:igo)?\s*[.:]+\s*`)
	documentLabel = regexp.MustCompile(`(?i)\bdoc(?:umento)?\s*[.:]+\s*`)
	bareNumber    = regexp.MustCompile(`^[0-9][0-9./-]*$`)
	lineBreaks    = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// SplitSupplier splits "Acme Corp\nCod.: 884" into supplier and code.
//
// With a line break the first line is the supplier and the rest is the code.
// Without one, a cell carrying a code label or consisting of a bare number is
// all code; anything else is all supplier.
func SplitSupplier(s string) (supplier, code string) {
	return splitCompound(s, codeLabel)
}

// SplitDocument splits "NF\nDoc.: 123" into document type and number.
func SplitDocument(s string) (docType, number string) {
	return splitCompound(s, documentLabel)
}

func splitCompound(s string, label *regexp.Regexp) (head, tail string) {
	s = strings.TrimSpace(lineBreaks.Replace(s))
	if s == "" {
		return "", ""
	}
	if first, rest, ok := strings.Cut(s, "\n"); ok {
		return strings.TrimSpace(first), stripLabel(rest, label)
	}
	if label.MatchString(s) || bareNumber.MatchString(s) {
		return "", stripLabel(s, label)
	}
	return s, ""
}

// stripLabel removes label tokens and joins remaining lines with a space.
func stripLabel(s string, label *regexp.Regexp) string {
	s = label.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
