package decoder

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/separador/internal/sniffer"
	"github.com/ginjaninja78/separador/internal/types"
)

type fakeDecoder struct {
	kind  sniffer.Kind
	err   error
	calls *[]sniffer.Kind
}

func (f fakeDecoder) Kind() sniffer.Kind { return f.kind }

func (f fakeDecoder) Decode(data []byte) (*types.Grid, error) {
	*f.calls = append(*f.calls, f.kind)
	if f.err != nil {
		return nil, f.err
	}
	return types.NewGrid([][]types.Cell{{types.TextCell(f.kind.String())}}), nil
}

func TestChainFallsBackInOrder(t *testing.T) {
	var calls []sniffer.Kind
	chain := NewChain(
		fakeDecoder{kind: sniffer.Native, err: errors.New("zip: not a valid zip file"), calls: &calls},
		fakeDecoder{kind: sniffer.Legacy, err: &DecodeError{Kind: sniffer.Legacy, Err: errors.New("bad BOF")}, calls: &calls},
		fakeDecoder{kind: sniffer.HTML, calls: &calls},
	)

	res, err := chain.Decode([]byte("not markup"), "report.xls")
	require.NoError(t, err)
	assert.Equal(t, sniffer.HTML, res.Kind)
	assert.Equal(t, []sniffer.Kind{sniffer.Native, sniffer.Legacy, sniffer.HTML}, calls)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, sniffer.Native, res.Failed[0].Kind)
	assert.Equal(t, "html", res.Grid.Cell(1, 1).String())
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	var calls []sniffer.Kind
	chain := NewChain(
		fakeDecoder{kind: sniffer.Native, calls: &calls},
		fakeDecoder{kind: sniffer.HTML, calls: &calls},
	)
	res, err := chain.Decode([]byte("PK\x03\x04"), "report.xlsx")
	require.NoError(t, err)
	assert.Equal(t, sniffer.Native, res.Kind)
	assert.Empty(t, res.Failed)
	assert.Equal(t, []sniffer.Kind{sniffer.Native}, calls)
}

func TestChainUnsupportedFormat(t *testing.T) {
	var calls []sniffer.Kind
	boom := errors.New("boom")
	chain := NewChain(
		fakeDecoder{kind: sniffer.Native, err: boom, calls: &calls},
		fakeDecoder{kind: sniffer.HTML, err: boom, calls: &calls},
	)
	_, err := chain.Decode([]byte("???"), "x.xlsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.True(t, errors.Is(err, boom))

	var ufe *UnsupportedFormatError
	require.True(t, errors.As(err, &ufe))
	assert.Len(t, ufe.Attempts, 2)
	assert.Contains(t, err.Error(), "native decoder: boom")
}

func TestDefaultChainRejectsGarbage(t *testing.T) {
	_, err := DefaultChain().Decode([]byte("\x00\x01\x02 definitely not a spreadsheet"), "x.xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNativeDecoderKeepsTypes(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "Fornecedor"))
	require.NoError(t, f.SetCellValue(sheet, "B1", 1234.56))
	require.NoError(t, f.SetCellValue(sheet, "C1", time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.SetCellValue(sheet, "D1", "007"))
	require.NoError(t, f.SetCellValue(sheet, "B3", "Acme\nCod.: 884"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	grid, err := NewNativeDecoder().Decode(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, 3, grid.NumRows())
	assert.Equal(t, types.CellText, grid.Cell(1, 1).Kind)
	assert.Equal(t, types.CellNumber, grid.Cell(1, 2).Kind)
	assert.InDelta(t, 1234.56, grid.Cell(1, 2).Number, 1e-9)
	require.Equal(t, types.CellDate, grid.Cell(1, 3).Kind)
	assert.Equal(t, "2025-09-15", grid.Cell(1, 3).Time.Format("2006-01-02"))
	assert.Equal(t, types.CellText, grid.Cell(1, 4).Kind)
	assert.Equal(t, "007", grid.Cell(1, 4).Text)
	assert.True(t, grid.RowIsEmpty(2))
	assert.Equal(t, "Acme\nCod.: 884", grid.Cell(3, 2).Text)
}

func TestNativeDecoderCustomDateFormat(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	code := "[$-416]mmm-yy"
	style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &code})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(sheet, "A1", 45915.0))
	require.NoError(t, f.SetCellStyle(sheet, "A1", "A1", style))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	grid, err := NewNativeDecoder().Decode(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, types.CellDate, grid.Cell(1, 1).Kind)
	assert.Equal(t, "2025-09-15", grid.Cell(1, 1).Time.Format("2006-01-02"))
}

func TestNativeDecoderHonorsDate1904(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	date1904 := true
	require.NoError(t, f.SetWorkbookProps(&excelize.WorkbookPropsOptions{Date1904: &date1904}))
	sheet := f.GetSheetName(0)
	code := "dd/mm/yyyy"
	style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &code})
	require.NoError(t, err)
	// 44453 days after 1904-01-01; the same serial is 2021-09-14 under 1900.
	require.NoError(t, f.SetCellValue(sheet, "A1", 44453.0))
	require.NoError(t, f.SetCellStyle(sheet, "A1", "A1", style))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	grid, err := NewNativeDecoder().Decode(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, types.CellDate, grid.Cell(1, 1).Kind)
	assert.Equal(t, "2025-09-15", grid.Cell(1, 1).Time.Format("2006-01-02"))
}

func TestNativeDecoderRejectsNonContainer(t *testing.T) {
	_, err := NewNativeDecoder().Decode([]byte("<html><table></table></html>"))
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, sniffer.Native, de.Kind)
}

func TestIsDateFormatCode(t *testing.T) {
	tests := map[string]bool{
		"dd/mm/yyyy":          true,
		"[$-416]mmm-yy":       true,
		"mmm-yy":              true,
		"yyyy-mm-dd hh:mm:ss": true,
		"h:mm":                false,
		"mm:ss":               false,
		"#,##0.00":            false,
		`"R$" #,##0.00`:       false,
		"0.00%":               false,
		`\d0`:                 false,
	}
	for code, want := range tests {
		assert.Equal(t, want, IsDateFormatCode(code), code)
	}
}

const bannerHTML = `<html><head><meta charset="utf-8"></head><body>
<table><tr><td>Prefeitura</td><td>Relatorio</td></tr></table>
<table border="1">
  <tr><td colspan="3">Relatório de despesas</td></tr>
  <tr><th>Lançamento</th><th>Rubrica</th><th>Valor</th></tr>
  <tr><td>Acme Corp<br>Cod.: 884</td><td>Material&nbsp;de   consumo</td><td>1234.56</td></tr>
  <tr><td>Beta
  Ltda</td><td><table><tr><td>nested</td></tr></table>Serviços</td><td>R$ 1.234,56</td></tr>
</table>
</body></html>`

func TestHTMLDecoderPicksLargestTable(t *testing.T) {
	grid, err := NewHTMLDecoder().Decode([]byte(bannerHTML))
	require.NoError(t, err)

	assert.Equal(t, 4, grid.NumRows())
	assert.Equal(t, 3, grid.NumCols())

	// Banner row is kept and colspan padded.
	assert.Equal(t, "Relatório de despesas", grid.Cell(1, 1).Text)
	assert.True(t, grid.Cell(1, 2).IsEmpty())

	// No header interpretation.
	assert.Equal(t, "Lançamento", grid.Cell(2, 1).Text)

	assert.Equal(t, "Acme Corp\nCod.: 884", grid.Cell(3, 1).Text)
	assert.Equal(t, "Material de consumo", grid.Cell(3, 2).Text)
	assert.Equal(t, types.CellNumber, grid.Cell(3, 3).Kind)

	assert.Equal(t, "Beta Ltda", grid.Cell(4, 1).Text)
	assert.Equal(t, "Serviços", grid.Cell(4, 2).Text)
	assert.Equal(t, types.CellText, grid.Cell(4, 3).Kind)
}

func TestHTMLDecoderWindows1252(t *testing.T) {
	doc := []byte("<html><head><meta http-equiv=\"Content-Type\" content=\"text/html; charset=windows-1252\"></head>" +
		"<body><table><tr><td>Lan\xe7amento</td><td>Valor</td></tr></table></body></html>")
	grid, err := NewHTMLDecoder().Decode(doc)
	require.NoError(t, err)
	assert.Equal(t, "Lançamento", grid.Cell(1, 1).Text)
}

func TestHTMLDecoderWithoutTable(t *testing.T) {
	_, err := NewHTMLDecoder().Decode([]byte("<html><body><p>nothing here</p></body></html>"))
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, sniffer.HTML, de.Kind)
}

func TestDelimitedDecoder(t *testing.T) {
	data := []byte("Relatorio\r\nLan\xe7amento;Rubrica;Valor\r\nAcme;Material;\"1.234,56\"\r\nBeta;Servi\xe7os;10.5\r\n")
	grid, err := NewDelimitedDecoder().Decode(data)
	require.NoError(t, err)

	assert.Equal(t, 4, grid.NumRows())
	assert.Equal(t, "Relatorio", grid.Cell(1, 1).Text)
	assert.Equal(t, "Lançamento", grid.Cell(2, 1).Text)
	assert.Equal(t, "1.234,56", grid.Cell(3, 3).Text)
	assert.Equal(t, types.CellNumber, grid.Cell(4, 3).Kind)
	assert.Equal(t, "Serviços", grid.Cell(4, 2).Text)
}

func TestDelimitedDecoderNeedsDelimiter(t *testing.T) {
	_, err := NewDelimitedDecoder().Decode([]byte("just one column\nand another"))
	assert.Error(t, err)
}

func TestLegacyDecoderRejectsGarbage(t *testing.T) {
	_, err := NewLegacyDecoder().Decode([]byte("not a compound document"))
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, sniffer.Legacy, de.Kind)
}

// ledger_1904.xls is a BIFF8 workbook saved in the 1904 date system. Its
// sheet holds the ledger header and two rows. The period column uses the
// custom format dd/mm/yyyy, the payment date builtin format 14 and the amount
// builtin format 4.
func readLegacyFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/ledger_1904.xls")
	require.NoError(t, err)
	return data
}

func TestLegacyDecoderReadsTypedCells(t *testing.T) {
	grid, err := NewLegacyDecoder().Decode(readLegacyFixture(t))
	require.NoError(t, err)
	require.Equal(t, 3, grid.NumRows())
	require.Equal(t, 7, grid.NumCols())

	assert.Equal(t, "Lançamento", grid.Cell(1, 1).String())
	assert.Equal(t, "Competência", grid.Cell(1, 4).String())
	assert.Equal(t, "Acme Corp\nCod.: 884", grid.Cell(2, 1).String())

	period := grid.Cell(2, 4)
	require.Equal(t, types.CellDate, period.Kind, "custom date format")
	assert.Equal(t, "2025-09-01", period.Time.Format("2006-01-02"), "1904 date system")

	paid := grid.Cell(2, 5)
	require.Equal(t, types.CellDate, paid.Kind, "builtin date format")
	assert.Equal(t, "2025-09-20", paid.Time.Format("2006-01-02"))

	amount := grid.Cell(2, 7)
	require.Equal(t, types.CellNumber, amount.Kind)
	assert.InDelta(t, 1234.56, amount.Number, 1e-9)

	assert.True(t, grid.Cell(3, 5).IsEmpty())
	assert.Equal(t, "2025-08-01", grid.Cell(3, 4).Time.Format("2006-01-02"))
}

func TestChainFallsBackToLegacy(t *testing.T) {
	res, err := DefaultChain().Decode(readLegacyFixture(t), "ledger.xls")
	require.NoError(t, err)
	assert.Equal(t, sniffer.Legacy, res.Kind)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, sniffer.Native, res.Failed[0].Kind)
}
