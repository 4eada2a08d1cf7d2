package converter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/separador/internal/schema"
	"github.com/ginjaninja78/separador/internal/types"
)

func row(values ...interface{}) []types.Cell {
	cells := make([]types.Cell, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case string:
			cells[i] = types.TextCell(x)
		case float64:
			cells[i] = types.NumberCell(x)
		case time.Time:
			cells[i] = types.DateCell(x)
		case nil:
			cells[i] = types.Cell{}
		}
	}
	return cells
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bannerGrid() *types.Grid {
	return types.NewGrid([][]types.Cell{
		row("PREFEITURA MUNICIPAL"),
		row("Relatório"),
		row("Lançamento", "Rubrica", "Tipo Doc", "Competência", "Data Pagamento", "Situação", "Valor"),
		row("Acme Corp\nCod.: 884", "Material", "NF\nDoc.: 10", "15/09/2025", "20/09/2025", "Pago", "R$ 1.234,56"),
		row(),
		row("Beta", "Servicos", "Recibo", day(2025, 9, 1), nil, "Aberto", "garbage"),
		row("Gama\nCod.: 1", "Material", "NF", "sem data", "01/10/2025", "Pago", 10.0),
		row("Delta\nCod.: 2", "Material", "NF", "15/10/2025", "01/11/2025", "Pago", 20.0),
		row("Epsilon\nCod.: 3", "Material", "NF", "15/09/2024", "", "Pago", 30.0),
		row("884", "Outros", "", "2025-09-30", "", "", 5.5),
	})
}

func TestTransformFiltersAndSplits(t *testing.T) {
	grid := bannerGrid()
	header, found := schema.LocateHeader(grid)
	require.True(t, found)
	require.Equal(t, 3, header)

	stream := Transform(grid, schema.BuildColumnMap(grid, header), header, types.PeriodFilter{Months: []int{9}, Year: 2025})

	require.True(t, stream.Next())
	first := stream.Row()
	assert.Equal(t, 4, stream.RowNumber())
	assert.Equal(t, "884", first.Code)
	assert.Equal(t, "Acme Corp", first.Supplier)
	assert.Equal(t, "Material", first.Category)
	assert.Equal(t, "10", first.DocumentNumber)
	assert.Equal(t, day(2025, 9, 15), first.Period)
	require.NotNil(t, first.PaymentDate)
	assert.Equal(t, day(2025, 9, 20), *first.PaymentDate)
	assert.Equal(t, "Pago", first.Status)
	assert.Equal(t, "1234.56", first.Amount.StringFixed(2))

	require.True(t, stream.Next())
	second := stream.Row()
	assert.Equal(t, 6, stream.RowNumber())
	assert.Equal(t, "Beta", second.Supplier)
	assert.Equal(t, "", second.Code)
	assert.Equal(t, "", second.DocumentNumber)
	assert.Nil(t, second.PaymentDate)
	assert.True(t, second.Amount.IsZero(), "unreadable amount becomes zero")

	require.True(t, stream.Next())
	third := stream.Row()
	assert.Equal(t, 10, stream.RowNumber())
	assert.Equal(t, "", third.Supplier)
	assert.Equal(t, "884", third.Code)
	assert.Equal(t, "5.50", third.Amount.StringFixed(2))

	assert.False(t, stream.Next())
	assert.False(t, stream.Next(), "stream stays exhausted")

	stats := stream.Stats()
	assert.Equal(t, 6, stats.RowsScanned)
	assert.Equal(t, 3, stats.RowsEmitted)
	assert.Equal(t, 1, stats.DroppedUnparsedPeriod)
	assert.Equal(t, 2, stats.DroppedOutOfPeriod)
	assert.Equal(t, 1, stats.AmountsDefaulted)
	assert.Equal(t, 2, stats.PaymentDatesAbsent)
}

func TestTransformMultiMonthSkipsOtherYears(t *testing.T) {
	grid := types.NewGrid([][]types.Cell{
		row("Fornecedor", "Rubrica", "Tipo", "Competência", "Pagamento", "Status", "Valor"),
		row("A", "", "", "10/01/2025", "", "", 1.0),
		row("B", "", "", "10/01/2024", "", "", 2.0),
		row("C", "", "", "10/02/2025", "", "", 3.0),
		row("D", "", "", "10/04/2025", "", "", 4.0),
		row("E", "", "", "10/03/2025", "", "", 5.0),
		row("F", "", "", "10/03/2026", "", "", 6.0),
	})
	rows := Transform(grid, schema.BuildColumnMap(grid, 1), 1, types.PeriodFilter{Months: []int{1, 2, 3}, Year: 2025}).Collect()

	var suppliers []string
	for _, r := range rows {
		suppliers = append(suppliers, r.Supplier)
		assert.Equal(t, 2025, r.Period.Year())
	}
	assert.Equal(t, []string{"A", "C", "E"}, suppliers)
}

func TestTransformWithoutPeriodColumnDropsEverything(t *testing.T) {
	grid := types.NewGrid([][]types.Cell{
		row("Fornecedor", "Valor"),
		row("A", 1.0),
	})
	stream := Transform(grid, schema.BuildColumnMap(grid, 1), 1, types.PeriodFilter{Months: []int{9}, Year: 2025})
	assert.Empty(t, stream.Collect())
	assert.Equal(t, 1, stream.Stats().DroppedUnparsedPeriod)
}

func TestTransformPrefersDedicatedColumns(t *testing.T) {
	grid := types.NewGrid([][]types.Cell{
		row("CÓDIGO", "FORNECEDOR", "RUBRICA", "DOCUMENTO", "COMPETÊNCIA", "DATA PAGAMENTO", "SITUAÇÃO", "VALOR"),
		row(884.0, "Acme Corp", "Material", "10", day(2025, 9, 1), day(2025, 9, 20), "Pago", 1234.56),
	})
	rows := Transform(grid, schema.BuildColumnMap(grid, 1), 1, types.PeriodFilter{Months: []int{9}, Year: 2025}).Collect()
	require.Len(t, rows, 1)
	assert.Equal(t, "884", rows[0].Code)
	assert.Equal(t, "Acme Corp", rows[0].Supplier)
	assert.Equal(t, "10", rows[0].DocumentNumber)
}
