package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/separador/internal/config"
)

func testConfig(t *testing.T) *config.MainConfig {
	t.Helper()
	root := t.TempDir()
	c := config.Default()
	c.Paths.InputDir = filepath.Join(root, "in")
	c.Paths.OutputDir = filepath.Join(root, "out")
	c.Paths.ArchiveDir = filepath.Join(root, "archive")
	c.Processing.MaxConcurrency = 2
	require.NoError(t, os.MkdirAll(c.Paths.InputDir, 0o755))
	return c
}

func writeLedger(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Lançamento", "Rubrica", "Tipo Doc", "Competência", "Data Pagamento", "Situação", "Valor"},
		{"Acme Corp\nCod.: 884", "Material", "NF\nDoc.: 10", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), nil, "Pago", 100.5},
		{"Beta Ltda\nCod.: 12", "Serviços", "NF\nDoc.: 11", time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), nil, "Pago", 10.0},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestRunProcessBatch(t *testing.T) {
	c := testConfig(t)
	writeLedger(t, filepath.Join(c.Paths.InputDir, "ledger.xlsx"))
	require.NoError(t, os.WriteFile(filepath.Join(c.Paths.InputDir, "broken.xls"), []byte("%PDF-1.7 binary"), 0o644))

	var out bytes.Buffer
	err := runProcess(context.Background(), &out, c, processOptions{Months: []int{9}, Year: 2025})
	require.Error(t, err, "one file failed")
	assert.Contains(t, err.Error(), "1 of 2")

	output := filepath.Join(c.Paths.OutputDir, "ledger_filtrado_09_2025.xlsx")
	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme Corp", rows[1][1])

	assert.FileExists(t, filepath.Join(c.Paths.ArchiveDir, "ledger.xlsx"))
	assert.NoFileExists(t, filepath.Join(c.Paths.InputDir, "ledger.xlsx"))
	assert.FileExists(t, filepath.Join(c.Paths.InputDir, "broken.xls"), "failed inputs stay in place")

	assert.Contains(t, out.String(), "✓ ledger.xlsx -> ledger_filtrado_09_2025.xlsx (1 row(s), native)")
	assert.Contains(t, out.String(), "✗ broken.xls")
	assert.Contains(t, out.String(), "Summary:")
}

func TestRunProcessSingleFileDryRun(t *testing.T) {
	c := testConfig(t)
	input := filepath.Join(c.Paths.InputDir, "ledger.xlsx")
	writeLedger(t, input)

	var out bytes.Buffer
	err := runProcess(context.Background(), &out, c, processOptions{
		Months:  []int{8, 9},
		Year:    2025,
		File:    input,
		OutName: "ambos",
		DryRun:  true,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ambos.xlsx (2 row(s), native)")
	assert.FileExists(t, input)
	assert.NoDirExists(t, c.Paths.OutputDir)
}

func TestRunProcessEmptyInput(t *testing.T) {
	c := testConfig(t)
	var out bytes.Buffer
	require.NoError(t, runProcess(context.Background(), &out, c, processOptions{Months: []int{9}, Year: 2025}))
	assert.Contains(t, out.String(), "No supported files")
}

func TestRunProcessReportsInvalidRequest(t *testing.T) {
	c := testConfig(t)
	writeLedger(t, filepath.Join(c.Paths.InputDir, "ledger.xlsx"))

	var out bytes.Buffer
	err := runProcess(context.Background(), &out, c, processOptions{Months: []int{13}, Year: 2025})
	require.Error(t, err)
	assert.Contains(t, out.String(), "mes[0] must be at most 12")
	assert.FileExists(t, filepath.Join(c.Paths.InputDir, "ledger.xlsx"))
}

func TestRunProcessRejectsOutWithoutFile(t *testing.T) {
	c := testConfig(t)
	writeLedger(t, filepath.Join(c.Paths.InputDir, "a.xlsx"))
	writeLedger(t, filepath.Join(c.Paths.InputDir, "b.xlsx"))

	var out bytes.Buffer
	err := runProcess(context.Background(), &out, c, processOptions{Months: []int{9}, Year: 2025, OutName: "ambos"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--file")
	assert.FileExists(t, filepath.Join(c.Paths.InputDir, "a.xlsx"))
	assert.FileExists(t, filepath.Join(c.Paths.InputDir, "b.xlsx"))
	assert.NoDirExists(t, c.Paths.OutputDir)
}

func TestRunProcessNeverOverwritesOwnOutput(t *testing.T) {
	c := testConfig(t)
	c.Output.NameFormat = "resultado_{months}_{year}.xlsx"
	writeLedger(t, filepath.Join(c.Paths.InputDir, "a.xlsx"))
	writeLedger(t, filepath.Join(c.Paths.InputDir, "b.xlsx"))

	var out bytes.Buffer
	err := runProcess(context.Background(), &out, c, processOptions{Months: []int{9}, Year: 2025})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")

	assert.Contains(t, out.String(), "✓ a.xlsx -> resultado_09_2025.xlsx")
	assert.Contains(t, out.String(), "✗ b.xlsx: output resultado_09_2025.xlsx is already produced by a.xlsx")

	outputs, err := filepath.Glob(filepath.Join(c.Paths.OutputDir, "*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, outputs, 1)
	assert.FileExists(t, filepath.Join(c.Paths.ArchiveDir, "a.xlsx"))
	assert.FileExists(t, filepath.Join(c.Paths.InputDir, "b.xlsx"))
}

func TestRunProcessArchivesByDateAndWritesMetrics(t *testing.T) {
	c := testConfig(t)
	c.Processing.ArchiveByDate = true
	c.Processing.MetricsFile = filepath.Join(t.TempDir(), "separador.prom")
	writeLedger(t, filepath.Join(c.Paths.InputDir, "ledger.xlsx"))
	require.NoError(t, os.WriteFile(filepath.Join(c.Paths.InputDir, "broken.xls"), []byte("%PDF-1.7 binary"), 0o644))

	var out bytes.Buffer
	require.Error(t, runProcess(context.Background(), &out, c, processOptions{Months: []int{9}, Year: 2025}))

	archived, err := filepath.Glob(filepath.Join(c.Paths.ArchiveDir, "*", "*", "*", "ledger.xlsx"))
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	data, err := os.ReadFile(c.Processing.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `separador_runs_total{decoder="native",outcome="ok",source="cli"} 1`)
	assert.Contains(t, string(data), `separador_runs_total{decoder="none",outcome="unsupported",source="cli"} 1`)
	assert.Contains(t, string(data), `separador_rows_emitted_total{source="cli"} 1`)
	assert.Contains(t, out.String(), "Metrics:")
}
