// =============================================================================
// Separador - Pipeline
// =============================================================================
//
// This module runs the whole filter for one upload, from raw bytes to the
// output workbook.
//
// PIPELINE:
//   1. Validate the request (months, year, upload, output name)
//   2. Sniff the format and decode with ordered fallback
//   3. Locate the header row (first 20 rows, row 1 if none)
//   4. Map header labels to canonical roles
//   5. Transform and filter the data rows
//   6. Build the styled output workbook
//
// The pipeline performs no I/O and no logging. What happened along the way
// is returned in a Report for the caller to log.
//
// CONCURRENCY:
//   A Pipeline holds no mutable state, so one instance can serve many
//   requests in parallel. Every grid and workbook belongs to one call.
//
// =============================================================================

package converter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/separador/internal/decoder"
	"github.com/ginjaninja78/separador/internal/schema"
	"github.com/ginjaninja78/separador/internal/types"
	"github.com/ginjaninja78/separador/internal/validation"
	"github.com/ginjaninja78/separador/internal/xlsxwriter"
)

// =============================================================================
// REQUEST AND RESULT
// =============================================================================

// Request is one filter job.
type Request struct {
	// Data is the whole uploaded file.
	Data []byte `form:"file" validate:"required,min=1"`

	// Filename is only a decoding hint.
	Filename string `form:"filename"`

	// Months are the wanted months, 1 to 12.
	Months []int `form:"mes" validate:"required,min=1,unique,dive,min=1,max=12"`

	// Year is the wanted year.
	Year int `form:"ano" validate:"min=1900,max=9999"`

	// OutputName is the optional download name chosen by the user.
	OutputName string `form:"nome" validate:"omitempty,max=200,filename"`
}

// Filter returns the period filter of the request.
func (r Request) Filter() types.PeriodFilter {
	return types.PeriodFilter{Months: r.Months, Year: r.Year}
}

// Report describes how a request was processed.
type Report struct {
	// Decoder is the strategy that produced the grid.
	Decoder string

	// FailedDecoders lists the strategies tried before Decoder.
	FailedDecoders []string

	// HeaderRow is the 1-based row used as labels.
	HeaderRow int

	// HeaderFound is false when row 1 was used because no row matched.
	HeaderFound bool

	// FallbackRoles are roles resolved by position instead of label.
	FallbackRoles []string

	// GridRows and GridCols are the decoded extents.
	GridRows int
	GridCols int

	// Stats are the row counters of the transform step.
	Stats TransformStats

	// Duration is the wall time of the run.
	Duration time.Duration
}

// LogValue renders the report as a log group.
func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("decoder", r.Decoder),
		slog.Any("failed_decoders", r.FailedDecoders),
		slog.Int("header_row", r.HeaderRow),
		slog.Bool("header_found", r.HeaderFound),
		slog.Any("fallback_roles", r.FallbackRoles),
		slog.Int("grid_rows", r.GridRows),
		slog.Int("grid_cols", r.GridCols),
		slog.Int("rows_scanned", r.Stats.RowsScanned),
		slog.Int("rows_emitted", r.Stats.RowsEmitted),
		slog.Int("dropped_unparsed_period", r.Stats.DroppedUnparsedPeriod),
		slog.Int("dropped_out_of_period", r.Stats.DroppedOutOfPeriod),
		slog.Int("amounts_defaulted", r.Stats.AmountsDefaulted),
		slog.Int("payment_dates_absent", r.Stats.PaymentDatesAbsent),
		slog.Duration("duration", r.Duration),
	)
}

// Result is a successful run.
type Result struct {
	// Content is the serialized output workbook.
	Content []byte

	// Rows are the canonical rows written to Content, in order.
	Rows []types.CanonicalRow

	// Report describes the run.
	Report Report
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs the filter. The zero value is not usable; use New.
type Pipeline struct {
	chain  *decoder.Chain
	output xlsxwriter.Options
}

// New creates a pipeline with every built-in decoder.
func New() *Pipeline {
	return NewWithChain(decoder.DefaultChain())
}

// NewWithChain creates a pipeline with a custom decoder chain.
func NewWithChain(chain *decoder.Chain) *Pipeline {
	return &Pipeline{chain: chain, output: xlsxwriter.DefaultOptions()}
}

// Run filters the upload and builds the output workbook. A filter that
// matches nothing still yields a workbook with the header row.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	rows, report, err := p.Extract(ctx, req)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	content, err := xlsxwriter.BuildWithOptions(rows, p.output)
	if err != nil {
		return nil, fmt.Errorf("failed to build output: %w", err)
	}
	report.Duration += time.Since(start)

	return &Result{Content: content, Rows: rows, Report: report}, nil
}

// Extract runs every step except building the output workbook.
func (p *Pipeline) Extract(ctx context.Context, req Request) ([]types.CanonicalRow, Report, error) {
	start := time.Now()
	var report Report

	if err := validation.Struct(req); err != nil {
		return nil, report, err
	}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	decoded, err := p.chain.Decode(req.Data, req.Filename)
	if err != nil {
		return nil, report, err
	}
	report.Decoder = decoded.Kind.String()
	for _, f := range decoded.Failed {
		report.FailedDecoders = append(report.FailedDecoders, f.Kind.String())
	}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	grid := decoded.Grid
	report.GridRows, report.GridCols = grid.NumRows(), grid.NumCols()

	headerRow, found := schema.LocateHeader(grid)
	report.HeaderRow, report.HeaderFound = headerRow, found

	columns := schema.BuildColumnMap(grid, headerRow)
	for _, role := range columns.Fallbacks() {
		report.FallbackRoles = append(report.FallbackRoles, role.String())
	}

	stream := Transform(grid, columns, headerRow, req.Filter())
	rows := stream.Collect()
	report.Stats = stream.Stats()
	report.Duration = time.Since(start)

	return rows, report, nil
}

// =============================================================================
// OUTPUT NAMING
// =============================================================================

// DefaultOutputName returns the download name used when the caller gives
// none, such as "filtrado_09-10_2025.xlsx".
func DefaultOutputName(months []int, year int) string {
	return fmt.Sprintf("filtrado_%s_%d.xlsx", MonthsToken(months), year)
}

// MonthsToken renders months for file names, such as "09-10".
func MonthsToken(months []int) string {
	parts := make([]string, len(months))
	for i, m := range months {
		parts[i] = fmt.Sprintf("%02d", m)
	}
	return strings.Join(parts, "-")
}

// OutputFileName returns the requested name with an .xlsx extension, or the
// default name.
func (r Request) OutputFileName() string {
	name := strings.TrimSpace(r.OutputName)
	if name == "" {
		return DefaultOutputName(r.Months, r.Year)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		name += ".xlsx"
	}
	return name
}

// MonthsLabel renders months as "9" or "1,2,3" for logs.
func MonthsLabel(months []int) string {
	parts := make([]string, len(months))
	for i, m := range months {
		parts[i] = strconv.Itoa(m)
	}
	return strings.Join(parts, ",")
}
