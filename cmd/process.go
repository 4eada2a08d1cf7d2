// =============================================================================
// Separador - Process Command
// =============================================================================
//
// This file defines the 'process' command, which filters files from disk
// without the upload page.
//
// COMMAND USAGE:
//   separador process --months 9 --year 2025 [flags]
//
// FLAGS:
//   --months   : Wanted months, repeatable or comma separated (required)
//   --year     : Wanted year (required)
//   --file     : Filter a single file instead of the input directory
//   --out      : Output name, only together with --file
//                (default from output.name_format)
//   --dry-run  : Run the filter but write and move nothing
//
// PROCESSING PIPELINE:
//   1. Discover inputs (--file, or every supported file in paths.input_dir)
//   2. For each file, at most processing.max_concurrency at once:
//      a. Decode, locate the header, map columns, filter rows
//      b. Write the workbook to paths.output_dir
//      c. Move the input to paths.archive_dir
//   3. Print and write the summary (and the metrics file when configured)
//
// A failing file never stops the others; it stays in the input directory.
// Two inputs that would produce the same output name are not both written:
// the later one in name order fails.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/separador/internal/config"
	"github.com/ginjaninja78/separador/internal/converter"
	"github.com/ginjaninja78/separador/internal/metrics"
	"github.com/ginjaninja78/separador/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// processOptions are the flags of one process run.
type processOptions struct {
	Months  []int
	Year    int
	File    string
	OutName string
	DryRun  bool
}

var processFlags processOptions

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Filter spreadsheet exports from disk",
	Long: `The process command filters one file (--file) or every supported file in
the input directory, keeping only rows whose period falls in the given months
of the given year.

On success:
  - The filtered workbook is placed in the output directory
  - The input is moved to the archive directory
  - A summary is written next to the outputs

On error:
  - The input remains in the input directory
  - Processing continues for other files`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context(), cmd.OutOrStdout(), cfg, processFlags)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().IntSliceVar(&processFlags.Months, "months", nil, "Months to keep, 1 to 12 (repeatable or comma separated)")
	processCmd.Flags().IntVar(&processFlags.Year, "year", 0, "Year to keep")
	processCmd.Flags().StringVar(&processFlags.File, "file", "", "Filter a single file instead of the input directory")
	processCmd.Flags().StringVar(&processFlags.OutName, "out", "", "Output file name (requires --file)")
	processCmd.Flags().BoolVar(&processFlags.DryRun, "dry-run", false, "Run the filter without writing or moving files")

	processCmd.MarkFlagRequired("months")
	processCmd.MarkFlagRequired("year")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// fileResult is the outcome of one input.
type fileResult struct {
	Input    string
	Output   string
	Archived string
	Report   converter.Report
	Rows     int
	Elapsed  time.Duration
	Err      error
}

// runProcess filters every input and prints a summary to out. It fails when
// at least one file failed.
func runProcess(ctx context.Context, out io.Writer, mainConfig *config.MainConfig, opts processOptions) error {
	startTime := time.Now()

	fmt.Fprintln(out, "=== Separador ===")
	if opts.DryRun {
		fmt.Fprintln(out, "Dry run: nothing will be written or moved.")
	}

	if opts.OutName != "" && opts.File == "" {
		return fmt.Errorf("--out names a single output and needs --file")
	}

	fm := utils.NewFileManager(mainConfig.Paths.InputDir, mainConfig.Paths.OutputDir, mainConfig.Paths.ArchiveDir)
	fm.ArchiveOnSuccess = mainConfig.Processing.ArchiveOnSuccess && !opts.DryRun
	fm.UseTimestampSubdirs = mainConfig.Processing.ArchiveByDate
	runMetrics := metrics.New()

	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if opts.File != "" {
		inputFiles = []string{opts.File}
	} else {
		fmt.Fprintln(out, "Discovering input files...")
		files, err := fm.DiscoverInputFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
		inputFiles = files
	}
	if len(inputFiles) == 0 {
		fmt.Fprintln(out, "No supported files found in the input directory.")
		return nil
	}
	if !opts.DryRun {
		if err := fm.EnsureDirectories(); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Found %d file(s) to process\n", len(inputFiles))

	// =========================================================================
	// STEP 2: PROCESS FILES CONCURRENTLY
	// =========================================================================

	fmt.Fprintln(out, "Processing files...")

	pipeline := converter.New()
	results := make([]fileResult, len(inputFiles))

	// Names are fixed up front; two inputs never share an output.
	names := make([]string, len(inputFiles))
	owners := make(map[string]string, len(inputFiles))
	for i, file := range inputFiles {
		name := outputName(mainConfig.Output.NameFormat, file, opts)
		key := strings.ToLower(name)
		if owner, taken := owners[key]; taken {
			results[i] = fileResult{
				Input: file,
				Err:   fmt.Errorf("output %s is already produced by %s", name, filepath.Base(owner)),
			}
			continue
		}
		owners[key] = file
		names[i] = name
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(mainConfig.Processing.MaxConcurrency, 1))
	for i, file := range inputFiles {
		if names[i] == "" {
			continue
		}
		g.Go(func() error {
			results[i] = processFile(gctx, pipeline, fm, names[i], file, opts)
			// A failed file must not cancel the others.
			return nil
		})
	}
	g.Wait()

	// =========================================================================
	// STEP 3: COLLECT RESULTS AND PRINT SUMMARY
	// =========================================================================

	summary := utils.ProcessingSummary{
		StartTime:  startTime,
		Months:     converter.MonthsLabel(opts.Months),
		Year:       opts.Year,
		TotalFiles: len(inputFiles),
	}
	for _, r := range results {
		runMetrics.ObserveRun("cli", r.Report, r.Err)
		name := filepath.Base(r.Input)
		if r.Err != nil {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    r.Input,
				ErrorMessage: r.Err.Error(),
				ErrorType:    metrics.Outcome(r.Err),
			})
			fmt.Fprintf(out, "  ✗ %s: %v\n", name, r.Err)
			continue
		}
		summary.SuccessfulFiles++
		summary.TotalRows += r.Rows
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:   r.Input,
			OutputFile:  r.Output,
			ArchivePath: r.Archived,
			Decoder:     r.Report.Decoder,
			Rows:        r.Rows,
			ProcessTime: r.Elapsed,
		})
		fmt.Fprintf(out, "  ✓ %s -> %s (%d row(s), %s)\n", name, filepath.Base(r.Output), r.Rows, r.Report.Decoder)
	}
	summary.EndTime = time.Now()

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Rows written:    %d\n", summary.TotalRows)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(startTime))

	if !opts.DryRun {
		path, err := utils.WriteSummaryLog(summary, mainConfig.Paths.OutputDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Summary:         %s\n", path)

		if mainConfig.Processing.MetricsFile != "" {
			if err := runMetrics.WriteTextfile(mainConfig.Processing.MetricsFile); err != nil {
				return err
			}
			fmt.Fprintf(out, "Metrics:         %s\n", mainConfig.Processing.MetricsFile)
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// outputName is --out when given, else output.name_format filled for path.
func outputName(nameFormat, path string, opts processOptions) string {
	if opts.OutName != "" {
		return converter.Request{OutputName: opts.OutName}.OutputFileName()
	}
	return utils.GenerateOutputFileName(nameFormat, map[string]string{
		"original": utils.BaseName(path),
		"months":   converter.MonthsToken(opts.Months),
		"year":     strconv.Itoa(opts.Year),
	})
}

// processFile runs the filter on one input and stores the outcome.
func processFile(ctx context.Context, pipeline *converter.Pipeline, fm *utils.FileManager, name, path string, opts processOptions) fileResult {
	start := time.Now()
	result := fileResult{Input: path}
	logger := slog.With("file", path)

	data, err := os.ReadFile(path)
	if err != nil {
		result.Err = fmt.Errorf("failed to read input: %w", err)
		return result
	}

	req := converter.Request{
		Data:       data,
		Filename:   filepath.Base(path),
		Months:     opts.Months,
		Year:       opts.Year,
		OutputName: opts.OutName,
	}
	res, err := pipeline.Run(ctx, req)
	if err != nil {
		logger.Debug("file rejected", "error", err)
		result.Err = err
		return result
	}
	result.Report = res.Report
	result.Rows = len(res.Rows)
	logger.Debug("file filtered", "report", res.Report)

	result.Output = filepath.Join(fm.OutputDir, name)

	if !opts.DryRun {
		written, err := fm.WriteOutput(name, res.Content)
		if err != nil {
			result.Err = err
			return result
		}
		result.Output = written

		archived, err := fm.ArchiveInputFile(path)
		if err != nil {
			result.Err = fmt.Errorf("output written to %s but archiving failed: %w", written, err)
			return result
		}
		if archived != path {
			result.Archived = archived
		}
	}

	result.Elapsed = time.Since(start)
	return result
}
