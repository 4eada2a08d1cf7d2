// =============================================================================
// Separador - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand
// gets the loaded configuration and a configured slog logger before it runs.
//
// COBRA CLI STRUCTURE:
//   rootCmd (separador)
//   ├── processCmd (separador process)
//   ├── serveCmd   (separador serve)
//   └── versionCmd (separador version)
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/separador/internal/config"
	"github.com/ginjaninja78/separador/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// cfg is the configuration loaded before any subcommand runs.
var cfg *config.MainConfig

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "separador",
	Short: "Separador - Filter accounting exports by period",
	Long: `Separador reads spreadsheet exports of accounting systems (real .xlsx,
legacy .xls, HTML tables saved as .xls, and delimited text), keeps the rows
whose period falls in the requested months of one year, and writes them to a
formatted .xlsx workbook.

Example Usage:
  separador serve                               # Start the upload page on :8080
  separador process --months 9 --year 2025      # Filter every file in the input directory
  separador process --file ledger.xls --months 9,10 --year 2025 --out setembro.xlsx`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadMainConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load main config: %w", err)
		}
		cfg = loaded

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logging.Setup(level, cfg.Logging.Format)
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file (optional)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}
