// =============================================================================
// Separador - Main Entry Point
// =============================================================================
//
// USAGE:
//   separador serve     - Start the upload page
//   separador process   - Filter the files of the input directory
//   separador version   - Display the application version
//
// LAYOUT:
//   cmd/           : CLI command definitions (Cobra)
//   internal/      : Decoding, header detection, filtering, output, server
//   pkg/utils/     : Batch file handling
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/separador/cmd"
)

func main() {
	cmd.Execute()
}
