// =============================================================================
// Separador - Grid Decoders
// =============================================================================
//
// This package turns raw upload bytes into a types.Grid. Each physical format
// has its own Decoder; the Chain tries them in the order given by the sniffer
// and returns the first grid that decodes.
//
// DECODERS:
//   - NativeDecoder    : zipped spreadsheet container (excelize)
//   - HTMLDecoder      : HTML tables saved with a spreadsheet extension
//   - LegacyDecoder    : binary spreadsheet (xlrd-go, xlsReader as backup)
//   - DelimitedDecoder : semicolon/comma/tab separated text exports
//
// ERRORS:
//   A failing decoder returns a *DecodeError. The chain collects them and
//   only reports an *UnsupportedFormatError once every candidate failed.
//
// =============================================================================

package decoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/separador/internal/sniffer"
	"github.com/ginjaninja78/separador/internal/types"
)

// =============================================================================
// DECODER INTERFACE
// =============================================================================

// Decoder converts one physical file format into a grid.
type Decoder interface {
	// Kind identifies the strategy.
	Kind() sniffer.Kind

	// Decode reads the first sheet or table of data. It must not retain data.
	Decode(data []byte) (*types.Grid, error)
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrUnsupportedFormat is matched by errors.Is when no decoder could read the input.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// DecodeError reports that a single decoder failed on the input.
type DecodeError struct {
	Kind sniffer.Kind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s decoder: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnsupportedFormatError lists every attempt made before giving up.
type UnsupportedFormatError struct {
	Attempts []*DecodeError
}

func (e *UnsupportedFormatError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrUnsupportedFormat.Error()
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return fmt.Sprintf("%s (%s)", ErrUnsupportedFormat, strings.Join(parts, "; "))
}

// Is matches ErrUnsupportedFormat.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// Unwrap exposes every decoder failure.
func (e *UnsupportedFormatError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a)
	}
	return errs
}

// =============================================================================
// CHAIN
// =============================================================================

// Result is the outcome of a successful chain run.
type Result struct {
	// Grid is the decoded data.
	Grid *types.Grid

	// Kind is the decoder that produced Grid.
	Kind sniffer.Kind

	// Failed holds the decoders tried before Kind, in order.
	Failed []*DecodeError
}

// Chain holds one decoder per strategy.
type Chain struct {
	decoders map[sniffer.Kind]Decoder
}

// NewChain builds a chain from the given decoders. A later decoder with the
// same Kind replaces an earlier one.
func NewChain(decoders ...Decoder) *Chain {
	c := &Chain{decoders: make(map[sniffer.Kind]Decoder, len(decoders))}
	for _, d := range decoders {
		c.decoders[d.Kind()] = d
	}
	return c
}

// DefaultChain wires every built-in decoder.
func DefaultChain() *Chain {
	return NewChain(
		NewNativeDecoder(),
		NewHTMLDecoder(),
		NewLegacyDecoder(),
		NewDelimitedDecoder(),
	)
}

// Decode sniffs the input and tries each planned decoder in order.
func (c *Chain) Decode(data []byte, filename string) (*Result, error) {
	return c.DecodePlan(data, sniffer.Plan(data, filename))
}

// DecodePlan tries the decoders for the given kinds in order.
func (c *Chain) DecodePlan(data []byte, plan []sniffer.Kind) (*Result, error) {
	var failed []*DecodeError
	for _, kind := range plan {
		d, ok := c.decoders[kind]
		if !ok {
			continue
		}
		grid, err := d.Decode(data)
		if err == nil {
			return &Result{Grid: grid, Kind: kind, Failed: failed}, nil
		}
		var de *DecodeError
		if !errors.As(err, &de) {
			de = &DecodeError{Kind: kind, Err: err}
		}
		failed = append(failed, de)
	}
	return nil, &UnsupportedFormatError{Attempts: failed}
}
