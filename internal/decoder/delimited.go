package decoder

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/separador/internal/sniffer"
	"github.com/ginjaninja78/separador/internal/types"
)

// =============================================================================
// DELIMITED TEXT DECODER
// =============================================================================

// candidateDelimiters are checked in priority order; ties go to the first.
var candidateDelimiters = []rune{';', ',', '\t'}

// sniffLines bounds how many non-empty lines are used to detect the delimiter.
const sniffLines = 20

// DelimitedDecoder reads semicolon, comma or tab separated text exports.
type DelimitedDecoder struct{}

// NewDelimitedDecoder creates a delimited text decoder.
func NewDelimitedDecoder() *DelimitedDecoder {
	return &DelimitedDecoder{}
}

// Kind implements Decoder.
func (d *DelimitedDecoder) Kind() sniffer.Kind {
	return sniffer.Delimited
}

// Decode implements Decoder.
func (d *DelimitedDecoder) Decode(data []byte) (*types.Grid, error) {
	text, err := toUTF8(data)
	if err != nil {
		return nil, &DecodeError{Kind: sniffer.Delimited, Err: err}
	}

	delimiter, ok := detectDelimiter(text)
	if !ok {
		return nil, &DecodeError{Kind: sniffer.Delimited, Err: fmt.Errorf("no delimiter found")}
	}

	reader := csv.NewReader(bytes.NewReader(text))
	configureReader(reader, delimiter)

	var rows [][]types.Cell
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DecodeError{Kind: sniffer.Delimited, Err: fmt.Errorf("failed to read row %d: %w", len(rows)+1, err)}
		}
		cells := make([]types.Cell, len(record))
		for i, field := range record {
			cells[i] = types.InferCell(field)
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil, &DecodeError{Kind: sniffer.Delimited, Err: fmt.Errorf("no rows")}
	}
	return types.NewGrid(rows), nil
}

// configureReader applies the tolerant settings legacy exports need.
func configureReader(reader *csv.Reader, delimiter rune) {
	reader.Comma = delimiter

	// Rows may have trailing or missing columns.
	reader.FieldsPerRecord = -1

	// Stray quotes inside unquoted fields are common.
	reader.LazyQuotes = true

	reader.TrimLeadingSpace = true
}

// toUTF8 strips a byte-order mark and decodes Windows-1252 when the bytes
// are not valid UTF-8.
func toUTF8(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Windows-1252 text: %w", err)
	}
	return decoded, nil
}

// detectDelimiter picks the most frequent candidate across the first lines.
// Banner lines without delimiters do not decide on their own.
func detectDelimiter(text []byte) (rune, bool) {
	var head [][]byte
	for _, l := range bytes.Split(text, []byte("\n")) {
		if len(bytes.TrimSpace(l)) > 0 {
			head = append(head, l)
		}
		if len(head) == sniffLines {
			break
		}
	}
	best, bestCount := rune(0), 0
	for _, d := range candidateDelimiters {
		n := 0
		for _, l := range head {
			n += bytes.Count(l, []byte(string(d)))
		}
		if n > bestCount {
			best, bestCount = d, n
		}
	}
	return best, bestCount > 0
}
