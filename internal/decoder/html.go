package decoder

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"github.com/ginjaninja78/separador/internal/sniffer"
	"github.com/ginjaninja78/separador/internal/types"
)

// =============================================================================
// HTML DECODER
// =============================================================================

// HTMLDecoder reads HTML documents exported with a spreadsheet extension.
// It picks the largest table by cell count and never treats the first row
// as labels.
type HTMLDecoder struct{}

// NewHTMLDecoder creates an HTML decoder.
func NewHTMLDecoder() *HTMLDecoder {
	return &HTMLDecoder{}
}

// Kind implements Decoder.
func (d *HTMLDecoder) Kind() sniffer.Kind {
	return sniffer.HTML
}

// Decode implements Decoder.
func (d *HTMLDecoder) Decode(data []byte) (*types.Grid, error) {
	// Finance exports are frequently Windows-1252 with a meta charset tag.
	reader, err := charset.NewReader(bytes.NewReader(data), "text/html")
	if err != nil {
		return nil, &DecodeError{Kind: sniffer.HTML, Err: fmt.Errorf("failed to detect charset: %w", err)}
	}
	doc, err := html.Parse(reader)
	if err != nil {
		return nil, &DecodeError{Kind: sniffer.HTML, Err: fmt.Errorf("failed to parse markup: %w", err)}
	}

	var best [][]string
	bestCount := 0
	for _, table := range findTables(doc) {
		rows := tableRows(table)
		count := 0
		for _, r := range rows {
			count += len(r)
		}
		if count > bestCount {
			best, bestCount = rows, count
		}
	}
	if bestCount == 0 {
		return nil, &DecodeError{Kind: sniffer.HTML, Err: fmt.Errorf("no table with cells found")}
	}

	out := make([][]types.Cell, len(best))
	for i, row := range best {
		cells := make([]types.Cell, len(row))
		for j, text := range row {
			cells[j] = types.InferCell(text)
		}
		out[i] = cells
	}
	return types.NewGrid(out), nil
}

// findTables returns every table element, nested ones included.
func findTables(n *html.Node) []*html.Node {
	var tables []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			tables = append(tables, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return tables
}

// tableRows collects the rows owned by table, skipping nested tables.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
				// owned by its own entry
			case atom.Tr:
				rows = append(rows, rowCells(c))
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

func rowCells(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		cells = append(cells, cellText(c))
		// Spanned columns keep later cells aligned with the header.
		for i := 1; i < colspan(c); i++ {
			cells = append(cells, "")
		}
	}
	return cells
}

func colspan(n *html.Node) int {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, "colspan") {
			if v, err := strconv.Atoi(strings.TrimSpace(a.Val)); err == nil && v > 1 && v <= 1000 {
				return v
			}
		}
	}
	return 1
}

var markupSpace = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// cellText renders a cell's text with <br> and block boundaries as line
// breaks and other whitespace collapsed, the way a browser would show it.
func cellText(td *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				// Source line breaks are plain whitespace in markup.
				b.WriteString(markupSpace.Replace(c.Data))
			case html.ElementNode:
				switch c.DataAtom {
				case atom.Table, atom.Script, atom.Style:
					continue
				case atom.Br:
					b.WriteString("\n")
				case atom.P, atom.Div:
					b.WriteString("\n")
					walk(c)
					b.WriteString("\n")
				default:
					walk(c)
				}
			}
		}
	}
	walk(td)

	lines := strings.Split(strings.ReplaceAll(b.String(), "\u00a0", " "), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
