// Package sniffer classifies raw upload bytes into a decoding strategy
// without fully decoding them.
package sniffer

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Kind identifies a grid decoding strategy.
type Kind int

const (
	// Native is the modern zipped spreadsheet container.
	Native Kind = iota

	// HTML is an HTML document saved with a spreadsheet extension.
	HTML

	// Legacy is the binary spreadsheet format (BIFF in an OLE2 container).
	Legacy

	// Delimited is semicolon, comma or tab separated text.
	Delimited
)

// String returns the kind name used in reports and logs.
func (k Kind) String() string {
	switch k {
	case Native:
		return "native"
	case HTML:
		return "html"
	case Legacy:
		return "legacy"
	case Delimited:
		return "delimited"
	default:
		return "unknown"
	}
}

// peekSize bounds how much of the buffer is inspected.
const peekSize = 2048

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	ole2Sig  = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	zipSig   = []byte{'P', 'K', 0x03, 0x04}
	htmlTags = []string{"<html", "<table", "<!doctype html", "<meta", "<body"}
)

// Sniff returns the preferred strategy for the buffer. Only HTML is decided
// from content; everything else is speculatively Native.
func Sniff(data []byte, filename string) Kind {
	if LooksLikeHTML(data) {
		return HTML
	}
	return Native
}

// LooksLikeHTML reports whether the head of the buffer carries markup.
// The buffer is only read, never consumed.
func LooksLikeHTML(data []byte) bool {
	head := data
	if len(head) > peekSize {
		head = head[:peekSize]
	}
	head = bytes.TrimPrefix(head, utf8BOM)
	head = bytes.TrimSpace(head)
	if len(head) == 0 {
		return false
	}
	if bytes.HasPrefix(head, zipSig) || bytes.HasPrefix(head, ole2Sig) {
		return false
	}
	if head[0] == '<' {
		return true
	}
	lower := strings.ToLower(string(head))
	for _, tag := range htmlTags {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

// IsOLE2 reports whether the buffer starts with the compound document signature.
func IsOLE2(data []byte) bool {
	return bytes.HasPrefix(data, ole2Sig)
}

// Plan returns the ordered list of strategies to attempt.
//
// Markup in the head means HTML only. Otherwise Native is tried first, then
// Legacy when the name or signature suggests it, then Delimited for text
// exports, and HTML last since legacy-named files are often disguised HTML.
func Plan(data []byte, filename string) []Kind {
	if Sniff(data, filename) == HTML {
		return []Kind{HTML}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	plan := []Kind{Native}
	if ext == ".xls" || IsOLE2(data) {
		plan = append(plan, Legacy)
	}
	if ext == ".csv" || ext == ".txt" {
		plan = append(plan, Delimited)
	}
	return append(plan, HTML)
}
