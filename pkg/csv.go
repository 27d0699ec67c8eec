package pkg

import (
	"bytes"
	"encoding/csv"
	"strings"
	"unicode/utf8"
)

// DecodeCSVBytes turns an uploaded file body into text, tolerating a
// UTF-8 BOM and falling back to latin-1 for files exported from old
// spreadsheet tools.
func DecodeCSVBytes(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return string(raw)
	}
	// latin-1: every byte maps to the same code point
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

// SniffCSVDelimiter inspects the first non-empty line and picks the
// delimiter with the highest occurrence count. Comma wins ties and is
// the fallback when nothing matches.
func SniffCSVDelimiter(text string) rune {
	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		best := ','
		bestCount := strings.Count(line, ",")
		for _, cand := range []rune{';', '\t', '|'} {
			if c := strings.Count(line, string(cand)); c > bestCount {
				best, bestCount = cand, c
			}
		}
		return best
	}
	return ','
}

// NewCSVReader builds a csv.Reader over the given text with the
// sniffed delimiter, lenient about per-record field counts.
func NewCSVReader(text string) *csv.Reader {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = SniffCSVDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}
