// Package importcsv reads uploaded CSV files into header-keyed rows.
// Header names are normalized (accents stripped, lowercased) before a
// template-specific canonicalization maps aliases onto canonical column
// names. Structural problems (no header, duplicated or missing columns)
// abort the whole import with a single error.
package importcsv

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ibaifernandez/gymtracker/pkg"
)

// Row is one data row of an uploaded CSV file, keyed by canonical column name.
type Row struct {
	LineNumber int
	Fields     map[string]string
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"à", "a", "è", "e", "ì", "i", "ò", "o", "ù", "u",
	"ä", "a", "ë", "e", "ï", "i", "ö", "o", "ü", "u",
	"ñ", "n", "ç", "c",
)

// NormalizeHeaderName lowercases a raw header cell, strips accents and
// collapses separators to underscores, keeping only [a-z0-9_].
func NormalizeHeaderName(name string) string {
	txt := accentReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range txt {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ', r == '-', r == '/', r == '\t', r == '_':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ParseRows reads all data rows of the given CSV text. Blank rows and rows
// whose first non-empty cell starts with '#' (template hint rows) are
// skipped. Line numbers count from 1 at the header, matching what a user
// sees in a spreadsheet.
func ParseRows(text string, canonicalHeader func(string) string, requiredColumns []string) ([]Row, error) {
	reader := pkg.NewCSVReader(text)

	headersRaw, err := reader.Read()
	if err != nil {
		return nil, errors.New("CSV vacio o sin encabezados.")
	}

	headers := make([]string, len(headersRaw))
	seen := make(map[string]bool, len(headersRaw))
	for i, h := range headersRaw {
		canonical := canonicalHeader(h)
		if canonical != "" && seen[canonical] {
			return nil, errors.New("Hay columnas repetidas en el CSV (tras normalizar encabezados).")
		}
		seen[canonical] = true
		headers[i] = canonical
	}

	var missing []string
	for _, required := range requiredColumns {
		if !seen[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("Faltan columnas obligatorias: %s", strings.Join(missing, ", "))
	}

	var rows []Row
	for lineNo := 2; ; lineNo++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("No se pudo leer el CSV (fila %d).", lineNo)
		}

		firstNonEmpty := ""
		for _, cell := range record {
			if trimmed := strings.TrimSpace(cell); trimmed != "" {
				firstNonEmpty = trimmed
				break
			}
		}
		if firstNonEmpty == "" {
			continue
		}
		if strings.HasPrefix(firstNonEmpty, "#") {
			continue
		}

		fields := make(map[string]string, len(headers))
		for idx, key := range headers {
			if key == "" {
				continue
			}
			if idx < len(record) {
				fields[key] = strings.TrimSpace(record[idx])
			} else {
				fields[key] = ""
			}
		}
		rows = append(rows, Row{LineNumber: lineNo, Fields: fields})
	}

	return rows, nil
}
