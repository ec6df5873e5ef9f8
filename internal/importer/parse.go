package importer

// parse.go decodes an uploaded tabular file into RawRows.
//
// Parsing is a single sequential pass: the grid is materialized up front
// (uploads are size-capped by the caller), the header row is located and
// matched against the schema, and every following row becomes a RawRow
// numbered from 1. A ParseError is fatal to the whole session.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"rosterimport/internal/schema"
)

// MaxHeaderSearchRows is the maximum number of rows scanned for the header.
// Exports from spreadsheet tools sometimes prepend title or note rows.
var MaxHeaderSearchRows = 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes the uploaded file into the header row and the ordered
// sequence of data rows. Row numbers are 1-based from the first row after
// the header; fully blank rows are dropped but keep their positional number
// so that numbering stays stable for the caller.
func Parse(r io.Reader, contentType string, def schema.Definition) ([]string, []RawRow, error) {
	sep, err := fieldSeparator(contentType)
	if err != nil {
		return nil, nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, &ParseError{Reason: fmt.Sprintf("read upload: %v", err)}
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	data = sanitizeUTF8(data)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, &ParseError{Reason: fmt.Sprintf("malformed file: %v", err)}
	}
	if len(records) == 0 {
		return nil, nil, &ParseError{Reason: "file is empty"}
	}

	headerIdx, missing := findHeader(records, def.RequiredColumns())
	if headerIdx < 0 {
		return nil, nil, &ParseError{
			Reason: fmt.Sprintf("header row not found; missing required columns: %s",
				strings.Join(missing, ", ")),
		}
	}

	header := records[headerIdx]
	colIndex := makeHeaderIndex(header)

	var rows []RawRow
	for i, record := range records[headerIdx+1:] {
		if isBlankRow(record) {
			continue
		}

		fields := make(map[string]string, len(colIndex))
		for name, pos := range colIndex {
			if pos < len(record) {
				fields[name] = cleanCell(record[pos])
			}
		}

		rows = append(rows, RawRow{
			Number: i + 1,
			Fields: fields,
			Cells:  record,
		})
	}

	if len(rows) == 0 {
		return nil, nil, &ParseError{Reason: "no data rows after header"}
	}

	return header, rows, nil
}

// fieldSeparator maps the declared content type to a delimiter.
func fieldSeparator(contentType string) (rune, error) {
	// Strip parameters like "; charset=utf-8"
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	switch contentType {
	case "", "text/csv", "application/csv", "application/vnd.ms-excel", "application/octet-stream":
		return ',', nil
	case "text/tab-separated-values", "text/tsv":
		return '\t', nil
	default:
		return 0, &ParseError{Reason: fmt.Sprintf("unsupported content type %q", contentType)}
	}
}

// findHeader scans the first MaxHeaderSearchRows records for a row containing
// every required column. Returns the header index, or -1 and the columns
// missing from the best candidate (the first non-blank row).
func findHeader(records [][]string, required []string) (int, []string) {
	maxRows := MaxHeaderSearchRows
	if len(records) < maxRows {
		maxRows = len(records)
	}

	var firstMissing []string
	for i := 0; i < maxRows; i++ {
		if isBlankRow(records[i]) {
			continue
		}
		missing := missingColumns(records[i], required)
		if len(missing) == 0 {
			return i, nil
		}
		if firstMissing == nil {
			firstMissing = missing
		}
	}

	if firstMissing == nil {
		firstMissing = required
	}
	return -1, firstMissing
}

// missingColumns returns the required columns absent from the candidate row.
func missingColumns(row []string, required []string) []string {
	have := make(map[string]bool, len(row))
	for _, cell := range row {
		have[strings.ToLower(cleanCell(cell))] = true
	}

	var missing []string
	for _, col := range required {
		if !have[strings.ToLower(col)] {
			missing = append(missing, col)
		}
	}
	return missing
}

// makeHeaderIndex maps lowercased header names to their column positions.
// Keys are lowercased for case-insensitive matching; the first occurrence
// wins for duplicate headers.
func makeHeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(cleanCell(h))
		if key == "" {
			continue
		}
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// cleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, Excel formula prefixes (="value") and stray quotes.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the Unicode replacement
// character so the csv reader never sees broken encodings from legacy
// spreadsheet exports.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			data = data[1:]
		} else {
			buf.Write(data[:size])
			data = data[size:]
		}
	}

	return buf.Bytes()
}
