// Package csv provides CSV statement parsing for the card, bank, and
// peer-to-peer export formats.
package csv

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// isCSV checks the file extension (.csv, case-insensitive).
func isCSV(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".csv"
}

// stripBOM removes a leading UTF-8 byte-order marker.
func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, utf8BOM)
}

// newReader builds a csv.Reader with the lenient settings all three formats
// share. Exports in the wild have ragged rows and stray quotes.
func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return cr
}

// readRecords reads every record from a statement file, BOM stripped.
func readRecords(r io.Reader) ([][]string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return newReader(bytes.NewReader(stripBOM(content))).ReadAll()
}

// headerFields parses the first record out of a detection header prefix.
func headerFields(header []byte) ([]string, error) {
	return newReader(bytes.NewReader(stripBOM(header))).Read()
}

// hasAll reports whether every required column name is present, in any order.
func hasAll(fields, required []string) bool {
	present := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		present[strings.TrimSpace(f)] = struct{}{}
	}
	for _, want := range required {
		if _, ok := present[want]; !ok {
			return false
		}
	}
	return true
}

// rowMap zips a record against the header row. Missing trailing fields map
// to ""; extra fields are ignored.
func rowMap(headers, record []string) map[string]string {
	row := make(map[string]string, len(headers))
	for i, h := range headers {
		key := strings.TrimSpace(h)
		if i < len(record) {
			row[key] = record[i]
		} else {
			row[key] = ""
		}
	}
	return row
}
