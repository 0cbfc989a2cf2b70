// Package parsers converts raw CSV input into typed Order and Settlement
// records. It is the external collaborator in front of the reconciliation
// engine: it validates required columns and numeric fields per row, reports
// the exact row number of the first malformed record, and guarantees the
// engine never sees a structurally invalid record.
//
// Both parsers share the same base behavior:
//   - a header row is required and validated against the expected columns
//   - common header variants are accepted via configurable column aliases
//   - the first data row is row 2 (row numbers match what a user sees in a
//     spreadsheet)
//   - a UTF-8 byte-order mark at the start of the input is skipped
package parsers

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"zephyr-reconciliation-service/pkg/errors"
)

// ParseStats captures counters for a single parse run.
type ParseStats struct {
	RecordsParsed int `json:"records_parsed"`
	RowsSkipped   int `json:"rows_skipped"`
}

// headerIndex maps canonical column names to their position in the header row.
type headerIndex map[string]int

// utf8BOM is prepended by Excel and some processor export tools.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned past a leading UTF-8 byte-order mark,
// if one is present.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(utf8BOM))
	if err == nil && head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
		br.Discard(len(utf8BOM))
	}
	return br
}

// newCSVReader builds a csv.Reader with the shared settings.
func newCSVReader(r io.Reader, delimiter rune) *csv.Reader {
	reader := csv.NewReader(skipBOM(r))
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader
}

// resolveHeaders reads the header row and maps each required canonical column
// to its index, applying aliases for common header variants. It returns a
// parse error naming the first missing column.
func resolveHeaders(reader *csv.Reader, source string, required []string, aliases map[string]string) (headerIndex, error) {
	record, err := reader.Read()
	if err == io.EOF {
		return nil, errors.ParseError(errors.CodeEmptyInput, source, 1, "", "", nil)
	}
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, source, 1, "", "", err)
	}

	index := make(headerIndex, len(record))
	for i, raw := range record {
		name := strings.ToLower(strings.TrimSpace(raw))
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	for _, column := range required {
		if _, ok := index[column]; !ok {
			return nil, errors.ParseError(errors.CodeMissingColumn, source, 1, column, "", nil)
		}
	}

	return index, nil
}

// field extracts a named column from a data row, or reports it missing.
func (h headerIndex) field(record []string, column string) (string, bool) {
	i, ok := h[column]
	if !ok || i >= len(record) {
		return "", false
	}
	return record[i], true
}

// isEmptyRow reports whether every field of the record is blank.
func isEmptyRow(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// openFile opens a CSV file for parsing, translating OS errors into the
// application error taxonomy.
func openFile(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileUnreadable, path, err)
	}
	return file, nil
}

// rowError wraps a field-level failure with its row and column position.
func rowError(source string, row int, column, value string, err error) error {
	return errors.ParseError(errors.CodeInvalidData, source, row, column, value,
		fmt.Errorf("%w", err))
}
