package imports

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	pkgerrors "github.com/loomline/designvault/pkg/errors"
)

const utf8BOM = "\ufeff"

// Row is one parsed data record keyed by trimmed header name. Number is the
// 1-based position of the record among the file's data rows.
type Row struct {
	Number int
	Fields map[string]string
}

// Get returns the raw value for column, or "" when the record did not carry it.
func (r Row) Get(column string) string {
	return r.Fields[column]
}

// ReadHeader reads only the first record and returns its trimmed column names.
func ReadHeader(r io.Reader) ([]string, error) {
	reader := newCSVReader(r)
	record, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "csv file is empty")
	}
	if err != nil {
		return nil, parseError(err)
	}
	return normalizeHeader(record), nil
}

// ParseRows parses the whole file using its first record as the header.
// Records whose fields are all blank are skipped.
func ParseRows(r io.Reader) ([]Row, error) {
	reader := newCSVReader(r)
	record, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "csv file is empty")
	}
	if err != nil {
		return nil, parseError(err)
	}
	header := normalizeHeader(record)

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseError(err)
		}
		if isBlankRecord(record) {
			continue
		}
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(record) {
				fields[name] = record[i]
			} else {
				fields[name] = ""
			}
		}
		rows = append(rows, Row{Number: len(rows) + 1, Fields: fields})
	}
	return rows, nil
}

// Chunk partitions rows into consecutive slices of at most size rows.
func Chunk(rows []Row, size int) [][]Row {
	if size <= 0 || len(rows) == 0 {
		return nil
	}
	chunks := make([][]Row, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end:end])
	}
	return chunks
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false
	return reader
}

func normalizeHeader(record []string) []string {
	header := make([]string, len(record))
	for i, name := range record {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		header[i] = strings.TrimSpace(name)
	}
	return header
}

func isBlankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func parseError(err error) error {
	details := map[string]any{"error": err.Error()}
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		details["line"] = perr.Line
		details["column"] = perr.Column
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, fmt.Errorf("parse csv: %w", err), "error parsing CSV file").WithDetails(details)
}
