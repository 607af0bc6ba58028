// Package table reads and writes the delimited tabular files exchanged between stages.
//
// A Table keeps every column it was read with, in order, so columns this tool does not
// know about (reviewer additions) survive a read/modify/write cycle untouched.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filing_tasks/pkg/models"
)

// Table is an ordered set of rows with a header.
type Table struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

// New creates an empty table with the given header.
func New(columns []string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
}

// Read loads a CSV file with a header row.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", models.ErrConfiguration, path, err)
	}
	defer f.Close()

	t, err := ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadFrom parses CSV from r. Short rows are padded with "" and long rows truncated.
// An empty input yields a table with no columns.
func ReadFrom(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", models.ErrConfiguration, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := New(header)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read row %d: %v", models.ErrConfiguration, len(t.Rows)+1, err)
		}
		t.Append(record)
	}
	return t, nil
}

// Require fails with models.ErrConfiguration naming every missing column.
func (t *Table) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: input is missing columns: %v", models.ErrConfiguration, missing)
	}
	return nil
}

// Has reports whether the column exists.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Get returns the cell at (row, column), or "" when the column is absent.
func (t *Table) Get(row int, column string) string {
	i, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][i]
}

// Getter returns a column lookup bound to one row.
func (t *Table) Getter(row int) func(column string) string {
	return func(column string) string {
		return t.Get(row, column)
	}
}

// Set writes a cell, adding the column first when needed.
func (t *Table) Set(row int, column, value string) {
	t.EnsureColumn(column)
	t.Rows[row][t.index[column]] = value
}

// EnsureColumn appends an empty column when it does not exist yet.
func (t *Table) EnsureColumn(column string) {
	if t.Has(column) {
		return
	}
	t.Columns = append(t.Columns, column)
	t.index[column] = len(t.Columns) - 1
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
}

// Append adds a row, fitting it to the header width.
func (t *Table) Append(values []string) {
	row := make([]string, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// Write stores the table as CSV at path, replacing any existing file.
func (t *Table) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := t.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes the header and rows as CSV.
func (t *Table) Encode(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return err
	}
	return writer.Error()
}
