package bench

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Phase columns shared by every benchmark CSV.
const (
	ColTraining     = "t_training"
	ColKeyGen       = "t_keygen"
	ColEncryption   = "t_input_encryption"
	ColComputation  = "t_computation"
	ColDecryption   = "t_decryption"
	ColTestAccuracy = "test_accuracy"
)

// PhaseColumns are the stacked segments of a runtime chart, bottom to top.
var PhaseColumns = []string{ColKeyGen, ColEncryption, ColComputation, ColDecryption}

// MLColumns is the column layout of the neural network benchmarks.
var MLColumns = []string{ColTraining, ColKeyGen, ColEncryption, ColComputation, ColDecryption, ColTestAccuracy}

// Record maps a column name to the value measured in one repetition.
type Record map[string]float64

// Table is an ordered set of records with a fixed column order.
type Table struct {
	Columns []string
	Rows    []Record
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Append adds one record.
func (t *Table) Append(r Record) {
	t.Rows = append(t.Rows, r)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether name is a declared column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the values of one column, or false if it is not declared.
func (t *Table) Column(name string) ([]float64, bool) {
	if !t.HasColumn(name) {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		v, ok := r[name]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out, true
}

// WriteCSV writes a header and one line per row. Missing values are written as 0.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, c := range t.Columns {
			v, ok := row[c]
			if !ok || math.IsNaN(v) {
				v = 0
			}
			record[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile replaces the file at path with the CSV encoding of t.
func (t *Table) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV parses a benchmark CSV. An unnamed leading index column is dropped
// and empty cells are read as NaN.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty csv")
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	offset := 0
	if len(header) > 0 && strings.TrimSpace(header[0]) == "" {
		offset = 1
	}
	t := NewTable()
	for _, h := range header[offset:] {
		t.Columns = append(t.Columns, strings.TrimSpace(h))
	}

	line := 1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}
		if len(fields)-offset != len(t.Columns) {
			return nil, fmt.Errorf("at line %d, expected %d values, got %d", line, len(t.Columns), len(fields)-offset)
		}
		rec := make(Record, len(t.Columns))
		for i, c := range t.Columns {
			s := strings.TrimSpace(fields[i+offset])
			if s == "" {
				rec[c] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("at line %d, column %s: %w", line, c, err)
			}
			rec[c] = v
		}
		t.Append(rec)
	}
	return t, nil
}
