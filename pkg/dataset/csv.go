package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// MissingToken is the cell text used for missing values in CSV files.
const MissingToken = "NA"

// CSVOptions controls CSV parsing.
type CSVOptions struct {
	Name          string          `json:"name"`           // table name
	Comma         rune            `json:"comma"`          // field separator, ',' when zero
	MissingTokens []string        `json:"missing_tokens"` // extra tokens treated as missing
	Kinds         map[string]Kind `json:"kinds"`          // per-column kind overrides
}

// ReadCSV parses a headered CSV into a table. A column is numeric when every
// non-missing cell parses as a float, categorical otherwise; Kinds overrides
// the inference per column.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: empty input")
	}
	header := records[0]
	rows := records[1:]

	missing := map[string]bool{MissingToken: true, "": true}
	for _, tok := range opts.MissingTokens {
		missing[tok] = true
	}

	t := NewTable(opts.Name)
	for ci, name := range header {
		cells := make([]string, len(rows))
		for ri, rec := range rows {
			cells[ri] = rec[ci]
		}
		kind, forced := opts.Kinds[name]
		if !forced {
			kind = inferKind(cells, missing)
		}
		col, err := buildColumn(name, kind, cells, missing)
		if err != nil {
			return nil, err
		}
		if err := t.Add(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteCSV renders the table with a header row. Missing cells are written as
// MissingToken.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rows := t.Rows()
	rec := make([]string, t.Cols())
	for i := 0; i < rows; i++ {
		for ci, c := range t.Columns {
			rec[ci] = c.Label(i)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func inferKind(cells []string, missing map[string]bool) Kind {
	for _, cell := range cells {
		if missing[cell] {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return Categorical
		}
	}
	// All-missing columns default to numeric.
	return Numeric
}

func buildColumn(name string, kind Kind, cells []string, missing map[string]bool) (*Column, error) {
	if kind == Categorical {
		labels := make([]string, len(cells))
		for i, cell := range cells {
			if missing[cell] {
				labels[i] = MissingToken
				continue
			}
			labels[i] = cell
		}
		return NewCategorical(name, labels), nil
	}
	values := make([]float64, len(cells))
	col := NewNumeric(name, values)
	for i, cell := range cells {
		if missing[cell] {
			col.SetMissing(i)
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: %q is not numeric: %w", name, i, cell, err)
		}
		col.SetValue(i, v)
	}
	return col, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
