package dataset

import (
	"fmt"
	"math"
)

// Kind distinguishes numeric columns from categorical ones.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is a single variable. Numeric columns keep observations in Values,
// with NaN at missing positions. Categorical columns keep level codes in
// Values (an index into Levels), again NaN where missing. Missing is the
// authoritative mask for both kinds.
type Column struct {
	Name    string    `json:"name"`
	Kind    Kind      `json:"kind"`
	Values  []float64 `json:"values"`
	Levels  []string  `json:"levels,omitempty"`
	Missing []bool    `json:"missing"`
}

// NewNumeric builds a numeric column. NaN entries are recorded as missing.
func NewNumeric(name string, values []float64) *Column {
	c := &Column{
		Name:    name,
		Kind:    Numeric,
		Values:  append([]float64(nil), values...),
		Missing: make([]bool, len(values)),
	}
	for i, v := range c.Values {
		if math.IsNaN(v) {
			c.Missing[i] = true
		}
	}
	return c
}

// NewCategorical builds a categorical column from labels, assigning level
// codes in first-appearance order. Labels equal to the missing token "NA" or
// the empty string are recorded as missing.
func NewCategorical(name string, labels []string) *Column {
	c := &Column{
		Name:    name,
		Kind:    Categorical,
		Values:  make([]float64, len(labels)),
		Missing: make([]bool, len(labels)),
	}
	index := map[string]int{}
	for i, lab := range labels {
		if lab == "" || lab == MissingToken {
			c.Values[i] = math.NaN()
			c.Missing[i] = true
			continue
		}
		code, ok := index[lab]
		if !ok {
			code = len(c.Levels)
			index[lab] = code
			c.Levels = append(c.Levels, lab)
		}
		c.Values[i] = float64(code)
	}
	return c
}

// NewCategoricalCodes builds a categorical column from pre-assigned level
// codes. Codes outside [0, len(levels)) are rejected.
func NewCategoricalCodes(name string, codes []int, levels []string) (*Column, error) {
	c := &Column{
		Name:    name,
		Kind:    Categorical,
		Values:  make([]float64, len(codes)),
		Levels:  append([]string(nil), levels...),
		Missing: make([]bool, len(codes)),
	}
	for i, code := range codes {
		if code < 0 || code >= len(levels) {
			return nil, fmt.Errorf("column %s: level code %d out of range [0,%d)", name, code, len(levels))
		}
		c.Values[i] = float64(code)
	}
	return c, nil
}

// Len returns the number of rows in the column.
func (c *Column) Len() int { return len(c.Values) }

// IsMissing reports whether row i is missing.
func (c *Column) IsMissing(i int) bool { return c.Missing[i] }

// SetMissing marks row i as missing.
func (c *Column) SetMissing(i int) {
	c.Missing[i] = true
	c.Values[i] = math.NaN()
}

// SetValue writes a value at row i and clears its missing flag.
func (c *Column) SetValue(i int, v float64) {
	c.Values[i] = v
	c.Missing[i] = false
}

// Label returns the string form of row i: the level label for categorical
// columns, the formatted value for numeric ones, MissingToken when missing.
func (c *Column) Label(i int) string {
	if c.Missing[i] {
		return MissingToken
	}
	if c.Kind == Categorical {
		return c.Levels[int(c.Values[i])]
	}
	return formatFloat(c.Values[i])
}

// LevelIndex returns the code for a level label, or -1 if absent.
func (c *Column) LevelIndex(label string) int {
	for i, lev := range c.Levels {
		if lev == label {
			return i
		}
	}
	return -1
}

// Observed returns the non-missing values in row order.
func (c *Column) Observed() []float64 {
	out := make([]float64, 0, len(c.Values))
	for i, v := range c.Values {
		if !c.Missing[i] {
			out = append(out, v)
		}
	}
	return out
}

// ObservedIndices returns the row indices with observed values.
func (c *Column) ObservedIndices() []int {
	out := make([]int, 0, len(c.Values))
	for i := range c.Values {
		if !c.Missing[i] {
			out = append(out, i)
		}
	}
	return out
}

// MissingIndices returns the row indices with missing values.
func (c *Column) MissingIndices() []int {
	var out []int
	for i := range c.Values {
		if c.Missing[i] {
			out = append(out, i)
		}
	}
	return out
}

// MissingCount returns the number of missing cells in the column.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

func (c *Column) clone() *Column {
	return &Column{
		Name:    c.Name,
		Kind:    c.Kind,
		Values:  append([]float64(nil), c.Values...),
		Levels:  append([]string(nil), c.Levels...),
		Missing: append([]bool(nil), c.Missing...),
	}
}

// Table is a two-dimensional dataset: rows are observations, columns are
// variables. All columns have the same length.
type Table struct {
	Name    string    `json:"name"`
	Columns []*Column `json:"columns"`
}

// NewTable creates an empty table.
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// Add appends a column, enforcing the common row count.
func (t *Table) Add(c *Column) error {
	if c == nil {
		return fmt.Errorf("table %s: nil column", t.Name)
	}
	if len(c.Values) != len(c.Missing) {
		return fmt.Errorf("column %s: values/missing length mismatch (%d vs %d)", c.Name, len(c.Values), len(c.Missing))
	}
	if len(t.Columns) > 0 && c.Len() != t.Rows() {
		return fmt.Errorf("column %s: %d rows, table %s has %d", c.Name, c.Len(), t.Name, t.Rows())
	}
	if t.Column(c.Name) != nil {
		return fmt.Errorf("table %s: duplicate column %s", t.Name, c.Name)
	}
	t.Columns = append(t.Columns, c)
	return nil
}

// Rows returns the number of observations.
func (t *Table) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// Cols returns the number of variables.
func (t *Table) Cols() int { return len(t.Columns) }

// Column returns the named column, or nil if absent.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// NumericNames returns the names of the numeric columns in order.
func (t *Table) NumericNames() []string {
	var out []string
	for _, c := range t.Columns {
		if c.Kind == Numeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.clone()
	}
	return out
}

// Validate checks structural invariants: uniform column lengths, coherent
// missing masks, and level codes within range.
func (t *Table) Validate() error {
	rows := t.Rows()
	for _, c := range t.Columns {
		if c.Len() != rows {
			return fmt.Errorf("column %s: %d rows, expected %d", c.Name, c.Len(), rows)
		}
		if len(c.Missing) != c.Len() {
			return fmt.Errorf("column %s: missing mask length %d, expected %d", c.Name, len(c.Missing), c.Len())
		}
		for i, v := range c.Values {
			if c.Missing[i] {
				if !math.IsNaN(v) {
					return fmt.Errorf("column %s row %d: missing cell holds value %v", c.Name, i, v)
				}
				continue
			}
			if math.IsNaN(v) {
				return fmt.Errorf("column %s row %d: NaN cell not marked missing", c.Name, i)
			}
			if c.Kind == Categorical {
				code := int(v)
				if float64(code) != v || code < 0 || code >= len(c.Levels) {
					return fmt.Errorf("column %s row %d: level code %v out of range [0,%d)", c.Name, i, v, len(c.Levels))
				}
			}
		}
	}
	return nil
}

// MissingCells counts missing cells across all columns.
func (t *Table) MissingCells() int {
	n := 0
	for _, c := range t.Columns {
		n += c.MissingCount()
	}
	return n
}

// MissingRate returns the fraction of missing cells.
func (t *Table) MissingRate() float64 {
	cells := t.Rows() * t.Cols()
	if cells == 0 {
		return 0
	}
	return float64(t.MissingCells()) / float64(cells)
}

// CompleteRows returns the indices of rows with no missing cell.
func (t *Table) CompleteRows() []int {
	var out []int
	rows := t.Rows()
	for i := 0; i < rows; i++ {
		complete := true
		for _, c := range t.Columns {
			if c.Missing[i] {
				complete = false
				break
			}
		}
		if complete {
			out = append(out, i)
		}
	}
	return out
}

// SelectRows builds a new table containing only the given row indices, in
// the given order.
func (t *Table) SelectRows(idx []int) (*Table, error) {
	rows := t.Rows()
	for _, i := range idx {
		if i < 0 || i >= rows {
			return nil, fmt.Errorf("table %s: row index %d out of range [0,%d)", t.Name, i, rows)
		}
	}
	out := &Table{Name: t.Name, Columns: make([]*Column, len(t.Columns))}
	for ci, c := range t.Columns {
		nc := &Column{
			Name:    c.Name,
			Kind:    c.Kind,
			Values:  make([]float64, len(idx)),
			Levels:  append([]string(nil), c.Levels...),
			Missing: make([]bool, len(idx)),
		}
		for j, i := range idx {
			nc.Values[j] = c.Values[i]
			nc.Missing[j] = c.Missing[i]
		}
		out.Columns[ci] = nc
	}
	return out, nil
}
