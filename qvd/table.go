package qvd

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/INLOpen/qvd/core"
	"github.com/INLOpen/qvd/header"
	"github.com/INLOpen/qvd/symbol"
)

// Table is an in-memory QVD table: named columns and row-major cells. Cells
// are nil, int64, float64 or string, or a symbol.Symbol for a dual value
// whose display text is not the plain rendering of its number (a month name,
// a formatted date). Such cells are written back unchanged.
type Table struct {
	columns []string
	rows    [][]any

	// Header is the header the table was loaded with, or nil for a table
	// built in memory. Save carries its pass-through metadata forward.
	Header *header.TableHeader
}

// NewTable validates columns and rows and normalizes every cell to the value
// it would have after a write and read back.
func NewTable(columns []string, rows [][]any) (*Table, error) {
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		if j, dup := seen[c]; dup {
			return nil, core.NewValidationError("duplicate column name", map[string]any{
				core.CtxField: c,
				core.CtxIndex: i,
				"first":       j,
			})
		}
		seen[c] = i
	}

	norm := make([][]any, len(rows))
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, core.NewValidationError("row width does not match column count", map[string]any{
				core.CtxRecord: r,
				core.CtxLength: len(row),
				core.CtxMax:    len(columns),
			})
		}
		out := make([]any, len(row))
		for c, v := range row {
			out[c] = normalizeCell(v)
		}
		norm[r] = out
	}
	return &Table{columns: append([]string(nil), columns...), rows: norm}, nil
}

func normalizeCell(v any) any {
	s, ok := symbol.FromValue(v)
	if !ok {
		return nil
	}
	return s.Value()
}

// FromMap builds a table from column name to values. columns fixes the
// column order; when it is empty the map keys are used in sorted order.
// Every listed column must be present and all columns must be equally long.
func FromMap(data map[string][]any, columns []string) (*Table, error) {
	if len(columns) == 0 {
		columns = make([]string, 0, len(data))
		for k := range data {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	n := -1
	for _, c := range columns {
		vals, ok := data[c]
		if !ok {
			available := make([]string, 0, len(data))
			for k := range data {
				available = append(available, k)
			}
			sort.Strings(available)
			return nil, core.NewValidationError("column missing from data", map[string]any{
				core.CtxField:     c,
				core.CtxAvailable: available,
			})
		}
		if n >= 0 && len(vals) != n {
			return nil, core.NewValidationError("columns have different lengths", map[string]any{
				core.CtxField:  c,
				core.CtxLength: len(vals),
				"expected":     n,
			})
		}
		n = len(vals)
	}
	if n < 0 {
		n = 0
	}

	rows := make([][]any, n)
	for r := range rows {
		row := make([]any, len(columns))
		for c, name := range columns {
			row[c] = data[name][r]
		}
		rows[r] = row
	}
	return NewTable(columns, rows)
}

// ToMap returns the table as column name to values.
func (t *Table) ToMap() map[string][]any {
	out := make(map[string][]any, len(t.columns))
	for c, name := range t.columns {
		vals := make([]any, len(t.rows))
		for r, row := range t.rows {
			vals[r] = row[c]
		}
		out[name] = vals
	}
	return out
}

// Columns returns a copy of the column names.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// Rows returns the row-major cells. The slices are shared with the table.
func (t *Table) Rows() [][]any { return t.rows }

// Shape returns [rows, columns].
func (t *Table) Shape() [2]int { return [2]int{len(t.rows), len(t.columns)} }

// NumRows and Cell let the symbol-table encoder read the table directly.
func (t *Table) NumRows() int { return len(t.rows) }
func (t *Table) Cell(row, col int) any { return t.rows[row][col] }

// Head returns the first n rows. n larger than the table returns all rows.
func (t *Table) Head(n int) *Table {
	n = clamp(n, len(t.rows))
	return t.slice(0, n)
}

// Tail returns the last n rows.
func (t *Table) Tail(n int) *Table {
	n = clamp(n, len(t.rows))
	return t.slice(len(t.rows)-n, len(t.rows))
}

func clamp(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}

func (t *Table) slice(from, to int) *Table {
	return &Table{columns: t.columns, rows: t.rows[from:to:to], Header: t.Header}
}

// Row returns a copy of row i.
func (t *Table) Row(i int) ([]any, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, core.NewValidationError("row index out of range", map[string]any{
			core.CtxIndex: i,
			core.CtxMin:   0,
			core.CtxMax:   len(t.rows) - 1,
		})
	}
	return append([]any(nil), t.rows[i]...), nil
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]any, error) {
	c, err := t.columnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[c]
	}
	return out, nil
}

// NullRows returns the row numbers where the named column is null.
func (t *Table) NullRows(name string) (*roaring.Bitmap, error) {
	c, err := t.columnIndex(name)
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	for r, row := range t.rows {
		if row[c] == nil {
			bm.Add(uint32(r))
		}
	}
	return bm, nil
}

// NullCount returns how many cells of the named column are null.
func (t *Table) NullCount(name string) (int, error) {
	bm, err := t.NullRows(name)
	if err != nil {
		return 0, err
	}
	return int(bm.GetCardinality()), nil
}

func (t *Table) columnIndex(name string) (int, error) {
	for i, c := range t.columns {
		if c == name {
			return i, nil
		}
	}
	return -1, core.NewValidationError("unknown column", map[string]any{
		core.CtxField:     name,
		core.CtxAvailable: t.Columns(),
	})
}
