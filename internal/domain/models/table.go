package models

import (
	"slices"
	"time"
)

// Table is an ordered set of labelled columns over rows of cells. A table may carry
// a time index (IndexName/Index) aligned with its rows, which is how date-indexed
// price series travel before the index is materialized as a column.
type Table struct {
	IndexName string
	Index     []time.Time
	Columns   []string
	Rows      [][]Cell
}

// NewTable returns an empty table with the given header.
func NewTable(columns ...string) *Table {
	return &Table{Columns: slices.Clone(columns)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table is nil or has no rows.
func (t *Table) Empty() bool { return t.Len() == 0 }

// HasIndex reports whether the table carries a time index aligned with its rows.
func (t *Table) HasIndex() bool {
	return t != nil && len(t.Index) > 0 && len(t.Index) == len(t.Rows)
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	return slices.Index(t.Columns, name)
}

// HasColumn reports whether name is a column label.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Column returns a copy of the cells of name, or nil when absent.
func (t *Table) Column(name string) []Cell {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	out := make([]Cell, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = cellAt(row, i)
	}
	return out
}

// Get returns the cell at (row, name); null when the column is absent.
func (t *Table) Get(row int, name string) Cell {
	i := t.ColumnIndex(name)
	if i < 0 {
		return Null()
	}
	return cellAt(t.Rows[row], i)
}

// Set assigns the cell at (row, name). Unknown columns are ignored.
func (t *Table) Set(row int, name string, c Cell) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return
	}
	t.Rows[row] = pad(t.Rows[row], len(t.Columns))
	t.Rows[row][i] = c
}

// AppendRow adds a row, padding or truncating it to the header width.
func (t *Table) AppendRow(cells ...Cell) {
	row := make([]Cell, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// AddColumn appends a column. Missing cells are null; extra cells are ignored.
func (t *Table) AddColumn(name string, cells []Cell) {
	t.Columns = append(t.Columns, name)
	for r := range t.Rows {
		c := Null()
		if r < len(cells) {
			c = cells[r]
		}
		t.Rows[r] = append(pad(t.Rows[r], len(t.Columns)-1), c)
	}
}

// InsertColumn places a column at position pos.
func (t *Table) InsertColumn(pos int, name string, cells []Cell) {
	pos = max(0, min(pos, len(t.Columns)))
	t.Columns = slices.Insert(t.Columns, pos, name)
	for r := range t.Rows {
		c := Null()
		if r < len(cells) {
			c = cells[r]
		}
		t.Rows[r] = slices.Insert(pad(t.Rows[r], len(t.Columns)-1), pos, c)
	}
}

// RenameColumns relabels columns found in mapping; other labels are untouched.
func (t *Table) RenameColumns(mapping map[string]string) {
	for i, c := range t.Columns {
		if to, ok := mapping[c]; ok {
			t.Columns[i] = to
		}
	}
}

// DropColumns removes the named columns when present.
func (t *Table) DropColumns(names ...string) {
	for _, n := range names {
		i := t.ColumnIndex(n)
		if i < 0 {
			continue
		}
		t.Columns = slices.Delete(t.Columns, i, i+1)
		for r, row := range t.Rows {
			if i < len(row) {
				t.Rows[r] = slices.Delete(row, i, i+1)
			}
		}
	}
}

// MapColumn replaces every cell of name with fn(cell).
func (t *Table) MapColumn(name string, fn func(Cell) Cell) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return
	}
	for r := range t.Rows {
		t.Rows[r] = pad(t.Rows[r], len(t.Columns))
		t.Rows[r][i] = fn(t.Rows[r][i])
	}
}

// Filter returns a new table with the rows for which keep returns true.
// The index, when present, stays aligned.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := &Table{IndexName: t.IndexName, Columns: slices.Clone(t.Columns)}
	indexed := t.HasIndex()
	for r, row := range t.Rows {
		if !keep(r) {
			continue
		}
		out.Rows = append(out.Rows, slices.Clone(pad(row, len(t.Columns))))
		if indexed {
			out.Index = append(out.Index, t.Index[r])
		}
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		IndexName: t.IndexName,
		Index:     slices.Clone(t.Index),
		Columns:   slices.Clone(t.Columns),
		Rows:      make([][]Cell, len(t.Rows)),
	}
	for r, row := range t.Rows {
		out.Rows[r] = slices.Clone(pad(row, len(t.Columns)))
	}
	return out
}

// Concat stacks tables vertically. The header is the union of all headers in
// first-seen order; cells for columns a table lacks are null. Indexes are dropped.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if !slices.Contains(out.Columns, c) {
				out.Columns = append(out.Columns, c)
			}
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		pos := make([]int, len(t.Columns))
		for i, c := range t.Columns {
			pos[i] = slices.Index(out.Columns, c)
		}
		for _, row := range t.Rows {
			dst := make([]Cell, len(out.Columns))
			for i := range t.Columns {
				dst[pos[i]] = cellAt(row, i)
			}
			out.Rows = append(out.Rows, dst)
		}
	}
	return out
}

func cellAt(row []Cell, i int) Cell {
	if i < len(row) {
		return row[i]
	}
	return Null()
}

func pad(row []Cell, width int) []Cell {
	for len(row) < width {
		row = append(row, Null())
	}
	return row
}
