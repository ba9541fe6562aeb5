package models

import (
	"slices"
	"time"
)

// FieldKey addresses one column of a price frame. Symbol is empty for
// single-level frames.
type FieldKey struct {
	Symbol string
	Field  string
}

// PriceFrame is a date-indexed price table whose columns are grouped by symbol
// (two-level) or plain fields (single-level). Values is row-major and aligned
// with Index.
type PriceFrame struct {
	IndexName string
	Index     []time.Time
	Columns   []FieldKey
	Values    [][]Cell
}

// Empty reports whether the frame has no rows or no columns.
func (f *PriceFrame) Empty() bool {
	return f == nil || len(f.Index) == 0 || len(f.Columns) == 0
}

// MultiLevel reports whether columns are grouped by symbol.
func (f *PriceFrame) MultiLevel() bool {
	for _, c := range f.Columns {
		if c.Symbol != "" {
			return true
		}
	}
	return false
}

// Symbols lists the symbol level in first-seen order.
func (f *PriceFrame) Symbols() []string {
	var out []string
	for _, c := range f.Columns {
		if c.Symbol != "" && !slices.Contains(out, c.Symbol) {
			out = append(out, c.Symbol)
		}
	}
	return out
}

// Flatten returns the single-level table for symbol with the frame's index
// attached. A single-level frame is returned whole for any symbol; a two-level
// frame without the symbol reports false.
func (f *PriceFrame) Flatten(symbol string) (*Table, bool) {
	if f == nil {
		return nil, false
	}
	multi := f.MultiLevel()
	var pos []int
	t := &Table{IndexName: f.IndexName, Index: slices.Clone(f.Index)}
	for i, c := range f.Columns {
		if multi && c.Symbol != symbol {
			continue
		}
		pos = append(pos, i)
		t.Columns = append(t.Columns, c.Field)
	}
	if multi && len(pos) == 0 {
		return nil, false
	}
	t.Rows = make([][]Cell, len(f.Values))
	for r, row := range f.Values {
		out := make([]Cell, len(pos))
		for j, i := range pos {
			out[j] = cellAt(row, i)
		}
		t.Rows[r] = out
	}
	return t, true
}

// Select keeps the requested fields, in request order within each symbol group.
// Fields a group lacks are skipped. An empty request returns the frame unchanged.
func (f *PriceFrame) Select(fields []string) *PriceFrame {
	if len(fields) == 0 || f == nil {
		return f
	}
	groups := f.Symbols()
	if !f.MultiLevel() {
		groups = []string{""}
	}
	var keep []int
	for _, sym := range groups {
		for _, field := range fields {
			if i := slices.Index(f.Columns, FieldKey{Symbol: sym, Field: field}); i >= 0 {
				keep = append(keep, i)
			}
		}
	}
	out := &PriceFrame{IndexName: f.IndexName, Index: slices.Clone(f.Index)}
	for _, i := range keep {
		out.Columns = append(out.Columns, f.Columns[i])
	}
	out.Values = make([][]Cell, len(f.Values))
	for r, row := range f.Values {
		sel := make([]Cell, len(keep))
		for j, i := range keep {
			sel[j] = cellAt(row, i)
		}
		out.Values[r] = sel
	}
	return out
}
