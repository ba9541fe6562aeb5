// Package merge joins a price table with TWSE institutional and day-trade
// statistics by calendar date.
package merge

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/fault"
	"github.com/guttosm/twpulse/internal/symbols"
)

// DateColumn is the date key of price and merged tables.
const DateColumn = "Date"

// Derived ratio columns.
const (
	ForeignNetRatio     = "foreign_net_ratio"
	DaytradeVolumeRatio = "daytrade_volume_ratio"
)

const source = "merge"

// Exact code labels, highest priority first.
var codeColumns = []string{"code", "證券代號", "stock_code", "Code", "symbol"}

// Date labels looked up on auxiliary tables, highest priority first.
var auxDateColumns = []string{"date", "Date", "日期"}

// Result is a merged table plus the advisory events raised while building it.
type Result struct {
	Table       *models.Table
	Diagnostics models.Diagnostics
}

type auxSource struct {
	name   string
	table  *models.Table
	suffix string
}

// Merge left-joins inst and daytrade rows for symbol onto price by calendar
// date. Price rows are never dropped; a price row repeats once per matching
// auxiliary row when an auxiliary table holds duplicates for a date. Either
// auxiliary table may be nil or empty.
func Merge(price, inst, daytrade *models.Table, symbol string) (*Result, error) {
	res := &Result{}
	df, err := dateKeyed(price)
	if err != nil {
		return nil, err
	}

	code := symbols.Bare(symbol)
	for _, aux := range []auxSource{
		{name: string(models.KindInstitutional), table: inst, suffix: "_inst"},
		{name: string(models.KindDaytrade), table: daytrade, suffix: "_dt"},
	} {
		if aux.table.Empty() {
			continue
		}
		sub := subset(aux, code, symbol, &res.Diagnostics)
		df = join(df, sub, aux, symbol, &res.Diagnostics)
	}

	addRatios(df)
	res.Table = df
	return res, nil
}

// dateKeyed copies price with its Date column normalized to calendar dates. A
// date-like index is materialized as the leading Date column.
func dateKeyed(price *models.Table) (*models.Table, error) {
	if price == nil {
		return nil, fault.New(fault.KindMergePrecondition, "merge.Merge", "price table is nil")
	}
	df := price.Clone()
	switch {
	case df.HasColumn(DateColumn):
		df.MapColumn(DateColumn, dateCell)
	case df.HasIndex() && strings.Contains(strings.ToLower(df.IndexName), "date"):
		cells := make([]models.Cell, len(df.Index))
		for i, ts := range df.Index {
			cells[i] = models.Time(models.CalendarDate(ts))
		}
		df.InsertColumn(0, DateColumn, cells)
	default:
		return nil, fault.New(fault.KindMergePrecondition, "merge.Merge", "cannot locate date column in price table")
	}
	df.Index, df.IndexName = nil, ""
	return df, nil
}

// codeColumn finds the stock-code column of an auxiliary header.
func codeColumn(cols []string) (string, bool) {
	for _, want := range codeColumns {
		for _, c := range cols {
			if c == want {
				return c, true
			}
		}
	}
	for _, c := range cols {
		if strings.Contains(strings.ToLower(c), "code") || strings.Contains(c, "代號") {
			return c, true
		}
	}
	return "", false
}

func auxDateColumn(t *models.Table) (string, bool) {
	for _, c := range auxDateColumns {
		if t.HasColumn(c) {
			return c, true
		}
	}
	return "", false
}

// subset keeps the rows of aux whose code equals code.
func subset(aux auxSource, code, symbol string, diags *models.Diagnostics) *models.Table {
	t := aux.table
	col, ok := codeColumn(t.Columns)
	if !ok {
		diags.Add(models.LevelWarn, source, symbol, aux.name+" table has no code column; nothing merged")
		return t.Filter(func(int) bool { return false })
	}
	sub := t.Filter(func(r int) bool {
		return strings.TrimSpace(t.Get(r, col).String()) == code
	})
	if dc, ok := auxDateColumn(sub); ok {
		sub.MapColumn(dc, dateCell)
	}
	return sub
}

// join left-outer-joins sub onto df on DateColumn.
func join(df, sub *models.Table, aux auxSource, symbol string, diags *models.Diagnostics) *models.Table {
	dc, hasDate := auxDateColumn(sub)

	byDay := map[int64][]int{}
	if hasDate {
		for r := range sub.Rows {
			if d, ok := calendarDate(sub.Get(r, dc)); ok {
				byDay[d.Unix()] = append(byDay[d.Unix()], r)
			}
		}
	} else {
		diags.Add(models.LevelWarn, source, symbol, aux.name+" table has no date column; nothing merged")
	}

	// Columns brought over, and their labels in the merged table.
	var keep []string
	var labels []string
	taken := map[string]bool{}
	for _, c := range df.Columns {
		taken[c] = true
	}
	for _, c := range sub.Columns {
		if c == models.ColumnName || (hasDate && c == dc) {
			continue
		}
		label := c
		if taken[label] {
			label = uniqueLabel(c+aux.suffix, taken)
		}
		taken[label] = true
		keep = append(keep, c)
		labels = append(labels, label)
	}

	out := &models.Table{Columns: append(append([]string(nil), df.Columns...), labels...)}
	var fanout []time.Time
	for r, row := range df.Rows {
		left := make([]models.Cell, len(df.Columns))
		copy(left, row)
		var matches []int
		if d, ok := calendarDate(df.Get(r, DateColumn)); ok {
			matches = byDay[d.Unix()]
			if len(matches) > 1 {
				fanout = append(fanout, d)
			}
		}
		if len(matches) == 0 {
			out.AppendRow(left...)
			continue
		}
		for _, m := range matches {
			merged := make([]models.Cell, 0, len(out.Columns))
			merged = append(merged, left...)
			for _, c := range keep {
				merged = append(merged, sub.Get(m, c))
			}
			out.AppendRow(merged...)
		}
	}
	if len(fanout) > 0 {
		diags.Add(models.LevelWarn, source, symbol,
			fmt.Sprintf("%s has several rows per date; %d price rows repeated", aux.name, len(fanout)), fanout...)
	}
	return out
}

func uniqueLabel(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for n := 2; ; n++ {
		if l := base + "_" + strconv.Itoa(n); !taken[l] {
			return l
		}
	}
}

// addRatios appends foreign_net_ratio and daytrade_volume_ratio when the table
// has a populated volume column.
func addRatios(t *models.Table) {
	vol := ""
	for _, c := range t.Columns {
		if l := strings.ToLower(c); l == "volume" || l == "vol" {
			vol = c
			break
		}
	}
	if vol == "" {
		return
	}
	populated := false
	for _, c := range t.Column(vol) {
		if c.Num.Valid {
			populated = true
			break
		}
	}
	if !populated {
		return
	}
	for _, r := range []struct{ num, out string }{
		{"foreign_net", ForeignNetRatio},
		{"daytrade_volume", DaytradeVolumeRatio},
	} {
		if !t.HasColumn(r.num) {
			continue
		}
		cells := make([]models.Cell, t.Len())
		for i := range t.Rows {
			cells[i] = ratio(t.Get(i, r.num), t.Get(i, vol))
		}
		t.AddColumn(r.out, cells)
	}
}

func ratio(num, den models.Cell) models.Cell {
	if !num.Num.Valid || !den.Num.Valid || den.Num.Float64 == 0 {
		return models.Null()
	}
	return models.Number(num.Num.Float64 / den.Num.Float64)
}
