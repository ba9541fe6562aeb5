package models

import (
	"strings"
	"time"
)

// SeriesRow is one persisted row of a merged series.
//
// Fields:
//   - Symbol: qualified symbol the row belongs to (e.g., "2330.TW").
//   - TradeDate: calendar date of the price row.
//   - Seq: position among rows sharing the same date; non-zero only when an
//     auxiliary source held several rows for that date.
//   - Values: every merged column except the date, keyed by label.
//
// swagger:model SeriesRow
type SeriesRow struct {
	Symbol    string          `json:"symbol" example:"2330.TW"`
	TradeDate time.Time       `json:"trade_date" example:"2025-07-14T00:00:00Z"`
	Seq       int             `json:"seq" example:"0"`
	Values    map[string]Cell `json:"values"`
}

// SeriesRows converts a merged table into persisted rows. dateColumn names
// the date key; rows without a date are skipped.
func SeriesRows(symbol string, t *Table, dateColumn string) []SeriesRow {
	if t.Empty() || !t.HasColumn(dateColumn) {
		return nil
	}
	out := make([]SeriesRow, 0, t.Len())
	seq := map[int64]int{}
	for r := range t.Rows {
		d := t.Get(r, dateColumn)
		if !d.Time.Valid {
			continue
		}
		day := CalendarDate(d.Time.Time)
		row := SeriesRow{
			Symbol:    symbol,
			TradeDate: day,
			Seq:       seq[day.Unix()],
			Values:    make(map[string]Cell, len(t.Columns)-1),
		}
		seq[day.Unix()]++
		for _, c := range t.Columns {
			if c == dateColumn {
				continue
			}
			row.Values[c] = t.Get(r, c)
		}
		out = append(out, row)
	}
	return out
}

// FetchLogEntry records one symbol written by a fetch run.
//
// swagger:model FetchLogEntry
type FetchLogEntry struct {
	RunID     string     `json:"run_id"`
	Symbol    string     `json:"symbol" example:"2330.TW"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	RowCount  int        `json:"row_count"`
	Filename  string     `json:"filename"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Label returns "symbol [start..end]" for log lines.
func (e FetchLogEntry) Label() string {
	end := "latest"
	if e.EndDate != nil {
		end = e.EndDate.Format(DateLayout)
	}
	return strings.Join([]string{e.Symbol, " [", e.StartDate.Format(DateLayout), "..", end, "]"}, "")
}
