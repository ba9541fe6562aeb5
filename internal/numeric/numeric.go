// Package numeric turns locale formatted cells (thousands separators, percent
// signs) into nullable numbers. Malformed input degrades to null, never to an error.
package numeric

import (
	"strings"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"github.com/guttosm/twpulse/internal/domain/models"
)

var hundred = decimal.NewFromInt(100)

// Parse converts s into a nullable float. Commas are removed anywhere; a
// trailing "%" is stripped and the value divided by 100.
//
//	Parse("1,234") == 1234
//	Parse("12.5%") == 0.125
//	Parse("N/A") is null
func Parse(s string) null.Float {
	d, pct, ok := parse(s)
	if !ok {
		return null.Float{}
	}
	if pct {
		d = d.Div(hundred)
	}
	return null.FloatFrom(d.InexactFloat64())
}

// ParsePercentPoints reads a value expressed in percent points, with or without
// the "%" sign, and returns it as a fraction: "12.5" and "12.5%" both give 0.125.
func ParsePercentPoints(s string) null.Float {
	d, _, ok := parse(s)
	if !ok {
		return null.Float{}
	}
	return null.FloatFrom(d.Div(hundred).InexactFloat64())
}

// cleaner drops thousands separators and folds the fullwidth minus TWSE uses
// in some reports.
var cleaner = strings.NewReplacer(",", "", "，", "", "－", "-")

func parse(s string) (decimal.Decimal, bool, bool) {
	s = strings.TrimSpace(cleaner.Replace(s))
	pct := strings.HasSuffix(s, "%")
	if pct {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return decimal.Zero, false, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, false
	}
	return d, pct, true
}

// Cell coerces a table cell: numbers are kept, text is parsed, anything else is null.
func Cell(c models.Cell) models.Cell {
	switch {
	case c.Num.Valid:
		return c
	case c.Text.Valid:
		return models.FloatCell(Parse(c.Text.String))
	default:
		return models.Null()
	}
}

// CoerceColumns coerces each listed column of t in place. Columns the table
// does not have are skipped.
func CoerceColumns(t *models.Table, columns []string) {
	for _, c := range columns {
		t.MapColumn(c, Cell)
	}
}
