package models

import (
	"strconv"
	"time"

	"github.com/guregu/null/v6"
	jsoniter "github.com/json-iterator/go"
)

// DateLayout is the calendar-date layout used in files and API payloads.
const DateLayout = "2006-01-02"

const dateTimeLayout = "2006-01-02 15:04:05-07:00"

// Cell is one nullable value of a table. At most one of Num, Text and Time is valid;
// a Cell with none valid is null.
type Cell struct {
	Num  null.Float
	Text null.String
	Time null.Time
}

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{Num: null.FloatFrom(f)} }

// Text returns a text cell.
func Text(s string) Cell { return Cell{Text: null.StringFrom(s)} }

// Time returns a date/time cell.
func Time(t time.Time) Cell { return Cell{Time: null.TimeFrom(t)} }

// Null returns a null cell.
func Null() Cell { return Cell{} }

// FloatCell converts a nullable float into a cell.
func FloatCell(f null.Float) Cell { return Cell{Num: f} }

// IsNull reports whether the cell carries no value.
func (c Cell) IsNull() bool {
	return !c.Num.Valid && !c.Text.Valid && !c.Time.Valid
}

// String renders the cell for delimited files: shortest round-trip numbers,
// calendar dates without a time part when the time is midnight, empty for null.
func (c Cell) String() string {
	switch {
	case c.Num.Valid:
		return strconv.FormatFloat(c.Num.Float64, 'f', -1, 64)
	case c.Time.Valid:
		return FormatTime(c.Time.Time)
	case c.Text.Valid:
		return c.Text.String
	default:
		return ""
	}
}

// FormatTime renders midnight values as dates and anything else with a clock and offset.
func FormatTime(t time.Time) string {
	if h, m, s := t.Clock(); h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format(dateTimeLayout)
}

// MarshalJSON emits a number, a string or null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch {
	case c.Num.Valid:
		return jsoniter.Marshal(c.Num.Float64)
	case c.Time.Valid:
		return jsoniter.Marshal(FormatTime(c.Time.Time))
	case c.Text.Valid:
		return jsoniter.Marshal(c.Text.String)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a number, a string or null. Strings stay text.
func (c *Cell) UnmarshalJSON(b []byte) error {
	var v any
	if err := jsoniter.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*c = Null()
	case float64:
		*c = Number(x)
	case string:
		*c = Text(x)
	default:
		*c = Text(string(b))
	}
	return nil
}

// CalendarDate returns t's calendar date (as read in t's location) at UTC midnight,
// which makes dates from different sources comparable and usable as map keys.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
