package collector

import (
	"time"

	"github.com/guttosm/twpulse/internal/domain/models"
)

// Fixed-date market holidays observed by TWSE. Lunar holidays move every year
// and are left to the exchange, which answers "no data" for them.
var fixedHolidays = map[string]struct{}{
	"01-01": {}, // Founding of the Republic
	"02-28": {}, // Peace Memorial Day
	"04-04": {}, // Children's Day
	"05-01": {}, // Labor Day
	"10-10": {}, // National Day
}

// Dates returns every calendar date from start to end inclusive, ascending.
// An end before start yields nil.
func Dates(start, end time.Time) []time.Time {
	d := models.CalendarDate(start)
	last := models.CalendarDate(end)
	var out []time.Time
	for !d.After(last) {
		out = append(out, d)
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// IsTradingDay reports whether d is a candidate TWSE session.
func IsTradingDay(d time.Time) bool {
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, closed := fixedHolidays[d.Format("01-02")]
	return !closed
}
