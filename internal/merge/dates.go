package merge

import (
	"strconv"
	"strings"
	"time"

	"github.com/guttosm/twpulse/internal/domain/models"
)

var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"20060102",
}

// calendarDate reduces a cell to its calendar date. Text is parsed with the
// common layouts plus ROC-era dates such as "114/07/14"; anything else is null.
func calendarDate(c models.Cell) (time.Time, bool) {
	switch {
	case c.Time.Valid:
		return models.CalendarDate(c.Time.Time), true
	case c.Text.Valid:
		return parseDate(c.Text.String)
	default:
		return time.Time{}, false
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.CalendarDate(t), true
		}
	}
	return parseROC(s)
}

func parseROC(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false
		}
		n[i] = v
	}
	if n[0] <= 0 || n[0] >= 1000 || n[1] < 1 || n[1] > 12 || n[2] < 1 || n[2] > 31 {
		return time.Time{}, false
	}
	t := time.Date(n[0]+1911, time.Month(n[1]), n[2], 0, 0, 0, 0, time.UTC)
	if t.Day() != n[2] {
		return time.Time{}, false
	}
	return t, true
}

func dateCell(c models.Cell) models.Cell {
	if d, ok := calendarDate(c); ok {
		return models.Time(d)
	}
	return models.Null()
}
