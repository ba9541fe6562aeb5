package collector

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestIsTradingDay_WeekendsAndFixed(t *testing.T) {
	if IsTradingDay(day(2025, 7, 19)) { // Saturday
		t.Fatal("Saturday should not be a trading day")
	}
	if IsTradingDay(day(2025, 10, 10)) { // National Day, a Friday
		t.Fatal("Oct 10 should not be a trading day")
	}
	if !IsTradingDay(day(2025, 7, 18)) {
		t.Fatal("Friday Jul 18 should be a trading day")
	}
}

func TestDates_InclusiveAscending(t *testing.T) {
	ds := Dates(time.Date(2025, 1, 1, 15, 30, 0, 0, time.UTC), day(2025, 1, 5))
	if len(ds) != 5 {
		t.Fatalf("want 5 dates got %d", len(ds))
	}
	for i := 1; i < len(ds); i++ {
		if !ds[i].After(ds[i-1]) {
			t.Fatal("dates should be strictly increasing")
		}
	}
	if ds[0].Hour() != 0 {
		t.Fatalf("dates should be calendar dates, got %v", ds[0])
	}
	if got := Dates(day(2025, 1, 5), day(2025, 1, 1)); got != nil {
		t.Fatalf("reversed range should be empty, got %v", got)
	}
}
