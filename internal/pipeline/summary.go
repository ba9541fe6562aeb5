package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guttosm/twpulse/internal/domain/models"
)

// Summary describes what a run produced.
type Summary struct {
	RunID       string
	Files       []string
	Uploaded    []string
	Rows        map[string]int // merged rows per symbol
	Persisted   int
	Missing     map[models.Kind][]time.Time
	Diagnostics models.Diagnostics
}

func newSummary(runID string) *Summary {
	return &Summary{
		RunID:   runID,
		Rows:    map[string]int{},
		Missing: map[models.Kind][]time.Time{},
	}
}

// Print writes a human-readable report of the run to w.
func (s *Summary) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", s.RunID)
	for _, f := range s.Files {
		fmt.Fprintf(tw, "file\t%s\n", f)
	}
	for _, u := range s.Uploaded {
		fmt.Fprintf(tw, "uploaded\t%s\n", u)
	}

	syms := make([]string, 0, len(s.Rows))
	for sym := range s.Rows {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	for _, sym := range syms {
		fmt.Fprintf(tw, "merged\t%s\t%d rows\n", sym, s.Rows[sym])
	}
	if s.Persisted > 0 {
		fmt.Fprintf(tw, "persisted\t%d rows\n", s.Persisted)
	}

	kinds := make([]string, 0, len(s.Missing))
	for k := range s.Missing {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ds := s.Missing[models.Kind(k)]
		if len(ds) == 0 {
			continue
		}
		fmt.Fprintf(tw, "missing\t%s\t%s\n", k, joinDates(ds))
	}

	var warn, errs int
	for _, d := range s.Diagnostics {
		switch d.Level {
		case models.LevelWarn:
			warn++
		case models.LevelError:
			errs++
		}
	}
	fmt.Fprintf(tw, "diagnostics\t%d warnings, %d errors\n", warn, errs)
	return tw.Flush()
}

func joinDates(ds []time.Time) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.Format("20060102")
	}
	return strings.Join(parts, ",")
}
