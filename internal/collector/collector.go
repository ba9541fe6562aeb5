package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/localize"
	"github.com/guttosm/twpulse/internal/logger"
	"github.com/guttosm/twpulse/internal/numeric"
	"github.com/sethvargo/go-retry"
)

// PageFetcher returns the remote page for one date. A nil table with a nil error
// means the source has no data for that date.
type PageFetcher func(ctx context.Context, date time.Time) (*models.Table, error)

// Result is the outcome of one collection run.
type Result struct {
	Kind        models.Kind
	Table       *models.Table
	Fetched     []time.Time
	Missing     []time.Time
	Diagnostics models.Diagnostics
}

// Collector pulls one page per date for an auxiliary source and stacks them.
type Collector struct {
	fetchers  map[models.Kind]PageFetcher
	retries   int
	retryWait time.Duration
	progress  bool
}

// Option customizes a Collector.
type Option func(*Collector)

// WithRetry sets the number of extra attempts per date and the constant wait
// between them.
func WithRetry(retries int, wait time.Duration) Option {
	return func(c *Collector) {
		c.retries = max(0, retries)
		c.retryWait = wait
	}
}

// WithProgress logs one line per date.
func WithProgress(on bool) Option {
	return func(c *Collector) { c.progress = on }
}

// New builds a collector over the given page fetchers.
func New(fetchers map[models.Kind]PageFetcher, opts ...Option) *Collector {
	c := &Collector{fetchers: fetchers, retries: 3, retryWait: time.Second}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Collect fetches kind for every date in order. Dates without data, non-trading
// dates and dates that keep failing after retries are recorded as missing; only
// context cancellation aborts the run.
func (c *Collector) Collect(ctx context.Context, kind models.Kind, dates []time.Time) (*Result, error) {
	fetch, ok := c.fetchers[kind]
	if !ok {
		return nil, fmt.Errorf("collector: no fetcher for %s", kind)
	}
	log := logger.With("collector")
	res := &Result{Kind: kind}
	var pages []*models.Table

	for i, d := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d = models.CalendarDate(d)
		if !IsTradingDay(d) {
			res.Missing = append(res.Missing, d)
			continue
		}
		if c.progress {
			log.Info().Str("kind", string(kind)).Str("date", d.Format(models.DateLayout)).
				Int("n", i+1).Int("total", len(dates)).Msg("fetching")
		}

		page, err := c.fetchWithRetry(ctx, fetch, d)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			log.Warn().Err(err).Str("kind", string(kind)).Str("date", d.Format(models.DateLayout)).Msg("fetch failed after retries")
			res.Diagnostics.Add(models.LevelWarn, string(kind), "", "fetch failed: "+err.Error(), d)
			res.Missing = append(res.Missing, d)
		case page.Empty():
			res.Missing = append(res.Missing, d)
		default:
			pages = append(pages, page)
			res.Fetched = append(res.Fetched, d)
		}
	}

	if len(res.Missing) > 0 {
		res.Diagnostics.Add(models.LevelWarn, string(kind), "",
			fmt.Sprintf("no %s data for dates: %s", kind, joinDates(res.Missing)), res.Missing...)
	}

	res.Table = finalize(kind, pages)
	return res, nil
}

func (c *Collector) fetchWithRetry(ctx context.Context, fetch PageFetcher, d time.Time) (*models.Table, error) {
	wait := c.retryWait
	if wait <= 0 {
		wait = time.Nanosecond
	}
	backoff := retry.WithMaxRetries(uint64(c.retries), retry.NewConstant(wait))

	var page *models.Table
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		p, err := fetch(ctx, d)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		page = p
		return nil
	})
	return page, err
}

// finalize stacks the pages, then localizes and coerces the combined table once.
func finalize(kind models.Kind, pages []*models.Table) *models.Table {
	if len(pages) == 0 {
		return models.NewTable()
	}
	t := localize.Apply(kind, models.Concat(pages...))
	numeric.CoerceColumns(t, localize.NumericColumns(kind))

	if kind == models.KindDaytrade {
		if !t.HasColumn(models.ColumnCode) && t.HasColumn("code_dt") {
			t.RenameColumns(map[string]string{"code_dt": models.ColumnCode})
		}
		if t.HasColumn(ratioPctColumn) {
			src := t.Column(ratioPctColumn)
			ratio := make([]models.Cell, len(src))
			for r, c := range src {
				ratio[r] = percentPoints(c)
			}
			if t.HasColumn(ratioColumn) {
				t.DropColumns(ratioColumn)
			}
			t.AddColumn(ratioColumn, ratio)
		}
	}
	return t
}

const (
	ratioPctColumn = "daytrade_ratio_pct"
	ratioColumn    = "daytrade_ratio"
)

func percentPoints(c models.Cell) models.Cell {
	switch {
	case c.Num.Valid:
		return models.Number(c.Num.Float64 / 100)
	case c.Text.Valid:
		return models.FloatCell(numeric.ParsePercentPoints(c.Text.String))
	default:
		return models.Null()
	}
}

func joinDates(ds []time.Time) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.Format(models.DateLayout)
	}
	return strings.Join(parts, ", ")
}
