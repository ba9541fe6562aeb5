package price

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/fault"
	"github.com/guttosm/twpulse/internal/logger"
)

// FetchBatch downloads every requested symbol concurrently and aligns them on a
// shared index. More than one symbol yields a frame grouped by symbol; a single
// symbol yields plain fields. Symbols that fail are logged and left out; the
// call fails only when nothing at all comes back.
func (c *Client) FetchBatch(ctx context.Context, req Request) (*models.PriceFrame, error) {
	if len(req.Symbols) == 0 {
		return nil, fault.New(fault.KindValidation, "price.FetchBatch", "no symbols requested")
	}

	tables := make([]*models.Table, len(req.Symbols))
	var mu sync.Mutex
	var failures []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, sym := range req.Symbols {
		g.Go(func() error {
			t, err := c.Fetch(gctx, sym, req)
			if err != nil {
				logger.L().Warn().Err(err).Str("symbol", sym).Msg("price download failed")
				mu.Lock()
				failures = append(failures, sym)
				mu.Unlock()
				return nil
			}
			tables[i] = t
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame := align(req.Symbols, tables, len(req.Symbols) > 1)
	if frame.Empty() {
		return nil, fault.New(fault.KindFetch, "price.FetchBatch",
			"no data returned (possibly invalid symbols, date span, or rate limit)")
	}
	if len(failures) > 0 {
		logger.L().Warn().Strs("symbols", failures).Msg("some symbols returned no price data")
	}
	return frame, nil
}

// align outer-joins per-symbol tables on their index. Daily bars join on the
// calendar date so sessions from different exchanges share a row; intraday
// bars join on the exact instant. Gaps are null.
func align(symbols []string, tables []*models.Table, multi bool) *models.PriceFrame {
	f := &models.PriceFrame{}
	key := func(ts time.Time) int64 { return ts.UnixNano() }
	for _, t := range tables {
		if !t.Empty() {
			f.IndexName = t.IndexName
			break
		}
	}
	if f.IndexName != "Datetime" {
		key = func(ts time.Time) int64 { return models.CalendarDate(ts).Unix() }
	}

	seen := map[int64]struct{}{}
	for _, t := range tables {
		if t.Empty() {
			continue
		}
		for _, ts := range t.Index {
			k := key(ts)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			if f.IndexName != "Datetime" {
				ts = models.CalendarDate(ts)
			}
			f.Index = append(f.Index, ts)
		}
	}
	slices.SortFunc(f.Index, func(a, b time.Time) int { return a.Compare(b) })
	pos := make(map[int64]int, len(f.Index))
	for i, ts := range f.Index {
		pos[key(ts)] = i
	}

	f.Values = make([][]models.Cell, len(f.Index))
	for i, t := range tables {
		if t.Empty() {
			continue
		}
		sym := ""
		if multi {
			sym = symbols[i]
		}
		base := len(f.Columns)
		for _, col := range t.Columns {
			f.Columns = append(f.Columns, models.FieldKey{Symbol: sym, Field: col})
		}
		for r := range f.Values {
			f.Values[r] = append(f.Values[r], make([]models.Cell, len(t.Columns))...)
		}
		for r, ts := range t.Index {
			dst := f.Values[pos[key(ts)]]
			copy(dst[base:], t.Rows[r])
		}
	}
	return f
}

// SelectColumns narrows the frame to the requested fields, preserving request
// order inside each symbol group. Unknown fields are ignored.
func SelectColumns(f *models.PriceFrame, columns []string) *models.PriceFrame {
	return f.Select(columns)
}
