// Package pipeline runs one fetch: policy gate, price download, per-symbol
// artifacts, auxiliary TWSE collection, merge, persistence and publishing.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/guttosm/twpulse/internal/collector"
	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/fault"
	"github.com/guttosm/twpulse/internal/logger"
	"github.com/guttosm/twpulse/internal/merge"
	"github.com/guttosm/twpulse/internal/policy"
	"github.com/guttosm/twpulse/internal/price"
	"github.com/guttosm/twpulse/internal/symbols"
	"github.com/guttosm/twpulse/internal/writer"
	"github.com/rs/zerolog"
)

// PriceSource downloads the primary price frame.
type PriceSource interface {
	FetchBatch(ctx context.Context, req price.Request) (*models.PriceFrame, error)
}

// AuxCollector gathers one auxiliary TWSE document over a date range.
type AuxCollector interface {
	Collect(ctx context.Context, kind models.Kind, dates []time.Time) (*collector.Result, error)
}

// SeriesStore persists merged rows and the fetch log.
type SeriesStore interface {
	ReplaceSeries(symbol string, start time.Time, end *time.Time, rows []models.SeriesRow) error
	RecordFetch(entry models.FetchLogEntry) error
}

// Publisher uploads written artifacts and returns their URIs.
type Publisher interface {
	Publish(ctx context.Context, files []string) ([]string, error)
}

// Options describes one run. Symbols are expected already normalized.
type Options struct {
	Symbols    []string
	Start      time.Time
	End        *time.Time
	Interval   string
	AutoAdjust bool
	Columns    []string
	Format     writer.Format
	OutputDir  string

	WithInstitutional bool
	WithDaytrade      bool
	WithMarketFlows   bool

	UseCase string
	Persist bool
	Publish bool
}

func (o Options) auxiliary() bool {
	return o.WithInstitutional || o.WithDaytrade || o.WithMarketFlows
}

// Runner wires the fetch stages together. Store and publisher are optional.
type Runner struct {
	prices    PriceSource
	collector AuxCollector
	store     SeriesStore
	publisher Publisher
	policy    *policy.Policy
	now       func() time.Time
	newID     func() string
	log       zerolog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

func WithStore(s SeriesStore) Option { return func(r *Runner) { r.store = s } }

func WithPublisher(p Publisher) Option { return func(r *Runner) { r.publisher = p } }

func WithPolicy(p *policy.Policy) Option { return func(r *Runner) { r.policy = p } }

// WithClock overrides the clock used to close open-ended ranges.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// NewRunner builds a Runner. coll may be nil when no auxiliary source is ever requested.
func NewRunner(prices PriceSource, coll AuxCollector, opts ...Option) *Runner {
	r := &Runner{
		prices:    prices,
		collector: coll,
		policy:    policy.Default(),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		log:       logger.With("pipeline"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes one fetch. A merge precondition failure only skips the
// affected symbol; every other failure aborts the run with a classified error.
// The summary is returned alongside the error when artifacts were already written.
func (r *Runner) Run(ctx context.Context, o Options) (*Summary, error) {
	if err := r.validate(o); err != nil {
		return nil, err
	}
	sources := []string{policy.SourceYahoo}
	if o.auxiliary() {
		sources = append(sources, policy.SourceTWSE)
	}
	if err := r.policy.Check(o.UseCase, sources...); err != nil {
		return nil, err
	}

	sum := newSummary(r.newID())
	r.log.Info().Str("run_id", sum.RunID).Strs("symbols", o.Symbols).Time("start", o.Start).Msg("fetch started")

	frame, err := r.prices.FetchBatch(ctx, price.Request{
		Symbols:    o.Symbols,
		Start:      o.Start,
		End:        o.End,
		Interval:   o.Interval,
		AutoAdjust: o.AutoAdjust,
	})
	if err != nil {
		if fault.KindOf(err) == fault.KindUnknown && !errors.Is(err, context.Canceled) {
			err = fault.Wrap(fault.KindFetch, "pipeline.Run", err)
		}
		return nil, err
	}
	if len(o.Columns) > 0 {
		frame = price.SelectColumns(frame, o.Columns)
	}

	files, err := writer.WriteSymbolFrames(frame, o.Symbols, o.OutputDir, o.Start, o.End, o.Format)
	sum.Files = append(sum.Files, files...)
	if err != nil {
		return sum, err
	}

	aux, err := r.collectAll(ctx, o, sum)
	if err != nil {
		return sum, err
	}

	for _, sym := range o.Symbols {
		if err := r.mergeSymbol(ctx, o, sym, frame, aux, sum); err != nil {
			return sum, err
		}
	}

	if mf := aux[models.KindMarketFlows]; !mf.Empty() {
		path := filepath.Join(o.OutputDir, writer.MarketFlowsFilename(o.Start, o.End, string(o.Format)))
		if err := writer.WriteTable(mf, path, o.Format); err != nil {
			return sum, err
		}
		sum.Files = append(sum.Files, path)
	}

	if o.Publish {
		uris, err := r.publisher.Publish(ctx, sum.Files)
		sum.Uploaded = uris
		if err != nil {
			return sum, err
		}
	}

	r.report(sum)
	return sum, nil
}

func (r *Runner) validate(o Options) error {
	const op = "pipeline.Run"
	switch {
	case len(o.Symbols) == 0:
		return fault.New(fault.KindValidation, op, "at least one symbol is required")
	case o.Start.IsZero():
		return fault.New(fault.KindValidation, op, "start date is required")
	case o.End != nil && o.End.Before(o.Start):
		return fault.New(fault.KindValidation, op, "end date %s is before start date %s",
			o.End.Format(models.DateLayout), o.Start.Format(models.DateLayout))
	case o.Interval != "" && !price.ValidInterval(o.Interval):
		return fault.New(fault.KindValidation, op, "unsupported interval %q", o.Interval)
	case o.auxiliary() && r.collector == nil:
		return fault.New(fault.KindValidation, op, "auxiliary sources requested without a collector")
	case o.Persist && r.store == nil:
		return fault.New(fault.KindValidation, op, "persistence requested without a database")
	case o.Publish && r.publisher == nil:
		return fault.New(fault.KindValidation, op, "publishing requested without a bucket")
	}
	return nil
}

// collectAll gathers every requested auxiliary document over the run's
// calendar range; an open end closes at today.
func (r *Runner) collectAll(ctx context.Context, o Options, sum *Summary) (map[models.Kind]*models.Table, error) {
	out := map[models.Kind]*models.Table{}
	if !o.auxiliary() {
		return out, nil
	}
	end := models.CalendarDate(r.now())
	if o.End != nil {
		end = *o.End
	}
	dates := collector.Dates(o.Start, end)

	for _, k := range []struct {
		kind models.Kind
		on   bool
	}{
		{models.KindInstitutional, o.WithInstitutional},
		{models.KindDaytrade, o.WithDaytrade},
		{models.KindMarketFlows, o.WithMarketFlows},
	} {
		if !k.on {
			continue
		}
		res, err := r.collector.Collect(ctx, k.kind, dates)
		if err != nil {
			return nil, err
		}
		out[k.kind] = res.Table
		sum.Missing[k.kind] = res.Missing
		sum.Diagnostics = append(sum.Diagnostics, res.Diagnostics...)
	}
	return out, nil
}

// mergeSymbol joins auxiliary rows onto one symbol's prices, writes the
// merged artifact and persists it when asked.
func (r *Runner) mergeSymbol(ctx context.Context, o Options, sym string, frame *models.PriceFrame, aux map[models.Kind]*models.Table, sum *Summary) error {
	if !o.WithInstitutional && !o.WithDaytrade && !o.Persist {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	flat, ok := frame.Flatten(sym)
	if !ok {
		sum.Diagnostics.Add(models.LevelWarn, "pipeline", sym, "no price data returned for symbol")
		return nil
	}

	if (o.WithInstitutional || o.WithDaytrade) && !symbols.IsLocal(sym) {
		sum.Diagnostics.Add(models.LevelInfo, "pipeline", sym, "symbol is not TWSE listed; auxiliary columns stay empty")
	}

	res, err := merge.Merge(flat, aux[models.KindInstitutional], aux[models.KindDaytrade], sym)
	if fault.Is(err, fault.KindMergePrecondition) {
		r.log.Error().Err(err).Str("symbol", sym).Msg("merge skipped")
		sum.Diagnostics.Add(models.LevelError, "pipeline", sym, err.Error())
		return nil
	}
	if err != nil {
		return err
	}
	sum.Diagnostics = append(sum.Diagnostics, res.Diagnostics...)
	sum.Rows[sym] = res.Table.Len()

	filename := writer.Filename(sym, o.Start, o.End, string(o.Format))
	if o.WithInstitutional || o.WithDaytrade {
		filename = filepath.Join(o.OutputDir, writer.MergedFilename(sym, o.Start, o.End))
		if err := writer.WriteTable(res.Table, filename, writer.FormatCSV); err != nil {
			return err
		}
		sum.Files = append(sum.Files, filename)
	}

	if !o.Persist {
		return nil
	}
	rows := models.SeriesRows(sym, res.Table, merge.DateColumn)
	if err := r.store.ReplaceSeries(sym, o.Start, o.End, rows); err != nil {
		return fault.Wrap(fault.KindOutput, "pipeline.persist", err)
	}
	entry := models.FetchLogEntry{
		RunID:     sum.RunID,
		Symbol:    sym,
		StartDate: o.Start,
		EndDate:   o.End,
		RowCount:  len(rows),
		Filename:  filepath.Base(filename),
		FetchedAt: r.now(),
	}
	if err := r.store.RecordFetch(entry); err != nil {
		return fault.Wrap(fault.KindOutput, "pipeline.persist", err)
	}
	sum.Persisted += len(rows)
	r.log.Debug().Str("entry", entry.Label()).Int("rows", len(rows)).Msg("series persisted")
	return nil
}

// report logs diagnostics at their own level.
func (r *Runner) report(sum *Summary) {
	for _, d := range sum.Diagnostics {
		lvl := zerolog.InfoLevel
		switch d.Level {
		case models.LevelWarn:
			lvl = zerolog.WarnLevel
		case models.LevelError:
			lvl = zerolog.ErrorLevel
		}
		r.log.WithLevel(lvl).Str("source", d.Source).Str("symbol", d.Symbol).Int("dates", len(d.Dates)).Msg(d.Message)
	}
	r.log.Info().Str("run_id", sum.RunID).Int("files", len(sum.Files)).Int("persisted", sum.Persisted).Msg("fetch finished")
}
