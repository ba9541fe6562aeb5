package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/guttosm/twpulse/internal/collector"
	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/fault"
	"github.com/guttosm/twpulse/internal/price"
	"github.com/guttosm/twpulse/internal/writer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day0 = time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	day1 = day0.AddDate(0, 0, 1)
)

type fakePrices struct {
	frame *models.PriceFrame
	err   error
	calls int
	req   price.Request
}

func (f *fakePrices) FetchBatch(_ context.Context, req price.Request) (*models.PriceFrame, error) {
	f.calls++
	f.req = req
	return f.frame, f.err
}

type fakeCollector struct {
	tables map[models.Kind]*models.Table
	dates  []time.Time
	kinds  []models.Kind
}

func (f *fakeCollector) Collect(_ context.Context, kind models.Kind, dates []time.Time) (*collector.Result, error) {
	f.kinds = append(f.kinds, kind)
	f.dates = dates
	t := f.tables[kind]
	res := &collector.Result{Kind: kind, Table: t}
	if t.Empty() {
		res.Table = models.NewTable()
		res.Missing = dates
		res.Diagnostics.Add(models.LevelWarn, "collector", "", "no data")
	}
	return res, nil
}

type fakeStore struct {
	rows    map[string][]models.SeriesRow
	entries []models.FetchLogEntry
	err     error
}

func (f *fakeStore) ReplaceSeries(sym string, _ time.Time, _ *time.Time, rows []models.SeriesRow) error {
	if f.err != nil {
		return f.err
	}
	if f.rows == nil {
		f.rows = map[string][]models.SeriesRow{}
	}
	f.rows[sym] = rows
	return nil
}

func (f *fakeStore) RecordFetch(e models.FetchLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

type fakePublisher struct{ files []string }

func (f *fakePublisher) Publish(_ context.Context, files []string) ([]string, error) {
	f.files = files
	out := make([]string, len(files))
	for i, p := range files {
		out[i] = "s3://bucket/" + filepath.Base(p)
	}
	return out, nil
}

func priceFrame(indexName string) *models.PriceFrame {
	return &models.PriceFrame{
		IndexName: indexName,
		Index:     []time.Time{day0, day1},
		Columns:   []models.FieldKey{{Field: "Close"}, {Field: "Volume"}},
		Values: [][]models.Cell{
			{models.Number(1050), models.Number(1000)},
			{models.Number(1060), models.Number(2000)},
		},
	}
}

func auxTables() map[models.Kind]*models.Table {
	inst := models.NewTable("date", "code", "foreign_net")
	inst.AppendRow(models.Time(day0), models.Text("2330"), models.Number(200))
	inst.AppendRow(models.Time(day0), models.Text("2317"), models.Number(50))
	dt := models.NewTable("date", "code", "daytrade_volume")
	dt.AppendRow(models.Time(day1), models.Text("2330"), models.Number(100))
	mf := models.NewTable("date", "item", "net")
	mf.AppendRow(models.Time(day0), models.Text("Foreign"), models.Number(1e9))
	return map[models.Kind]*models.Table{
		models.KindInstitutional: inst,
		models.KindDaytrade:      dt,
		models.KindMarketFlows:   mf,
	}
}

func baseOptions(dir string) Options {
	end := day1
	return Options{
		Symbols:    []string{"2330.TW"},
		Start:      day0,
		End:        &end,
		Interval:   "1d",
		AutoAdjust: true,
		Format:     writer.FormatCSV,
		OutputDir:  dir,
		UseCase:    "research",
	}
}

func TestRun_FullPipeline(t *testing.T) {
	dir := t.TempDir()
	prices := &fakePrices{frame: priceFrame("Date")}
	coll := &fakeCollector{tables: auxTables()}
	store := &fakeStore{}
	pub := &fakePublisher{}
	r := NewRunner(prices, coll, WithStore(store), WithPublisher(pub))

	o := baseOptions(dir)
	o.WithInstitutional, o.WithDaytrade, o.WithMarketFlows = true, true, true
	o.Persist, o.Publish = true, true

	sum, err := r.Run(context.Background(), o)
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "2330.TW_20250714_20250715.csv"),
		filepath.Join(dir, "2330.TW_MERGED_20250714_20250715.csv"),
		filepath.Join(dir, "MARKET_BFI82U_20250714_20250715.csv"),
	}
	assert.Equal(t, want, sum.Files)
	assert.Len(t, sum.Uploaded, 3)
	assert.Equal(t, want, pub.files)
	assert.Equal(t, []models.Kind{models.KindInstitutional, models.KindDaytrade, models.KindMarketFlows}, coll.kinds)
	assert.Len(t, coll.dates, 2)
	assert.Equal(t, 2, sum.Rows["2330.TW"])

	merged, err := os.ReadFile(want[1])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(merged)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Close,Volume,code,foreign_net,code_dt,daytrade_volume,foreign_net_ratio,daytrade_volume_ratio", lines[0])
	assert.Equal(t, "2025-07-14,1050,1000,2330,200,,,0.2,", lines[1])
	assert.Equal(t, "2025-07-15,1060,2000,,,2330,100,,0.05", lines[2])

	require.Len(t, store.rows["2330.TW"], 2)
	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, sum.RunID, e.RunID)
	assert.Equal(t, 2, e.RowCount)
	assert.Equal(t, "2330.TW_MERGED_20250714_20250715.csv", e.Filename)
	assert.Equal(t, 2, sum.Persisted)
	assert.True(t, prices.req.AutoAdjust)
}

func TestRun_PolicyRejectsBeforeFetch(t *testing.T) {
	prices := &fakePrices{frame: priceFrame("Date")}
	r := NewRunner(prices, &fakeCollector{})
	o := baseOptions(t.TempDir())
	o.UseCase = "commercial"

	_, err := r.Run(context.Background(), o)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindPolicy))
	assert.Equal(t, 5, fault.ExitCode(err))
	assert.Zero(t, prices.calls)
}

func TestRun_Validation(t *testing.T) {
	before := day0.AddDate(0, 0, -1)
	cases := []struct {
		name   string
		mutate func(*Options)
		runner *Runner
	}{
		{name: "no symbols", mutate: func(o *Options) { o.Symbols = nil }},
		{name: "no start", mutate: func(o *Options) { o.Start = time.Time{} }},
		{name: "end before start", mutate: func(o *Options) { o.End = &before }},
		{name: "bad interval", mutate: func(o *Options) { o.Interval = "2d" }},
		{name: "persist without store", mutate: func(o *Options) { o.Persist = true }},
		{name: "publish without bucket", mutate: func(o *Options) { o.Publish = true }},
		{
			name:   "aux without collector",
			mutate: func(o *Options) { o.WithDaytrade = true },
			runner: NewRunner(&fakePrices{}, nil),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prices := &fakePrices{frame: priceFrame("Date")}
			r := tc.runner
			if r == nil {
				r = NewRunner(prices, &fakeCollector{})
			}
			o := baseOptions(t.TempDir())
			tc.mutate(&o)
			_, err := r.Run(context.Background(), o)
			if !fault.Is(err, fault.KindValidation) {
				t.Fatalf("want validation error, got %v", err)
			}
			if prices.calls != 0 {
				t.Fatalf("price source should not be called")
			}
		})
	}
}

func TestRun_PriceFetchFailureIsFetchKind(t *testing.T) {
	r := NewRunner(&fakePrices{err: errors.New("connection reset")}, nil)
	_, err := r.Run(context.Background(), baseOptions(t.TempDir()))
	require.Error(t, err)
	assert.Equal(t, 3, fault.ExitCode(err))
}

func TestRun_MergePreconditionSkipsSymbol(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(&fakePrices{frame: priceFrame("Timestamp")}, &fakeCollector{tables: auxTables()})
	o := baseOptions(dir)
	o.WithInstitutional = true

	sum, err := r.Run(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "2330.TW_20250714_20250715.csv")}, sum.Files)
	assert.NotContains(t, sum.Rows, "2330.TW")
	errs := 0
	for _, d := range sum.Diagnostics {
		if d.Level == models.LevelError && d.Symbol == "2330.TW" {
			errs++
		}
	}
	assert.Equal(t, 1, errs)
}

func TestRun_MissingAuxiliaryStillMerges(t *testing.T) {
	dir := t.TempDir()
	coll := &fakeCollector{tables: map[models.Kind]*models.Table{}}
	r := NewRunner(&fakePrices{frame: priceFrame("Date")}, coll, WithClock(func() time.Time { return day1.Add(15 * time.Hour) }))
	o := baseOptions(dir)
	o.End = nil
	o.WithInstitutional = true

	sum, err := r.Run(context.Background(), o)
	require.NoError(t, err)
	assert.Len(t, coll.dates, 2, "open end closes at today")
	assert.Equal(t, 2, sum.Rows["2330.TW"])
	assert.Len(t, sum.Missing[models.KindInstitutional], 2)
	assert.Contains(t, sum.Files, filepath.Join(dir, "2330.TW_MERGED_20250714_latest.csv"))
}

func TestRun_PersistFailureIsOutputKind(t *testing.T) {
	r := NewRunner(&fakePrices{frame: priceFrame("Date")}, nil, WithStore(&fakeStore{err: errors.New("db down")}))
	o := baseOptions(t.TempDir())
	o.Persist = true
	_, err := r.Run(context.Background(), o)
	require.Error(t, err)
	assert.Equal(t, 4, fault.ExitCode(err))
}

func TestRun_PersistOnlyRecordsPriceArtifact(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{}
	r := NewRunner(&fakePrices{frame: priceFrame("Date")}, nil, WithStore(store))
	o := baseOptions(dir)
	o.Persist = true

	sum, err := r.Run(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "2330.TW_20250714_20250715.csv")}, sum.Files)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "2330.TW_20250714_20250715.csv", store.entries[0].Filename)
	assert.Len(t, store.rows["2330.TW"], 2)
}

func TestRun_ForeignSymbolNotedWithAuxiliary(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(&fakePrices{frame: priceFrame("Date")}, &fakeCollector{tables: auxTables()})
	o := baseOptions(dir)
	o.Symbols = []string{"AAPL"}
	o.WithInstitutional = true

	sum, err := r.Run(context.Background(), o)
	require.NoError(t, err)
	assert.Contains(t, sum.Files, filepath.Join(dir, "AAPL_MERGED_20250714_20250715.csv"))
	noted := false
	for _, d := range sum.Diagnostics {
		if d.Symbol == "AAPL" && d.Level == models.LevelInfo && strings.Contains(d.Message, "not TWSE listed") {
			noted = true
		}
	}
	assert.True(t, noted, "diagnostics=%v", sum.Diagnostics)
}

func TestSummary_Print(t *testing.T) {
	s := newSummary("run-1")
	s.Files = []string{"data/a.csv"}
	s.Rows["2330.TW"] = 2
	s.Missing[models.KindDaytrade] = []time.Time{day0}
	s.Diagnostics.Add(models.LevelWarn, "collector", "", "no data")

	var buf bytes.Buffer
	require.NoError(t, s.Print(&buf))
	out := buf.String()
	for _, want := range []string{"run-1", "data/a.csv", "2330.TW", "2 rows", "daytrade", "20250714", "1 warnings, 0 errors"} {
		assert.Contains(t, out, want)
	}
}
