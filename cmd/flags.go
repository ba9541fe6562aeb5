package main

import (
	"strings"
	"time"

	"github.com/guttosm/twpulse/config"
	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/fault"
	"github.com/guttosm/twpulse/internal/pipeline"
	"github.com/guttosm/twpulse/internal/price"
	"github.com/guttosm/twpulse/internal/symbols"
	"github.com/guttosm/twpulse/internal/writer"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	modeFetch = "fetch"
	modeAPI   = "api"
)

// cliOptions holds the raw command line.
type cliOptions struct {
	Mode string
	Port string

	Symbols     []string
	StartDate   string
	EndDate     string
	Interval    string
	FileFormat  string
	OutputPath  string
	Columns     []string
	NoAutoAdj   bool
	NoAutoTW    bool
	ShowSummary bool
	Progress    bool

	WithInstitutional bool
	WithDaytrade      bool
	WithMarketFlows   bool

	Retry     int
	RetryWait time.Duration
	UseCase   string
	Persist   bool
	Publish   bool
}

// flagKeys maps flags onto the viper keys they override.
var flagKeys = map[string]string{
	"port":        "SERVER_PORT",
	"output-path": "OUTPUT_DIR",
	"retry":       "FETCH_RETRY",
	"retry-wait":  "FETCH_RETRY_WAIT",
}

func newFlagSet(o *cliOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("twpulse", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVar(&o.Mode, "mode", modeFetch, "execution mode: fetch or api")
	fs.StringVar(&o.Port, "port", "", "port for api mode (default SERVER_PORT)")

	fs.StringArrayVarP(&o.Symbols, "symbols", "s", nil, "symbols to fetch; repeatable, comma or space separated (alias --company-code)")
	fs.StringVar(&o.StartDate, "start-date", "", "first date, YYYY-MM-DD (required)")
	fs.StringVar(&o.EndDate, "end-date", "", "last date inclusive, YYYY-MM-DD (default: latest)")
	fs.StringVar(&o.Interval, "interval", "1d", "bar interval: "+strings.Join(price.Intervals, ", "))
	fs.StringVar(&o.FileFormat, "file-format", string(writer.FormatCSV), "artifact format: csv or parquet")
	fs.StringVar(&o.OutputPath, "output-path", "", "artifact directory (default OUTPUT_DIR)")
	fs.StringSliceVar(&o.Columns, "columns", nil, "price fields to keep, e.g. Open,Close,Volume")
	fs.BoolVar(&o.NoAutoAdj, "no-auto-adjust", false, "keep raw OHLC and the Adj Close column")
	fs.BoolVar(&o.NoAutoTW, "no-auto-tw", false, "do not append .TW to bare numeric codes")
	fs.BoolVar(&o.ShowSummary, "show-summary", false, "print a run summary to stdout")
	fs.BoolVar(&o.Progress, "progress", false, "log progress per collected date")

	fs.BoolVar(&o.WithInstitutional, "with-institutional", false, "collect TWSE T86 institutional trading and merge it")
	fs.BoolVar(&o.WithDaytrade, "with-daytrade", false, "collect TWSE TWTB4U day-trading and merge it")
	fs.BoolVar(&o.WithMarketFlows, "with-market-flows", false, "collect TWSE BFI82U market flows as a separate artifact")

	fs.IntVar(&o.Retry, "retry", 0, "extra attempts per TWSE date (default FETCH_RETRY)")
	fs.DurationVar(&o.RetryWait, "retry-wait", 0, "wait between TWSE attempts (default FETCH_RETRY_WAIT)")
	fs.StringVar(&o.UseCase, "use-case", "personal", "intended use: personal, research or commercial")
	fs.BoolVar(&o.Persist, "persist", false, "store merged series in PostgreSQL")
	fs.BoolVar(&o.Publish, "publish", false, "upload artifacts to S3_BUCKET")

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		switch name {
		case "company-code", "company_code":
			name = "symbols"
		}
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	return fs
}

// parseArgs parses args without touching global state.
func parseArgs(args []string) (*cliOptions, *pflag.FlagSet, error) {
	o := &cliOptions{}
	fs := newFlagSet(o)
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	// trailing positionals are treated as extra symbols
	o.Symbols = append(o.Symbols, fs.Args()...)
	return o, fs, nil
}

// bindFlags lets explicitly set flags override configuration, then refreshes AppConfig.
func bindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			return err
		}
	}
	config.Refresh()
	return nil
}

// fetchOptions validates the command line against cfg and builds the run options.
func fetchOptions(o *cliOptions, cfg config.Config) (pipeline.Options, error) {
	const op = "cli"
	syms := symbols.Normalize(symbols.Split(o.Symbols), !o.NoAutoTW)
	if len(syms) == 0 {
		return pipeline.Options{}, fault.New(fault.KindValidation, op, "at least one symbol is required (--symbols)")
	}
	if o.StartDate == "" {
		return pipeline.Options{}, fault.New(fault.KindValidation, op, "--start-date is required")
	}
	start, err := time.Parse(models.DateLayout, o.StartDate)
	if err != nil {
		return pipeline.Options{}, fault.New(fault.KindValidation, op, "invalid --start-date %q, expected YYYY-MM-DD", o.StartDate)
	}
	var end *time.Time
	if o.EndDate != "" {
		e, err := time.Parse(models.DateLayout, o.EndDate)
		if err != nil {
			return pipeline.Options{}, fault.New(fault.KindValidation, op, "invalid --end-date %q, expected YYYY-MM-DD", o.EndDate)
		}
		if e.Before(start) {
			return pipeline.Options{}, fault.New(fault.KindValidation, op, "--end-date %s is before --start-date %s", o.EndDate, o.StartDate)
		}
		end = &e
	}
	if !price.ValidInterval(o.Interval) {
		return pipeline.Options{}, fault.New(fault.KindValidation, op, "unsupported --interval %q", o.Interval)
	}
	format, err := writer.ParseFormat(o.FileFormat)
	if err != nil {
		return pipeline.Options{}, err
	}
	if o.Publish && cfg.S3.Bucket == "" {
		return pipeline.Options{}, fault.New(fault.KindValidation, op, "--publish requires S3_BUCKET")
	}

	var cols []string
	for _, c := range o.Columns {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}

	return pipeline.Options{
		Symbols:           syms,
		Start:             start,
		End:               end,
		Interval:          o.Interval,
		AutoAdjust:        !o.NoAutoAdj,
		Columns:           cols,
		Format:            format,
		OutputDir:         cfg.Output.Dir,
		WithInstitutional: o.WithInstitutional,
		WithDaytrade:      o.WithDaytrade,
		WithMarketFlows:   o.WithMarketFlows,
		UseCase:           strings.ToLower(strings.TrimSpace(o.UseCase)),
		Persist:           o.Persist,
		Publish:           o.Publish,
	}, nil
}
