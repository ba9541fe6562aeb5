package app

import (
	"context"
	"fmt"

	"github.com/guttosm/twpulse/config"
	"github.com/guttosm/twpulse/internal/collector"
	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/pipeline"
	"github.com/guttosm/twpulse/internal/price"
	"github.com/guttosm/twpulse/internal/publish"
	"github.com/guttosm/twpulse/internal/storage"
	"github.com/guttosm/twpulse/internal/twse"
)

// FetchDeps selects the optional collaborators of a fetch run.
type FetchDeps struct {
	Persist  bool // open PostgreSQL and store merged series
	Publish  bool // upload artifacts to S3
	Progress bool // log one line per collected date
}

// publisherCtor is an indirection for unit testing.
var publisherCtor = func(ctx context.Context, o publish.Options) (pipeline.Publisher, error) {
	return publish.NewS3Publisher(ctx, o)
}

// BuildRunner assembles the fetch pipeline from cfg. The database is opened
// only when deps.Persist is set and the S3 client only when deps.Publish is set.
func BuildRunner(ctx context.Context, cfg config.Config, deps FetchDeps) (*pipeline.Runner, func(), error) {
	prices := price.NewClient(cfg.Fetch.PriceBaseURL, cfg.Fetch.Timeout, cfg.Fetch.PriceWorkers)

	tw := twse.NewClient(cfg.Fetch.TWSEBaseURL, cfg.Fetch.Timeout, twse.WithRateLimit(cfg.Fetch.TWSERatePerSec))
	fetchers := map[models.Kind]collector.PageFetcher{}
	for _, k := range []models.Kind{models.KindInstitutional, models.KindDaytrade, models.KindMarketFlows} {
		fetchers[k] = tw.Page(k)
	}
	coll := collector.New(fetchers,
		collector.WithRetry(cfg.Fetch.Retry, cfg.Fetch.RetryWait),
		collector.WithProgress(deps.Progress),
	)

	opts := []pipeline.Option{}
	cleanup := func() {}

	if deps.Persist {
		db, err := postgresOpener(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		opts = append(opts, pipeline.WithStore(storage.NewSeriesRepository(db)))
		cleanup = func() { _ = db.Close() }
	}

	if deps.Publish {
		pub, err := publisherCtor(ctx, publish.Options{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithPublisher(pub))
	}

	return pipeline.NewRunner(prices, coll, opts...), cleanup, nil
}
