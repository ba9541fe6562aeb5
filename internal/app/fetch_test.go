package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guttosm/twpulse/config"
	"github.com/guttosm/twpulse/internal/pipeline"
	"github.com/guttosm/twpulse/internal/publish"
	"github.com/guttosm/twpulse/internal/writer"
)

const chartTSMC = `{"chart":{"result":[{"meta":{"symbol":"2330.TW","exchangeTimezoneName":"Asia/Taipei","gmtoffset":28800},
"timestamp":[1752454800,1752541200],
"indicators":{"quote":[{"open":[1000,1010],"high":[1020,1030],"low":[990,1000],"close":[1010,1020],"volume":[30000,40000]}],
"adjclose":[{"adjclose":[1010,1020]}]}}],"error":null}}`

type nopPublisher struct{}

func (nopPublisher) Publish(_ context.Context, files []string) ([]string, error) { return files, nil }

func testConfig(priceURL string) config.Config {
	return config.Config{Fetch: config.FetchConfig{
		PriceBaseURL:   priceURL,
		TWSEBaseURL:    "http://127.0.0.1:1",
		Timeout:        time.Second,
		Retry:          0,
		TWSERatePerSec: 0,
		PriceWorkers:   1,
	}}
}

func TestBuildRunner_PriceOnlyRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chartTSMC))
	}))
	defer srv.Close()

	runner, cleanup, err := BuildRunner(context.Background(), testConfig(srv.URL), FetchDeps{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer cleanup()

	dir := t.TempDir()
	end := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	sum, err := runner.Run(context.Background(), pipeline.Options{
		Symbols:   []string{"2330.TW"},
		Start:     time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
		End:       &end,
		Interval:  "1d",
		Format:    writer.FormatCSV,
		OutputDir: dir,
		UseCase:   "personal",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := filepath.Join(dir, "2330.TW_20250714_20250715.csv")
	if len(sum.Files) != 1 || sum.Files[0] != want {
		t.Fatalf("files=%v", sum.Files)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}

func TestBuildRunner_PersistOpensDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	mock.ExpectClose()

	old := postgresOpener
	postgresOpener = func(config.Config) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { postgresOpener = old })

	runner, cleanup, err := BuildRunner(context.Background(), testConfig(""), FetchDeps{Persist: true})
	if err != nil || runner == nil {
		t.Fatalf("build: runner=%v err=%v", runner, err)
	}
	cleanup()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("db not closed: %v", err)
	}
}

func TestBuildRunner_PersistOpenFailure(t *testing.T) {
	old := postgresOpener
	postgresOpener = func(config.Config) (*sql.DB, error) { return nil, errors.New("refused") }
	t.Cleanup(func() { postgresOpener = old })

	if _, _, err := BuildRunner(context.Background(), testConfig(""), FetchDeps{Persist: true}); err == nil {
		t.Fatalf("expected error when the database is unreachable")
	}
}

func TestBuildRunner_Publisher(t *testing.T) {
	var got publish.Options
	old := publisherCtor
	t.Cleanup(func() { publisherCtor = old })

	cfg := testConfig("")
	cfg.S3 = config.S3Config{Bucket: "b", Prefix: "p", Region: "ap-northeast-1"}

	publisherCtor = func(_ context.Context, o publish.Options) (pipeline.Publisher, error) {
		got = o
		return nopPublisher{}, nil
	}
	if _, cleanup, err := BuildRunner(context.Background(), cfg, FetchDeps{Publish: true}); err != nil {
		t.Fatalf("build: %v", err)
	} else {
		cleanup()
	}
	if got.Bucket != "b" || got.Prefix != "p" || got.Region != "ap-northeast-1" {
		t.Fatalf("publisher options not forwarded: %+v", got)
	}

	publisherCtor = func(context.Context, publish.Options) (pipeline.Publisher, error) {
		return nil, errors.New("no bucket")
	}
	if _, _, err := BuildRunner(context.Background(), cfg, FetchDeps{Publish: true}); err == nil {
		t.Fatalf("expected publisher error")
	}
}
