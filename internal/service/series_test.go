package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/fault"
)

type stubRepo struct {
	rows   []models.SeriesRow
	last   *models.FetchLogEntry
	err    error
	gotSym string
	calls  int
}

func (s *stubRepo) ReplaceSeries(_ string, _ time.Time, _ *time.Time, _ []models.SeriesRow) error {
	return nil
}
func (s *stubRepo) GetSeries(sym string, _ *time.Time, _ *time.Time) ([]models.SeriesRow, error) {
	s.calls++
	s.gotSym = sym
	return s.rows, s.err
}
func (s *stubRepo) RecordFetch(_ models.FetchLogEntry) error { return nil }
func (s *stubRepo) LastFetch(sym string) (*models.FetchLogEntry, error) {
	s.gotSym = sym
	return s.last, s.err
}

func TestSeriesService_TableDriven(t *testing.T) {
	d1 := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	d0 := d1.AddDate(0, 0, -1)

	cases := []struct {
		name     string
		repo     *stubRepo
		symbol   string
		start    *time.Time
		end      *time.Time
		wantSym  string
		wantKind fault.Kind
		wantErr  bool
	}{
		{
			name:    "success qualifies bare code",
			repo:    &stubRepo{rows: []models.SeriesRow{{Symbol: "2330.TW", TradeDate: d1}}},
			symbol:  " 2330 ",
			wantSym: "2330.TW",
		},
		{
			name:    "foreign symbol untouched",
			repo:    &stubRepo{},
			symbol:  "AAPL",
			wantSym: "AAPL",
		},
		{
			name:     "empty symbol",
			repo:     &stubRepo{},
			symbol:   "  ",
			wantErr:  true,
			wantKind: fault.KindValidation,
		},
		{
			name:     "reversed range",
			repo:     &stubRepo{},
			symbol:   "2330",
			start:    &d1,
			end:      &d0,
			wantErr:  true,
			wantKind: fault.KindValidation,
		},
		{
			name:    "repository error",
			repo:    &stubRepo{err: errors.New("boom")},
			symbol:  "2330",
			wantSym: "2330.TW",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewSeriesService(tc.repo)
			out, err := svc.GetSeries(context.Background(), tc.symbol, tc.start, tc.end)
			if tc.wantErr {
				if err == nil || out != nil {
					t.Fatalf("expected error, got out=%+v err=%v", out, err)
				}
				if tc.wantKind != fault.KindUnknown && !fault.Is(err, tc.wantKind) {
					t.Fatalf("want kind %v, got %v", tc.wantKind, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected: out=%+v err=%v", out, err)
			}
			if tc.wantSym != "" && tc.repo.gotSym != tc.wantSym {
				t.Fatalf("repo got symbol %q, want %q", tc.repo.gotSym, tc.wantSym)
			}
		})
	}
}

func TestSeriesService_LastFetch(t *testing.T) {
	repo := &stubRepo{last: &models.FetchLogEntry{Symbol: "2330.TW", RowCount: 3}}
	svc := NewSeriesService(repo)
	e, err := svc.LastFetch(context.Background(), "2330")
	if err != nil || e == nil || repo.gotSym != "2330.TW" {
		t.Fatalf("unexpected e=%+v err=%v sym=%s", e, err, repo.gotSym)
	}
	if _, err := svc.LastFetch(context.Background(), ""); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestSeriesService_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := &stubRepo{}
	if _, err := NewSeriesService(repo).GetSeries(ctx, "2330", nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatal("repository should not be queried after cancellation")
	}
}
