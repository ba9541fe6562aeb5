package service

import (
	"context"
	"time"

	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/fault"
	"github.com/guttosm/twpulse/internal/storage"
	"github.com/guttosm/twpulse/internal/symbols"
)

// SeriesService defines business logic for reading persisted merged series.
type SeriesService interface {
	GetSeries(ctx context.Context, symbol string, startDate *time.Time, endDate *time.Time) ([]models.SeriesRow, error)
	LastFetch(ctx context.Context, symbol string) (*models.FetchLogEntry, error)
}

type seriesService struct {
	repo storage.SeriesRepository
}

func NewSeriesService(repo storage.SeriesRepository) SeriesService {
	return &seriesService{repo: repo}
}

// GetSeries qualifies bare Taiwan codes the same way the fetcher does, so
// "2330" and "2330.TW" read the same rows.
func (s *seriesService) GetSeries(ctx context.Context, symbol string, startDate *time.Time, endDate *time.Time) ([]models.SeriesRow, error) {
	sym := normalize(symbol)
	if sym == "" {
		return nil, fault.New(fault.KindValidation, "service.GetSeries", "symbol is required")
	}
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		return nil, fault.New(fault.KindValidation, "service.GetSeries", "end date before start date")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.repo.GetSeries(sym, startDate, endDate)
}

func (s *seriesService) LastFetch(ctx context.Context, symbol string) (*models.FetchLogEntry, error) {
	sym := normalize(symbol)
	if sym == "" {
		return nil, fault.New(fault.KindValidation, "service.LastFetch", "symbol is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.repo.LastFetch(sym)
}

func normalize(symbol string) string {
	out := symbols.Normalize([]string{symbol}, true)
	if len(out) == 0 {
		return ""
	}
	return out[0]
}
