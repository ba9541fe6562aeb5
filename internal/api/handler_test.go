package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/twpulse/internal/domain/dto"
	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/fault"
	"github.com/guttosm/twpulse/internal/service"
)

type mockSeriesService struct {
	rows     []models.SeriesRow
	last     *models.FetchLogEntry
	err      error
	gotStart *time.Time
	gotEnd   *time.Time
}

func (m *mockSeriesService) GetSeries(_ context.Context, _ string, s *time.Time, e *time.Time) ([]models.SeriesRow, error) {
	m.gotStart, m.gotEnd = s, e
	return m.rows, m.err
}

func (m *mockSeriesService) LastFetch(_ context.Context, _ string) (*models.FetchLogEntry, error) {
	return m.last, m.err
}

var _ service.SeriesService = (*mockSeriesService)(nil)

func setupRouterWithMock(s service.SeriesService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s)
	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.GET("/series", h.GetSeries)
	v1.GET("/fetches/last", h.GetLastFetch)
	return r
}

func sampleRows() []models.SeriesRow {
	d := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	return []models.SeriesRow{
		{Symbol: "2330.TW", TradeDate: d, Values: map[string]models.Cell{"Close": models.Number(1050), "foreign_net": models.Number(200)}},
		{Symbol: "2330.TW", TradeDate: d.AddDate(0, 0, 1), Values: map[string]models.Cell{"Close": models.Number(1060), "foreign_net": models.Null()}},
	}
}

func TestGetSeries_TableDriven(t *testing.T) {
	cases := []struct {
		name   string
		svc    *mockSeriesService
		query  string
		status int
		assert func(t *testing.T, m *mockSeriesService, body []byte)
	}{
		{
			name:   "missing symbol",
			svc:    &mockSeriesService{},
			query:  "/api/v1/series",
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid start",
			svc:    &mockSeriesService{},
			query:  "/api/v1/series?symbol=2330&start=2025/07/01",
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid end",
			svc:    &mockSeriesService{},
			query:  "/api/v1/series?symbol=2330&end=yesterday",
			status: http.StatusBadRequest,
		},
		{
			name:   "service validation",
			svc:    &mockSeriesService{err: fault.New(fault.KindValidation, "test", "end date before start date")},
			query:  "/api/v1/series?symbol=2330&start=2025-07-10&end=2025-07-01",
			status: http.StatusBadRequest,
		},
		{
			name:   "not found",
			svc:    &mockSeriesService{},
			query:  "/api/v1/series?symbol=9999",
			status: http.StatusNotFound,
		},
		{
			name:   "internal error",
			svc:    &mockSeriesService{err: errors.New("db down")},
			query:  "/api/v1/series?symbol=2330",
			status: http.StatusInternalServerError,
		},
		{
			name:   "success",
			svc:    &mockSeriesService{rows: sampleRows()},
			query:  "/api/v1/series?symbol=2330&start=2025-07-14",
			status: http.StatusOK,
			assert: func(t *testing.T, m *mockSeriesService, body []byte) {
				if m.gotStart == nil || m.gotStart.Format(models.DateLayout) != "2025-07-14" || m.gotEnd != nil {
					t.Fatalf("unexpected bounds start=%v end=%v", m.gotStart, m.gotEnd)
				}
				var out dto.SeriesResponse
				if err := json.Unmarshal(body, &out); err != nil {
					t.Fatalf("invalid json: %v", err)
				}
				if out.Symbol != "2330.TW" || out.Count != 2 || out.Start != "2025-07-14" || out.End != "" {
					t.Fatalf("unexpected body: %+v", out)
				}
				if out.Rows[0].Date != "2025-07-14" || out.Rows[0].Values["Close"].Num.Float64 != 1050 {
					t.Fatalf("unexpected first row: %+v", out.Rows[0])
				}
				if !out.Rows[1].Values["foreign_net"].IsNull() {
					t.Fatalf("expected null foreign_net, got %+v", out.Rows[1].Values["foreign_net"])
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouterWithMock(tc.svc)
			req := httptest.NewRequest(http.MethodGet, tc.query, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d body=%s", tc.status, w.Code, w.Body.String())
			}
			if tc.assert != nil {
				tc.assert(t, tc.svc, w.Body.Bytes())
			}
		})
	}
}

func TestGetLastFetch(t *testing.T) {
	entry := &models.FetchLogEntry{RunID: "r1", Symbol: "2330.TW", RowCount: 5, Filename: "2330.TW_MERGED.csv"}
	cases := []struct {
		name   string
		svc    *mockSeriesService
		query  string
		status int
	}{
		{name: "missing symbol", svc: &mockSeriesService{}, query: "/api/v1/fetches/last", status: http.StatusBadRequest},
		{name: "none recorded", svc: &mockSeriesService{}, query: "/api/v1/fetches/last?symbol=2330", status: http.StatusNotFound},
		{name: "error", svc: &mockSeriesService{err: errors.New("x")}, query: "/api/v1/fetches/last?symbol=2330", status: http.StatusInternalServerError},
		{name: "found", svc: &mockSeriesService{last: entry}, query: "/api/v1/fetches/last?symbol=2330", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouterWithMock(tc.svc)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.query, nil))
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
		})
	}
}
