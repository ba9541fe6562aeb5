// Package price downloads historical OHLCV series from the Yahoo Finance chart API.
package price

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	jsoniter "github.com/json-iterator/go"

	"github.com/guttosm/twpulse/internal/domain/models"
)

const (
	DefaultBaseURL = "https://query2.finance.yahoo.com"

	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 16 << 20
)

// Price field labels, in output order.
const (
	FieldOpen     = "Open"
	FieldHigh     = "High"
	FieldLow      = "Low"
	FieldClose    = "Close"
	FieldAdjClose = "Adj Close"
	FieldVolume   = "Volume"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Intervals accepted by the chart endpoint.
var Intervals = []string{"1m", "2m", "5m", "15m", "30m", "60m", "90m", "1h", "1d", "5d", "1wk", "1mo", "3mo"}

// ValidInterval reports whether iv is a supported bar size.
func ValidInterval(iv string) bool {
	for _, v := range Intervals {
		if v == iv {
			return true
		}
	}
	return false
}

// Intraday reports whether bars of iv are shorter than a day.
func Intraday(iv string) bool {
	return strings.HasSuffix(iv, "m") && !strings.HasSuffix(iv, "mo") || strings.HasSuffix(iv, "h")
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		Currency             string `json:"currency"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
		GMTOffset            int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// Request describes one download.
type Request struct {
	Symbols    []string
	Start      time.Time
	End        *time.Time // inclusive; nil means up to now
	Interval   string
	AutoAdjust bool
}

// Client is a Yahoo chart API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	workers    int
	now        func() time.Time
}

// NewClient builds a client for baseURL (DefaultBaseURL when empty). workers
// bounds concurrent symbol downloads in FetchBatch.
func NewClient(baseURL string, timeout time.Duration, workers int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if workers <= 0 {
		workers = 4
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		workers:    workers,
		now:        time.Now,
	}
}

// Fetch downloads one symbol as a date-indexed table. Daily bars are indexed
// by "Date", the exchange-local session date at UTC midnight; intraday bars by
// "Datetime" in exchange time.
func (c *Client) Fetch(ctx context.Context, symbol string, req Request) (*models.Table, error) {
	interval := req.Interval
	if interval == "" {
		interval = "1d"
	}
	end := c.now()
	if req.End != nil {
		end = req.End.AddDate(0, 0, 1)
	}

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(req.Start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", interval)
	q.Set("events", "div,split")
	q.Set("includeAdjustedClose", "true")

	u := c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (compatible; twpulse/1.0)")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var cr chartResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, symbol)
		}
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	if e := cr.Chart.Error; e != nil {
		return nil, fmt.Errorf("%s: %s", e.Code, e.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, symbol)
	}
	if len(cr.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart result for %s", symbol)
	}
	return buildTable(cr.Chart.Result[0], Intraday(interval), req.AutoAdjust), nil
}

func buildTable(r chartResult, intraday, autoAdjust bool) *models.Table {
	loc := location(r.Meta.ExchangeTimezoneName, r.Meta.GMTOffset)
	indexName := "Date"
	if intraday {
		indexName = "Datetime"
	}

	cols := []string{FieldOpen, FieldHigh, FieldLow, FieldClose}
	if !autoAdjust {
		cols = append(cols, FieldAdjClose)
	}
	cols = append(cols, FieldVolume)
	t := models.NewTable(cols...)
	t.IndexName = indexName

	if len(r.Indicators.Quote) == 0 {
		return t
	}
	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	for i, ts := range r.Timestamp {
		at := time.Unix(ts, 0).In(loc)
		if !intraday {
			at = models.CalendarDate(at)
		}
		open, high, low, cls := at64(q.Open, i), at64(q.High, i), at64(q.Low, i), at64(q.Close, i)
		adjClose := at64(adj, i)
		if adj == nil {
			adjClose = cls
		}

		if autoAdjust && cls != nil && adjClose != nil && *cls != 0 {
			ratio := *adjClose / *cls
			open, high, low = scale(open, ratio), scale(high, ratio), scale(low, ratio)
			cls = adjClose
		}

		row := []models.Cell{cell(open), cell(high), cell(low), cell(cls)}
		if !autoAdjust {
			row = append(row, cell(adjClose))
		}
		row = append(row, cell(at64(q.Volume, i)))
		t.AppendRow(row...)
		t.Index = append(t.Index, at)
	}
	return t
}

func location(name string, offset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if offset != 0 {
		return time.FixedZone("", offset)
	}
	return time.UTC
}

func at64(vs []*float64, i int) *float64 {
	if i < len(vs) {
		return vs[i]
	}
	return nil
}

func scale(v *float64, ratio float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v * ratio
	return &s
}

func cell(v *float64) models.Cell {
	if v == nil {
		return models.Null()
	}
	return models.Number(*v)
}
