// Package twse fetches Taiwan Stock Exchange daily reports: institutional
// investors by stock (T86), market-wide institutional funds (BFI82U) and
// day-trading statistics (TWTB4U).
package twse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/logger"
)

const (
	DefaultBaseURL = "https://www.twse.com.tw"

	endpointT86      = "/rwd/zh/fund/T86"
	endpointBFI82U   = "/rwd/zh/fund/BFI82U"
	endpointDaytrade = "/exchangeReport/TWTB4U"

	defaultTimeout = 10 * time.Second
	queryDate      = "20060102"
	statOK         = "OK"
	maxBodyBytes   = 32 << 20
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// report is the common envelope of TWSE JSON responses. Newer endpoints nest
// the payload under tables.
type report struct {
	Stat   string     `json:"stat"`
	Date   string     `json:"date"`
	Title  string     `json:"title"`
	Fields []string   `json:"fields"`
	Data   [][]any    `json:"data"`
	Tables []subtable `json:"tables"`
}

type subtable struct {
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
	Data   [][]any  `json:"data"`
}

// Client talks to the TWSE website. Requests are paced by a shared limiter
// because TWSE blocks clients that poll too quickly.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRateLimit caps outgoing requests per second; zero or less disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient builds a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		userAgent:  "twpulse/1.0 (+https://github.com/guttosm/twpulse)",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Page returns the per-date fetch operation for kind, or nil for unknown kinds.
func (c *Client) Page(kind models.Kind) func(context.Context, time.Time) (*models.Table, error) {
	switch kind {
	case models.KindInstitutional:
		return c.FetchInstitutional
	case models.KindDaytrade:
		return c.FetchDaytrade
	case models.KindMarketFlows:
		return c.FetchMarketFlows
	default:
		return nil
	}
}

// FetchInstitutional fetches the T86 report for one date. A nil table with a nil
// error means TWSE has no data for that date.
func (c *Client) FetchInstitutional(ctx context.Context, date time.Time) (*models.Table, error) {
	q := url.Values{}
	q.Set("date", date.Format(queryDate))
	q.Set("selectType", "ALL")
	q.Set("response", "json")
	return c.fetchReport(ctx, endpointT86, q, date)
}

// FetchMarketFlows fetches the BFI82U market aggregate for one date.
func (c *Client) FetchMarketFlows(ctx context.Context, date time.Time) (*models.Table, error) {
	q := url.Values{}
	q.Set("dayDate", date.Format(queryDate))
	q.Set("type", "day")
	q.Set("response", "json")
	return c.fetchReport(ctx, endpointBFI82U, q, date)
}

// FetchDaytrade fetches TWTB4U for one date. The JSON report is tried first and
// the open_data CSV export is used when JSON fails or is empty. Weekends are
// skipped without a request.
func (c *Client) FetchDaytrade(ctx context.Context, date time.Time) (*models.Table, error) {
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return nil, nil
	}

	q := url.Values{}
	q.Set("date", date.Format(queryDate))
	q.Set("response", "json")
	t, jsonErr := c.fetchReport(ctx, endpointDaytrade, q, date)
	if jsonErr == nil && !t.Empty() {
		return t, nil
	}
	if jsonErr != nil {
		logger.L().Warn().Err(jsonErr).Str("date", date.Format(models.DateLayout)).Msg("daytrade json failed, trying csv")
	}

	q = url.Values{}
	q.Set("response", "open_data")
	q.Set("date", date.Format(queryDate))
	body, err := c.get(ctx, endpointDaytrade, q)
	if err != nil {
		return nil, fmt.Errorf("daytrade csv fallback: %w", err)
	}
	t, err = parseCSV(body)
	if err != nil {
		return nil, fmt.Errorf("daytrade csv fallback: %w", err)
	}
	if t.Empty() {
		return nil, nil
	}
	t.AddColumn(models.ColumnDate, repeat(models.Time(models.CalendarDate(date)), t.Len()))
	return t, nil
}

func (c *Client) fetchReport(ctx context.Context, endpoint string, q url.Values, date time.Time) (*models.Table, error) {
	body, err := c.get(ctx, endpoint, q)
	if err != nil {
		return nil, err
	}
	var r report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	if r.Stat != statOK {
		logger.L().Debug().Str("endpoint", endpoint).Str("date", date.Format(models.DateLayout)).Str("stat", r.Stat).Msg("twse returned non-OK status")
		return nil, nil
	}
	fields, data := r.Fields, r.Data
	if len(fields) == 0 {
		fields, data = pickTable(r.Tables)
	}
	t := buildTable(fields, data)
	if t.Empty() {
		return nil, nil
	}
	t.AddColumn(models.ColumnDate, repeat(models.Time(models.CalendarDate(date)), t.Len()))
	return t, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := c.baseURL + endpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// pickTable selects the first nested table whose header carries a stock code.
func pickTable(tables []subtable) ([]string, [][]any) {
	for _, t := range tables {
		for _, f := range t.Fields {
			if strings.Contains(f, "代號") || strings.Contains(strings.ToLower(f), "code") {
				return t.Fields, t.Data
			}
		}
	}
	if len(tables) > 0 {
		return tables[0].Fields, tables[0].Data
	}
	return nil, nil
}

func buildTable(fields []string, data [][]any) *models.Table {
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = strings.TrimSpace(f)
	}
	t := models.NewTable(header...)
	for _, rec := range data {
		row := make([]models.Cell, 0, len(rec))
		for _, v := range rec {
			row = append(row, toCell(v))
		}
		t.AppendRow(row...)
	}
	return t
}

func toCell(v any) models.Cell {
	switch x := v.(type) {
	case nil:
		return models.Null()
	case string:
		return models.Text(strings.TrimSpace(x))
	case float64:
		return models.Number(x)
	default:
		return models.Text(fmt.Sprint(x))
	}
}

func repeat(c models.Cell, n int) []models.Cell {
	out := make([]models.Cell, n)
	for i := range out {
		out[i] = c
	}
	return out
}
