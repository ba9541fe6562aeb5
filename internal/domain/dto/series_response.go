package dto

import "github.com/guttosm/twpulse/internal/domain/models"

// SeriesResponse represents the JSON structure returned by the
// GET /api/v1/series endpoint.
//
// Fields match the API contract and may differ from internal domain models.
type SeriesResponse struct {
	Symbol string          `json:"symbol" example:"2330.TW"`             // Symbol requested
	Start  string          `json:"start,omitempty" example:"2025-07-01"` // Lower bound applied, if any
	End    string          `json:"end,omitempty" example:"2025-07-18"`   // Upper bound applied, if any
	Count  int             `json:"count" example:"14"`                   // Number of rows returned
	Rows   []SeriesRowJSON `json:"rows"`
}

// SeriesRowJSON is one merged row keyed by date.
type SeriesRowJSON struct {
	Date   string                 `json:"date" example:"2025-07-14"`
	Seq    int                    `json:"seq,omitempty"`
	Values map[string]models.Cell `json:"values"`
}

// NewSeriesResponse maps persisted rows onto the API contract.
func NewSeriesResponse(symbol, start, end string, rows []models.SeriesRow) SeriesResponse {
	out := SeriesResponse{Symbol: symbol, Start: start, End: end, Count: len(rows), Rows: make([]SeriesRowJSON, len(rows))}
	for i, r := range rows {
		out.Rows[i] = SeriesRowJSON{Date: r.TradeDate.Format(models.DateLayout), Seq: r.Seq, Values: r.Values}
	}
	return out
}
