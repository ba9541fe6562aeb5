package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/twpulse/internal/domain/dto"
	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/fault"
	"github.com/guttosm/twpulse/internal/service"
)

// Handler provides HTTP handlers for reading persisted merged series.
//
// Responsibilities:
//   - Validate incoming HTTP query parameters
//   - Delegate reads to the service layer
//   - Translate service results into response DTOs
type Handler struct {
	svc service.SeriesService
}

// NewHandler constructs a new Handler instance.
func NewHandler(svc service.SeriesService) *Handler {
	return &Handler{svc: svc}
}

// GetSeries handles GET /api/v1/series requests.
//
// Query Parameters:
//   - symbol (string, required): bare code or qualified symbol (e.g., "2330" or "2330.TW").
//   - start (string, optional): first trade date, YYYY-MM-DD.
//   - end (string, optional): last trade date, YYYY-MM-DD.
//
// GetSeries godoc
// @Summary      Get merged series by symbol
// @Description  Returns persisted price rows joined with institutional and day-trade columns
// @Tags         series
// @Accept       json
// @Produce      json
// @Param        symbol  query     string  true   "Symbol" example(2330)
// @Param        start   query     string  false  "Start date in YYYY-MM-DD" example(2025-07-01)
// @Param        end     query     string  false  "End date in YYYY-MM-DD" example(2025-07-18)
// @Success      200     {object}  dto.SeriesResponse  "Success"
// @Failure      400     {object}  dto.ErrorResponse   "Bad Request"
// @Failure      404     {object}  dto.ErrorResponse   "Not Found"
// @Failure      500     {object}  dto.ErrorResponse   "Internal Error"
// @Router       /api/v1/series [get]
func (h *Handler) GetSeries(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("symbol is required", nil))
		return
	}

	start, err := dateParam(c, "start")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid start format, expected YYYY-MM-DD", err))
		return
	}
	end, err := dateParam(c, "end")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid end format, expected YYYY-MM-DD", err))
		return
	}

	rows, err := h.svc.GetSeries(c.Request.Context(), symbol, start, end)
	switch {
	case fault.Is(err, fault.KindValidation):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid request", err))
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("failed to fetch series", err))
		return
	case len(rows) == 0:
		c.JSON(http.StatusNotFound, dto.NewErrorResponse("no data found", nil))
		return
	}

	c.JSON(http.StatusOK, dto.NewSeriesResponse(rows[0].Symbol, c.Query("start"), c.Query("end"), rows))
}

// GetLastFetch godoc
// @Summary      Last fetch run for a symbol
// @Description  Returns the most recent fetch log entry recorded for the symbol
// @Tags         series
// @Produce      json
// @Param        symbol  query     string  true  "Symbol" example(2330.TW)
// @Success      200     {object}  models.FetchLogEntry
// @Failure      400     {object}  dto.ErrorResponse
// @Failure      404     {object}  dto.ErrorResponse
// @Failure      500     {object}  dto.ErrorResponse
// @Router       /api/v1/fetches/last [get]
func (h *Handler) GetLastFetch(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("symbol is required", nil))
		return
	}
	entry, err := h.svc.LastFetch(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("failed to read fetch log", err))
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse("no fetch recorded", nil))
		return
	}
	c.JSON(http.StatusOK, entry)
}

func dateParam(c *gin.Context, key string) (*time.Time, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
