package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/twpulse/internal/domain/dto"
	"github.com/guttosm/twpulse/internal/fault"
	"github.com/guttosm/twpulse/internal/logger"
)

// ErrorHandler turns errors attached with c.Error into a JSON error response
// when the handler did not write one itself.
//
// Status mapping:
//   - dto.ErrorResponse or fault validation errors: 400
//   - anything else: 500
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}
	err := c.Errors.Last().Err

	var resp dto.ErrorResponse
	switch {
	case errors.As(err, &resp):
		c.JSON(http.StatusBadRequest, resp)
	case fault.Is(err, fault.KindValidation):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid request", err))
	default:
		logger.L().Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("Internal server error", err))
	}
}

// AbortWithError stops the chain and writes a standardized error body.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(message, err))
}
