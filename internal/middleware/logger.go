package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/twpulse/internal/logger"
	"github.com/rs/zerolog"
)

// quietPaths are probed constantly by orchestrators and logged at debug.
var quietPaths = map[string]bool{"/healthz": true, "/readyz": true}

// RequestLogger logs one structured line per request on the "http" component
// logger: request id, route, status, latency, response size and the series
// symbol when one was queried. 5xx responses log at error, 4xx at warn.
//
//	router.Use(middleware.RequestID(), middleware.RequestLogger())
func RequestLogger() gin.HandlerFunc {
	return requestLogger(logger.With("http"))
}

func requestLogger(l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		rid, _ := c.Get(RequestIDKey)

		ev := l.WithLevel(levelFor(status, c.Request.URL.Path))
		if s := c.Query("symbol"); s != "" {
			ev = ev.Str("symbol", s)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("request_id", toString(rid)).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes", c.Writer.Size()).
			Str("client_ip", c.ClientIP()).
			Msg("http_request")
	}
}

func levelFor(status int, path string) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	case quietPaths[path]:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
