package api

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// HeaderRequestID carries the request id in and out of the server.
const HeaderRequestID = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID returns the id assigned to the request by the access log
// middleware, or "" outside it.
func RequestID(c echo.Context) string {
	id, _ := c.Get(requestIDKey).(string)
	return id
}

// accessLog assigns a request id, echoes it in the response header and logs
// every request with its status and latency in microseconds.
func accessLog(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(HeaderRequestID)
			if reqID == "" {
				reqID = newRequestID(start)
			}
			c.Set(requestIDKey, reqID)
			c.Response().Header().Set(HeaderRequestID, reqID)

			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}

			log.Info().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Int64("latency", time.Since(start).Microseconds()).
				Str("request-id", reqID).
				Msg("HTTP Request")
			return err
		}
	}
}

func newRequestID(now time.Time) string {
	return fmt.Sprintf("req-%d-%08x", now.Unix(), rand.Uint32())
}
