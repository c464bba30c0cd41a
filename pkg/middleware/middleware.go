// Package middleware carries the echo middleware stack: request context,
// request logging, and the httperror-aware error handler.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/bramble/pkg/appcontext"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Context seeds the request context with a request ID.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := appcontext.SetRequestID(req.Context(), requestID)
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// Logger logs every request with timing and response metadata.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}

			stop := time.Now()

			logger.WithContext(c.Request().Context()).WithFields(map[string]interface{}{
				"request_id":    appcontext.GetRequestID(c.Request().Context()),
				"method":        req.Method,
				"uri":           req.RequestURI,
				"status":        res.Status,
				"route":         c.Path(),
				"remote_ip":     c.RealIP(),
				"host":          req.Host,
				"user_agent":    req.UserAgent(),
				"response_time": stop.Sub(start),
				"response_size": strconv.FormatInt(res.Size, 10),
			}).Info("Request")

			return nil
		}
	}
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error returns an echo error handler that understands httperror.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		logger.WithContext(ctx).WithError(err).Error("api is returning an error")
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal Server Error"
		meta := map[string]any{}

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		}

		if ok := httperror.IsHTTPError(err); ok {
			httperr := httperror.ToHTTPError(err)
			code = httperror.GetStatusCode(err)
			message = httperr.Error()
			meta = httperr.Meta
		}

		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: appcontext.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}
