package api

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	actionKey       = "action"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
	unknownAction   = "unknown"
)

// RequestRecorder receives one observation per finished API request.
type RequestRecorder interface {
	RecordRequest(action string, status int, duration time.Duration)
}

// requestLogger assigns a request id, echoes it in X-Request-ID and logs one
// line per request once it has been handled.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		args := []any{
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if action := c.GetString(actionKey); action != "" {
			args = append(args, "action", action)
		}
		logger.Info(c.Request.Context(), "request", args...)
	}
}

// recordRequests reports POST /api requests to recorder, labelled with the
// dispatched action or "unknown".
func recordRequests(recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		action := c.GetString(actionKey)
		if action == "" {
			action = unknownAction
		}
		recorder.RecordRequest(action, c.Writer.Status(), time.Since(start))
	}
}

// recovery turns a panic into a logged 500 with the usual error body.
func recovery(logger logging.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error(c.Request.Context(), "panic recovered",
			"request_id", c.GetString(requestIDKey), "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	})
}
