package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/cuotas/internal/audit/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const headerRequestID = "X-Request-Id"

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug bool
	// ActorHeader names the header carrying the operator, logged as "actor".
	ActorHeader string
	// SlowRequest raises successful requests slower than this to warn.
	SlowRequest     time.Duration
	ErrorClassifier func(err error) (errorType string, errorCode string)
}

// GinMiddleware writes one "http_request" entry per request. The request id
// is put on the context so audit entries written while serving the request
// carry it.
func GinMiddleware(base *zap.Logger, cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)
		c.Request = c.Request.WithContext(auditdomain.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		elapsed := time.Since(start)
		route := routeOf(c)
		status := c.Writer.Status()

		fields := append(make([]zap.Field, 0, 12),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		)
		if cfg.ActorHeader != "" {
			if actor := strings.TrimSpace(c.GetHeader(cfg.ActorHeader)); actor != "" {
				fields = append(fields, zap.String("actor", actor))
			}
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			if cfg.ErrorClassifier != nil {
				errorType, errorCode := cfg.ErrorClassifier(lastErr.Err)
				fields = append(fields, zap.String("error_type", errorType), zap.String("error_code", errorCode))
			}
			if cfg.Debug {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		log := WithContext(c.Request.Context(), base)
		if log == nil {
			return
		}
		if ce := log.Check(requestLevel(route, status, elapsed, cfg.SlowRequest), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestIDFor(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(headerRequestID))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Header(headerRequestID, id)
	return id
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

func requestLevel(route string, status int, elapsed, slow time.Duration) zapcore.Level {
	switch {
	case route == "/health" || route == "/metrics":
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case slow > 0 && elapsed > slow:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
