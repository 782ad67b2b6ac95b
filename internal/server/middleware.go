package server

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	obsmetrics "github.com/smallbiznis/cuotas/internal/observability/metrics"
	"github.com/smallbiznis/cuotas/internal/ratelimit"
	"go.uber.org/zap"
)

// HTTPMetricsMiddleware records every request against its route template.
func HTTPMetricsMiddleware(m *obsmetrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// BatchRateLimitMiddleware throttles batch cuota runs per actor.
func BatchRateLimitMiddleware(l *ratelimit.Limiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.AllowBatch(c.Request.Context(), actorFromRequest(c))
		if err != nil {
			// redis outages do not block billing runs
			log.Warn("batch rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrTooManyBatchRuns)
			return
		}
		c.Next()
	}
}
