package router

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/logger"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/greenbudget/backend/internal/httputil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "greenbudget",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "Duration of HTTP requests by route and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// URLMiddleware sets the configured base URL of the API in the context.
func URLMiddleware(baseURL *url.URL) gin.HandlerFunc {
	base := ""
	if baseURL != nil {
		base = strings.TrimSuffix(baseURL.String(), "/")
	}

	return func(c *gin.Context) {
		if base != "" {
			c.Set(httputil.BaseURLKey, base)
		}
		c.Next()
	}
}

// MetricsMiddleware records the duration of every request.
//
// Requests are labeled with their route pattern, not the path, so that IDs
// do not create new series.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		requestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Observe(time.Since(start).Seconds())
	}
}

// RequestLogger logs every request to base, tagged with its request ID
// and route pattern.
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return logger.SetLogger(
		logger.WithDefaultLevel(zerolog.InfoLevel),
		logger.WithClientErrorLevel(zerolog.InfoLevel),
		logger.WithServerErrorLevel(zerolog.ErrorLevel),
		logger.WithLogger(func(c *gin.Context, _ zerolog.Logger) zerolog.Logger {
			return base.With().Str("request-id", requestid.Get(c)).Logger()
		}),
		logger.WithContext(func(c *gin.Context, e *zerolog.Event) *zerolog.Event {
			return e.Str("route", c.FullPath())
		}))
}
