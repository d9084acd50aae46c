package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	intelmetrics "customerIntel/pkg/metrics"
)

var RequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "intel_http_requests_total",
		Help: "HTTP requests served by route and status code",
	},
	[]string{"route", "code"},
)

func Init() {
	prometheus.MustRegister(RequestsTotal)
}

// RequestLatency observes every request under its route template, not its raw path.
func RequestLatency() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			intelmetrics.AnalyticsRequestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
			RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
			return err
		}
	}
}
