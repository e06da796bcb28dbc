package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	applogger "ForexPulse/pkg/logger"
)

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics counts and times requests per route template. Server errors are
// logged at error level and requests over slow at warn; slow <= 0 disables
// the latter.
func Metrics(reg prometheus.Registerer, l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	f := promauto.With(reg)
	requests := f.NewCounterVec(prometheus.CounterOpts{
		Name: "forexpulse_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})
	latency := f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forexpulse_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status class",
		Buckets: latencyBuckets,
	}, []string{"route", "method", "class"})
	inFlight := f.NewGauge(prometheus.GaugeOpts{
		Name: "forexpulse_http_in_flight_requests",
		Help: "HTTP requests being served",
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			inFlight.Inc()
			defer inFlight.Dec()

			start := time.Now()
			if err := next(c); err != nil {
				// render now so the recorded status is the one the client sees
				c.Error(err)
			}
			took := time.Since(start)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := c.Response().Status

			requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			latency.WithLabelValues(route, method, statusClass(status)).Observe(took.Seconds())

			log := l.Warn
			switch {
			case status >= 500:
				log = l.Error
			case slow <= 0 || took < slow:
				return nil
			}
			log("http request",
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", status),
				applogger.Duration("duration_ms", took),
			)
			return nil
		}
	}
}

// statusClass maps 404 to "4xx"; anything outside 1xx-5xx is reported as 5xx.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return strconv.Itoa(code/100) + "xx"
}
