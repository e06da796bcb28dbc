package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := echo.New()
	e.Use(Metrics(reg, nil, 0))
	e.GET("/signals/:instrument", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway) })

	for _, path := range []string{"/signals/XAUUSD", "/signals/EURUSD", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	// one series per route template and status
	n, err := testutil.GatherAndCount(reg, "forexpulse_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	expected := `
# HELP forexpulse_http_in_flight_requests HTTP requests being served
# TYPE forexpulse_http_in_flight_requests gauge
forexpulse_http_in_flight_requests 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "forexpulse_http_in_flight_requests"))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(0))
}
