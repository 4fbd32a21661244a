package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"

	"github.com/talkincode/wagate/internal/webserver"
	"github.com/talkincode/wagate/pkg/metrics"
)

var metricNames = map[string]bool{
	metrics.EventsDispatched:  true,
	metrics.MessagesSent:      true,
	metrics.MessagesReceived:  true,
	metrics.WebhookDelivered:  true,
	metrics.WebhookFailed:     true,
	metrics.SystemCpuPercent:  true,
	metrics.SystemMemPercent:  true,
	metrics.ProcessCpuPercent: true,
	metrics.ProcessMemMB:      true,
}

func registerMetricsRoutes() {
	webserver.ApiGET("/metrics/summary", getMetricsSummary)
	webserver.ApiGET("/metrics/:name", getMetricSeries)
}

// getMetricsSummary totals the gateway counters over the requested
// window, default last 24 hours.
func getMetricsSummary(c echo.Context) error {
	start, end := parseMetricWindow(c)
	return ok(c, map[string]interface{}{
		"events_dispatched": metrics.Sum(metrics.EventsDispatched, start, end),
		"messages_sent":     metrics.Sum(metrics.MessagesSent, start, end),
		"messages_received": metrics.Sum(metrics.MessagesReceived, start, end),
		"webhook_delivered": metrics.Sum(metrics.WebhookDelivered, start, end),
		"webhook_failed":    metrics.Sum(metrics.WebhookFailed, start, end),
		"start":             start,
		"end":               end,
	})
}

func getMetricSeries(c echo.Context) error {
	name := c.Param("name")
	if !metricNames[name] {
		return fail(c, http.StatusNotFound, "METRIC_NOT_FOUND", "Unknown metric name", nil)
	}
	start, end := parseMetricWindow(c)
	points, err := metrics.Select(name, start, end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METRICS_ERROR", "Failed to read metric", err.Error())
	}
	return ok(c, points)
}

func parseMetricWindow(c echo.Context) (start, end int64) {
	end = cast.ToInt64(c.QueryParam("end"))
	if end <= 0 {
		end = time.Now().Unix()
	}
	start = cast.ToInt64(c.QueryParam("start"))
	if start <= 0 {
		start = end - 24*3600
	}
	return start, end
}
