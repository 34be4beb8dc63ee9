package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/linesmerrill/truck-ledger-api/api"
)

// Metrics serves the in-process request metrics
type Metrics struct {
	Collector *api.MetricsCollector
}

// formatRouteMetrics converts duration fields to milliseconds for JSON serialization
func formatRouteMetrics(routes []api.RouteMetrics) []map[string]interface{} {
	result := make([]map[string]interface{}, len(routes))
	for i, route := range routes {
		result[i] = map[string]interface{}{
			"method":      route.Method,
			"route":       route.Route,
			"count":       route.Count,
			"errorCount":  route.ErrorCount,
			"avgTime":     route.AvgTime.Milliseconds(),
			"minTime":     route.MinTime.Milliseconds(),
			"maxTime":     route.MaxTime.Milliseconds(),
			"p95Time":     route.P95Time.Milliseconds(),
			"lastRequest": route.LastRequest,
		}
	}
	return result
}

// formatTraces converts trace durations to milliseconds
func formatTraces(traces []api.RequestTrace) []map[string]interface{} {
	result := make([]map[string]interface{}, len(traces))
	for i, trace := range traces {
		result[i] = map[string]interface{}{
			"requestId":     trace.RequestID,
			"method":        trace.Method,
			"route":         trace.Route,
			"status":        trace.Status,
			"startTime":     trace.StartTime,
			"totalDuration": trace.TotalDuration.Milliseconds(),
		}
	}
	return result
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

// SummaryHandler returns the totals since the process started
func (m Metrics) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.Collector.GetSummary())
}

// SlowestRoutesHandler returns the routes with the highest average time
func (m Metrics) SlowestRoutesHandler(w http.ResponseWriter, r *http.Request) {
	routes := m.Collector.GetSlowestRoutes(queryInt(r, "limit", 20))
	writeJSON(w, http.StatusOK, formatRouteMetrics(routes))
}

// TracesHandler returns recent request traces. minutes bounds how far back to look.
func (m Metrics) TracesHandler(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-time.Duration(queryInt(r, "minutes", 15)) * time.Minute)
	traces := m.Collector.GetTraces(queryInt(r, "limit", 100), since)
	writeJSON(w, http.StatusOK, formatTraces(traces))
}
