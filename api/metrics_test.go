package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoutePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/trips", "/api/v1/trips"},
		{"/api/v1/trips/", "/api/v1/trips"},
		{"/api/v1/trips/64b7f0c2a1b2c3d4e5f60001", "/api/v1/trips/{id}"},
		{"/api/v1/trips/64b7f0c2a1b2c3d4e5f60001/events/fastTag/64b7f0c2a1b2c3d4e5f60002", "/api/v1/trips/{id}/events/fastTag/{id}"},
		{"/", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeRoutePath(tt.path), tt.path)
	}
}

func TestMetricsCollectorAggregates(t *testing.T) {
	mc := NewMetricsCollector(10)
	mc.Stop()

	start := time.Now()
	mc.processTrace(RequestTrace{Method: "GET", Route: "/trips", Status: 200, StartTime: start, TotalDuration: 10 * time.Millisecond})
	mc.processTrace(RequestTrace{Method: "GET", Route: "/trips", Status: 500, StartTime: start, TotalDuration: 30 * time.Millisecond})
	mc.processTrace(RequestTrace{Method: "POST", Route: "/trips", Status: 201, StartTime: start, TotalDuration: 5 * time.Millisecond})

	routes := mc.GetSlowestRoutes(0)
	require.Len(t, routes, 2)
	assert.Equal(t, "GET", routes[0].Method)
	assert.Equal(t, int64(2), routes[0].Count)
	assert.Equal(t, int64(1), routes[0].ErrorCount)
	assert.Equal(t, 20*time.Millisecond, routes[0].AvgTime)
	assert.Equal(t, 10*time.Millisecond, routes[0].MinTime)
	assert.Equal(t, 30*time.Millisecond, routes[0].MaxTime)

	assert.Len(t, mc.GetSlowestRoutes(1), 1)

	summary := mc.GetSummary()
	assert.Equal(t, int64(3), summary["totalRequests"])
	assert.Equal(t, int64(1), summary["totalErrors"])
	assert.Equal(t, 2, summary["routeCount"])
}

func TestMetricsCollectorTraceWindow(t *testing.T) {
	mc := NewMetricsCollector(2)
	mc.Stop()

	base := time.Now()
	for i := 0; i < 3; i++ {
		mc.processTrace(RequestTrace{
			RequestID: string(rune('a' + i)),
			Method:    "GET",
			Route:     "/trips",
			StartTime: base.Add(time.Duration(i) * time.Second),
		})
	}

	traces := mc.GetTraces(10, base.Add(-time.Second))
	require.Len(t, traces, 2)
	assert.Equal(t, "b", traces[0].RequestID)
	assert.Equal(t, "c", traces[1].RequestID)

	assert.Len(t, mc.GetTraces(10, base.Add(time.Second)), 1)
	assert.Len(t, mc.GetTraces(1, base.Add(-time.Second)), 1)
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	mc := NewMetricsCollector(10)
	defer mc.Stop()

	r := mux.NewRouter()
	r.Use(mc.MetricsMiddleware)
	r.HandleFunc("/api/v1/trips/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/trips/64b7f0c2a1b2c3d4e5f60001", nil))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Eventually(t, func() bool {
		routes := mc.GetSlowestRoutes(0)
		return len(routes) == 1 && routes[0].Route == "/api/v1/trips/{id}"
	}, time.Second, 5*time.Millisecond)
}
