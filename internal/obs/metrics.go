package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkboard_api_requests_total",
			Help: "Total number of backend API requests issued by the client.",
		},
		[]string{"method", "path", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "talkboard_api_request_duration_seconds",
			Help:    "Backend API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	cacheRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkboard_directory_refresh_total",
			Help: "Directory cache refresh attempts by scope and outcome.",
		},
		[]string{"scope", "outcome"},
	)
)

// Init registers metrics with the default registry.
func Init() {
	prometheus.MustRegister(apiRequestsTotal, apiRequestDuration, cacheRefreshTotal)
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAPIRequest records one outgoing API call.
func ObserveAPIRequest(method, path string, status int, d time.Duration) {
	s := strconv.Itoa(status)
	apiRequestsTotal.WithLabelValues(method, path, s).Inc()
	apiRequestDuration.WithLabelValues(method, path, s).Observe(d.Seconds())
}

// ObserveCacheRefresh records one directory refresh attempt.
func ObserveCacheRefresh(scope, outcome string) {
	cacheRefreshTotal.WithLabelValues(scope, outcome).Inc()
}
