package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal tracks API requests by route pattern and status code
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnsmanager_http_requests_total",
		Help: "Total number of API requests handled",
	}, []string{"route", "code"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dnsmanager_http_request_duration_seconds",
		Help:    "Histogram of API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// OperationsTotal counts audited operations by action and outcome
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnsmanager_operations_total",
		Help: "Total number of audited operations",
	}, []string{"action", "status"})

	// CacheOperations tracks zone and record cache hits and misses
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnsmanager_cache_operations_total",
		Help: "Total number of cache hits and misses",
	}, []string{"cache", "result"})

	ReloadAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dnsmanager_reload_attempts",
		Help:    "Attempts needed to confirm a zone reload",
		Buckets: []float64{1, 2, 3, 5, 8},
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument records count and latency of h under route.
func Instrument(route string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h.ServeHTTP(rec, r)
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	})
}

func CacheHit(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheOperations.WithLabelValues(cache, result).Inc()
}
