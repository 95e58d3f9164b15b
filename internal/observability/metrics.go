package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "newswire",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently being served.",
		},
	)
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newswire",
			Subsystem: "session",
			Name:      "total",
			Help:      "Sessions accepted, by outcome.",
		},
		[]string{"outcome"},
	)
	sessionMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newswire",
			Subsystem: "session",
			Name:      "messages_total",
			Help:      "Framed messages moved, by role and direction.",
		},
		[]string{"role", "direction"},
	)
	sessionBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newswire",
			Subsystem: "session",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes moved, by role and direction.",
		},
		[]string{"role", "direction"},
	)
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newswire",
			Subsystem: "fetch",
			Name:      "total",
			Help:      "Upstream fetches, by target, filter and status.",
		},
		[]string{"target", "filter", "status"},
	)
	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newswire",
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Upstream fetch duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"target", "filter"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newswire",
			Subsystem: "admin_http",
			Name:      "requests_total",
			Help:      "Admin HTTP requests.",
		},
		[]string{"service", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newswire",
			Subsystem: "admin_http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "route", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			sessionsActive,
			sessionsTotal,
			sessionMessages,
			sessionBytes,
			fetchTotal,
			fetchDuration,
			httpRequests,
			httpDuration,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func SessionStarted() {
	RegisterMetrics()
	sessionsActive.Inc()
}

// SessionEnded records one finished session. outcome is "closed", "error"
// or "panic".
func SessionEnded(outcome string) {
	RegisterMetrics()
	sessionsActive.Dec()
	sessionsTotal.WithLabelValues(outcome).Inc()
}

// SessionRejected counts a connection closed before a session started.
func SessionRejected() {
	RegisterMetrics()
	sessionsTotal.WithLabelValues("rejected").Inc()
}

func RecordMessage(role, direction string, size int) {
	RegisterMetrics()
	sessionMessages.WithLabelValues(role, direction).Inc()
	sessionBytes.WithLabelValues(role, direction).Add(float64(size))
}

func RecordFetch(target, filter, status string, duration time.Duration) {
	RegisterMetrics()
	fetchTotal.WithLabelValues(target, filter, status).Inc()
	fetchDuration.WithLabelValues(target, filter).Observe(duration.Seconds())
}

func RecordHTTPRequest(service, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, route, statusLabel).Observe(duration.Seconds())
}
