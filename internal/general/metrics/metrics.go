package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "jobs_created_total", Help: "Jobs created, by kind"},
		[]string{"kind"},
	)
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "claims_total", Help: "Claim attempts, by outcome"},
		[]string{"outcome"},
	)
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "transitions_total", Help: "Milestone transitions, by status"},
		[]string{"status"},
	)

	PositionReportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "tracking", Name: "position_reports_total", Help: "Position reports received"},
	)
	StalePositionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "tracking", Name: "stale_positions_total", Help: "Position reports dropped as out of order"},
	)
	ProximityAlertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "tracking", Name: "proximity_alerts_total", Help: "Proximity alerts fired"},
	)
	WSDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "tracking", Name: "ws_dropped_total", Help: "WebSocket frames dropped on slow subscribers"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// InstrumentHandler counts and times every request passing through next.
// The path label is the ServeMux pattern, not the raw URL, so the
// cardinality stays bounded.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// ServeMux stamps r.Pattern as "METHOD /path"; keep the path part
		path := r.Pattern
		if i := strings.IndexByte(path, ' '); i >= 0 {
			path = path[i+1:]
		}
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(rec.status)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Hijack keeps WebSocket upgrades working behind the recorder.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}
