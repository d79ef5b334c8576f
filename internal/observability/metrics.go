package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tds_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tds_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tds_in_flight",
		Help: "In-flight HTTP requests",
	})
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tds_decisions_total",
			Help: "Decision outcomes by action",
		}, []string{"action"},
	)
	BanditSelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tds_bandit_selections_total",
			Help: "Variant selections by policy",
		}, []string{"policy"},
	)
	SyncPulls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tds_sync_pulls_total",
			Help: "Sync pulls by result",
		}, []string{"result"},
	)
	StatsPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tds_stats_pushes_total",
			Help: "Stats pushes by result",
		}, []string{"result"},
	)
	StatsEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tds_stats_events_dropped_total",
		Help: "Stat events dropped by queue backpressure",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal, Latency, InFlight, Decisions,
		BanditSelections, SyncPulls, StatsPushes, StatsEventsDropped)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
