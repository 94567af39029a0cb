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
			Name: "timer_requests_total",
			Help: "Total proxied storefront requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timer_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timer_in_flight",
		Help: "In-flight HTTP requests",
	})
	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timer_auth_failures_total",
			Help: "Rejected proxy signatures by reason",
		}, []string{"reason"},
	)
	TimersDelivered = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timer_eligible_per_request",
		Help:    "Eligible timers returned per delivery request",
		Buckets: []float64{0, 1, 2, 3, 5, 10},
	})
	ViewsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timer_views_recorded_total",
		Help: "View telemetry records persisted",
	})
	UsageDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timer_usage_increments_dropped_total",
		Help: "Best-effort shop usage increments dropped",
	})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal, Latency, InFlight,
		AuthFailures, TimersDelivered, ViewsRecorded, UsageDropped,
	)
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
