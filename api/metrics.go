package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivolkov/loothound/game/app"
)

// Metrics bundles the server's Prometheus collectors.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

// NewMetrics registers the HTTP collectors plus gauges fed by the
// application's counters.
func NewMetrics(application *app.Application) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loothound_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "loothound_http_request_duration_seconds",
			Help:    "HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(m.requestsTotal, m.requestDuration)
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "loothound_players",
		Help: "Joined players.",
	}, func() float64 { return float64(application.PlayersCount()) }))
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "loothound_sessions",
		Help: "Live game sessions.",
	}, func() float64 { return float64(application.SessionsCount()) }))
	registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "loothound_ticks_total",
		Help: "Applied game ticks.",
	}, func() float64 { return float64(application.TicksApplied()) }))

	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		m.requestsTotal.WithLabelValues(r.Method, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.Observe(time.Since(start).Seconds())
	})
}
