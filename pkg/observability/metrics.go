package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the host.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec

	// Discovery and composition metrics
	PluginsLoaded       prometheus.Gauge
	PluginLoadSkips     prometheus.Counter
	CompositionDuration prometheus.Histogram
	CompositionsTotal   *prometheus.CounterVec

	// Identity metrics
	LoginsTotal           *prometheus.CounterVec
	UsersProvisionedTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugboard_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plugboard_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugboard_authz_decisions_total",
				Help: "Authorization decisions by outcome",
			},
			[]string{"decision"},
		),
		PluginsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugboard_plugins_loaded",
				Help: "Number of extensions currently loaded",
			},
		),
		PluginLoadSkips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plugboard_plugin_load_skips_total",
				Help: "Extensions skipped during discovery due to load failures",
			},
		),
		CompositionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plugboard_composition_duration_seconds",
				Help:    "Permission tree composition duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		CompositionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugboard_compositions_total",
				Help: "Permission tree compositions by outcome",
			},
			[]string{"outcome"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugboard_logins_total",
				Help: "Login attempts by origin and outcome",
			},
			[]string{"origin", "outcome"},
		),
		UsersProvisionedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plugboard_users_provisioned_total",
				Help: "Users auto-provisioned from third-party identity providers",
			},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.PluginsLoaded,
		m.PluginLoadSkips,
		m.CompositionDuration,
		m.CompositionsTotal,
		m.LoginsTotal,
		m.UsersProvisionedTotal,
	)
	return m
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveDecision records one authorization decision.
func (m *Metrics) ObserveDecision(decision string) {
	m.AuthzDecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveComposition records one discover-compose cycle. loaded is the
// number of extensions in the installed snapshot and is ignored for
// failed cycles, which leave the previous snapshot active.
func (m *Metrics) ObserveComposition(outcome string, duration time.Duration, loaded int) {
	m.CompositionsTotal.WithLabelValues(outcome).Inc()
	m.CompositionDuration.Observe(duration.Seconds())
	if outcome == "success" {
		m.PluginsLoaded.Set(float64(loaded))
	}
}

// ObserveLogin records one login attempt.
func (m *Metrics) ObserveLogin(origin, outcome string) {
	m.LoginsTotal.WithLabelValues(origin, outcome).Inc()
}
