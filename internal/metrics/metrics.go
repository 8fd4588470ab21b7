// Package metrics exposes the monitor's Prometheus instrumentation: probe
// outcomes, per-node failure/alive gauges, revival dispatch outcomes, and
// tick duration. It is additive instrumentation — nothing here feeds back
// into scheduling or failure-state decisions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered for one monitor instance.
type Metrics struct {
	registry *prometheus.Registry

	probesTotal    *prometheus.CounterVec
	nodeFailures   *prometheus.GaugeVec
	nodeAlive      *prometheus.GaugeVec
	revivalsTotal  *prometheus.CounterVec
	tickDuration   prometheus.Histogram
}

// New creates a Metrics instance with its own registry, so multiple monitor
// instances in the same process (as in tests) never collide on collector
// registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		probesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nodewatch_probes_total",
			Help: "Total liveness probes issued, by target address and result.",
		}, []string{"address", "result"}),
		nodeFailures: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "nodewatch_node_failures",
			Help: "Current consecutive probe failure count, by address.",
		}, []string{"address"}),
		nodeAlive: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "nodewatch_node_alive",
			Help: "1 if the node's last probe succeeded, 0 otherwise.",
		}, []string{"address"}),
		revivalsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nodewatch_revivals_total",
			Help: "Total revival dispatch attempts, by address and outcome.",
		}, []string{"address", "outcome"}),
		tickDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "nodewatch_tick_duration_seconds",
			Help:    "Wall-clock duration of one heartbeat tick's probe-and-apply phase.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	return m
}

// ObserveProbe records one probe outcome for address.
func (m *Metrics) ObserveProbe(address string, ok bool) {
	result := "fail"
	if ok {
		result = "ok"
	}
	m.probesTotal.WithLabelValues(address, result).Inc()
}

// SetNodeState updates the current failure count and alive gauges for address.
func (m *Metrics) SetNodeState(address string, alive bool, failures int) {
	m.nodeFailures.WithLabelValues(address).Set(float64(failures))
	aliveVal := 0.0
	if alive {
		aliveVal = 1.0
	}
	m.nodeAlive.WithLabelValues(address).Set(aliveVal)
}

// ObserveRevival records one revival dispatch attempt for address.
func (m *Metrics) ObserveRevival(address string, spawnErr error) {
	outcome := "dispatched"
	if spawnErr != nil {
		outcome = "spawn_error"
	}
	m.revivalsTotal.WithLabelValues(address, outcome).Inc()
}

// ObserveTick records how long one heartbeat tick's probe-and-apply phase took.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

// Handler returns the Prometheus exposition-format HTTP handler for GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
