// Package metrics exposes Prometheus metrics for the worker fleet, fed from
// the event bus so the control loops never touch the collectors directly.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fencecast/internal/events"
	"fencecast/internal/store"
)

// Metrics holds the fleet's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	workersRunning   prometheus.Gauge
	restartsTotal    prometheus.Counter
	crashesTotal     prometheus.Counter
	driftTotal       prometheus.Counter
	orphansTotal     prometheus.Counter
	transitionsTotal *prometheus.CounterVec
}

// New creates and registers the fleet collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		workersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fencecast_workers_running",
			Help: "Number of bindings currently in the started state.",
		}),
		restartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fencecast_restarts_total",
			Help: "Restart intents issued by the supervisor and detector.",
		}),
		crashesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fencecast_worker_crashes_total",
			Help: "Workers found dead past the debounce threshold.",
		}),
		driftTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fencecast_drift_detections_total",
			Help: "Configuration drift detections (URL or watermark changes).",
		}),
		orphansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fencecast_orphans_reaped_total",
			Help: "Orphan transcoder processes terminated by the reaper.",
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fencecast_status_transitions_total",
			Help: "Binding status transitions by target status.",
		}, []string{"to"}),
	}

	registry.MustRegister(
		m.workersRunning,
		m.restartsTotal,
		m.crashesTotal,
		m.driftTotal,
		m.orphansTotal,
		m.transitionsTotal,
	)
	return m
}

// Observe subscribes the collectors to the bus. The returned function
// detaches them again.
//
// The running gauge is driven by a per-uid set rather than the From field of
// each event: intent statuses are written to the store without an event, so
// From is unreliable for pairing increments with decrements. A uid counts
// once while its last published status is started and is released on any
// other published status.
func (m *Metrics) Observe(bus *events.Bus) func() {
	var mu sync.Mutex
	running := make(map[string]bool)

	unsubs := []func(){
		events.Subscribe(bus, func(e events.StatusChangedEvent) {
			m.transitionsTotal.WithLabelValues(string(e.To)).Inc()
			if e.To == store.StatusNeedRestart {
				m.restartsTotal.Inc()
			}

			mu.Lock()
			if e.To == store.StatusStarted {
				if !running[e.UID] {
					running[e.UID] = true
					m.workersRunning.Inc()
				}
			} else if running[e.UID] {
				delete(running, e.UID)
				m.workersRunning.Dec()
			}
			mu.Unlock()
		}),
		events.Subscribe(bus, func(events.WorkerCrashedEvent) {
			m.crashesTotal.Inc()
		}),
		events.Subscribe(bus, func(events.DriftDetectedEvent) {
			m.driftTotal.Inc()
		}),
		events.Subscribe(bus, func(events.OrphanReapedEvent) {
			m.orphansTotal.Inc()
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
