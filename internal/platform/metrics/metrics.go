package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the broadcast orchestrator.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	transitionsTotal    *prometheus.CounterVec
	admissionRejections prometheus.Counter
	teardownTimeouts    prometheus.Counter
	reconciliations     prometheus.Counter
	manifestTimeouts    prometheus.Counter
	playerRecoveries    prometheus.Counter
	segmentsRegistered  prometheus.Counter
	scheduledStarts     prometheus.Counter
	sessionMode         *prometheus.GaugeVec
}

// Session modes reported by the session_mode gauge.
var modes = []string{"idle", "preview", "live"}

// New creates and registers Prometheus metrics for the orchestrator.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_session_transitions_total",
			Help: "Committed playback session transitions by target mode",
		}, []string{"to"}),
		admissionRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_admission_rejections_total",
			Help: "Start requests rejected because another timeline holds the session",
		}),
		teardownTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_teardown_timeouts_total",
			Help: "Restarts that proceeded without confirmed encoder teardown",
		}),
		reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_reconciliations_total",
			Help: "Player reconciliations triggered by a cue switch or manifest failure",
		}),
		manifestTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_manifest_timeouts_total",
			Help: "Manifest readiness waits that gave up",
		}),
		playerRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_player_recoveries_total",
			Help: "In-place player recoveries after transient media errors",
		}),
		segmentsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_segments_registered_total",
			Help: "Total number of preview segments successfully registered",
		}),
		scheduledStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_scheduled_starts_total",
			Help: "Timelines started by the scheduler",
		}),
		sessionMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orchestrator_session_mode",
			Help: "1 for the current playback session mode, 0 otherwise",
		}, []string{"mode"}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.transitionsTotal,
		m.admissionRejections,
		m.teardownTimeouts,
		m.reconciliations,
		m.manifestTimeouts,
		m.playerRecoveries,
		m.segmentsRegistered,
		m.scheduledStarts,
		m.sessionMode,
	)
	m.SetSessionMode("idle")

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m != nil {
		m.requestsTotal.Inc()
	}
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m != nil {
		m.errorsTotal.Inc()
	}
}

// ObserveTransition counts a committed transition and updates the mode gauge.
func (m *Metrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to).Inc()
	m.SetSessionMode(to)
}

// SetSessionMode sets the mode gauge so exactly one mode reads 1.
func (m *Metrics) SetSessionMode(mode string) {
	if m == nil {
		return
	}
	for _, md := range modes {
		v := 0.0
		if md == mode {
			v = 1
		}
		m.sessionMode.WithLabelValues(md).Set(v)
	}
}

// IncAdmissionRejections counts a SessionBusy rejection.
func (m *Metrics) IncAdmissionRejections() {
	if m != nil {
		m.admissionRejections.Inc()
	}
}

// IncTeardownTimeouts counts a restart that did not see teardown confirmed.
func (m *Metrics) IncTeardownTimeouts() {
	if m != nil {
		m.teardownTimeouts.Inc()
	}
}

// IncReconciliations counts a started reconciliation.
func (m *Metrics) IncReconciliations() {
	if m != nil {
		m.reconciliations.Inc()
	}
}

// IncManifestTimeouts counts a manifest wait that gave up.
func (m *Metrics) IncManifestTimeouts() {
	if m != nil {
		m.manifestTimeouts.Inc()
	}
}

// IncPlayerRecoveries counts an in-place player recovery.
func (m *Metrics) IncPlayerRecoveries() {
	if m != nil {
		m.playerRecoveries.Inc()
	}
}

// IncSegmentsRegistered increments the segments registered counter.
func (m *Metrics) IncSegmentsRegistered() {
	if m != nil {
		m.segmentsRegistered.Inc()
	}
}

// IncScheduledStarts counts a scheduler-initiated start.
func (m *Metrics) IncScheduledStarts() {
	if m != nil {
		m.scheduledStarts.Inc()
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
// A nil Metrics serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
