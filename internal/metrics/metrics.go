// Package metrics exposes the engine's Prometheus instruments. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "noisepanel"

// Metrics holds the panel's collectors
type Metrics struct {
	registry *prometheus.Registry

	polls        *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	commands     *prometheus.CounterVec
	notices      *prometheus.CounterVec
	viewState    prometheus.Gauge
	deviceUp     prometheus.Gauge
}

// New creates and registers the collectors on a fresh registry that also
// carries the Go runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the collectors on reg
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll task runs by task and result (ok, error, skipped).",
		}, []string{"task", "result"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of poll task runs.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"task"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Device commands sent by debounce group and result.",
		}, []string{"group", "result"}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_total",
			Help:      "One-shot notifications fired by kind.",
		}, []string{"kind"}),
		viewState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_state",
			Help:      "Current view state (0 logged out, 1 unauthorized, 2 admin).",
		}),
		deviceUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_up",
			Help:      "1 when the last status poll reached the device.",
		}),
	}
	reg.MustRegister(m.polls, m.pollDuration, m.commands, m.notices, m.viewState, m.deviceUp)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObservePoll records one poll task outcome
func (m *Metrics) ObservePoll(task string, elapsed time.Duration, err error, skipped bool) {
	if m == nil {
		return
	}
	if skipped {
		m.polls.WithLabelValues(task, "skipped").Inc()
		return
	}
	m.polls.WithLabelValues(task, result(err)).Inc()
	m.pollDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// ObserveCommand records one sent command
func (m *Metrics) ObserveCommand(group string, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(group, result(err)).Inc()
}

// ObserveNotice records a fired notification
func (m *Metrics) ObserveNotice(kind string) {
	if m == nil {
		return
	}
	m.notices.WithLabelValues(kind).Inc()
}

// SetViewState records the current view state ordinal
func (m *Metrics) SetViewState(state int) {
	if m == nil {
		return
	}
	m.viewState.Set(float64(state))
}

// SetDeviceUp records whether the device answered the last status poll
func (m *Metrics) SetDeviceUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.deviceUp.Set(1)
	} else {
		m.deviceUp.Set(0)
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
