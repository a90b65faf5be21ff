// Package metrics exposes Prometheus counters for the command pipeline and
// the redirect surface. Every method is safe on a nil *Metrics, which
// records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rgo"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	commands       *prometheus.CounterVec
	commandErrors  *prometheus.CounterVec
	decodeFailures prometheus.Counter
	channelErrors  prometheus.Counter
	redirects      *prometheus.CounterVec
	persistFails   prometheus.Counter
	links          prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands applied, by kind.",
		}, []string{"kind"}),
		commandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Commands that failed to apply, by kind.",
		}, []string{"kind"}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Channel payloads that did not decode.",
		}),
		channelErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_errors_total",
			Help:      "Failed reads from the command channel.",
		}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirect lookups, by result (hit or miss).",
		}, []string{"result"}),
		persistFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Snapshot writes that failed.",
		}),
		links: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "links",
			Help:      "Links currently stored.",
		}),
	}
	m.registry.MustRegister(
		m.commands,
		m.commandErrors,
		m.decodeFailures,
		m.channelErrors,
		m.redirects,
		m.persistFails,
		m.links,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CommandApplied(kind string) {
	if m != nil {
		m.commands.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) CommandFailed(kind string) {
	if m != nil {
		m.commandErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) DecodeFailed() {
	if m != nil {
		m.decodeFailures.Inc()
	}
}

func (m *Metrics) ChannelFailed() {
	if m != nil {
		m.channelErrors.Inc()
	}
}

func (m *Metrics) PersistFailed() {
	if m != nil {
		m.persistFails.Inc()
	}
}

// Redirect records a lookup result.
func (m *Metrics) Redirect(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.redirects.WithLabelValues(result).Inc()
}

// SetLinks records the current store size.
func (m *Metrics) SetLinks(n int) {
	if m != nil {
		m.links.Set(float64(n))
	}
}
