// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

// Package observability provides runtime metrics and the HTTP endpoints
// exposing them.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the runtime's Prometheus metrics. It implements the
// recorder interfaces of both the plugin and the event registry.
type Metrics struct {
	PluginLoadsTotal   *prometheus.CounterVec
	DispatchesTotal    *prometheus.CounterVec
	ListenerFailsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the runtime metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PluginLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chafer_plugin_loads_total",
				Help: "Total number of plugin load attempts by registry and status",
			},
			[]string{"registry", "status"},
		),
		DispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chafer_event_dispatches_total",
				Help: "Total number of event dispatches by event name",
			},
			[]string{"event"},
		),
		ListenerFailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chafer_listener_failures_total",
				Help: "Total number of failed listener invocations by event name",
			},
			[]string{"event"},
		),
	}

	reg.MustRegister(m.PluginLoadsTotal)
	reg.MustRegister(m.DispatchesTotal)
	reg.MustRegister(m.ListenerFailsTotal)

	return m
}

// PluginLoaded implements plugin.Recorder.
func (m *Metrics) PluginLoaded(registry, _ string) {
	m.PluginLoadsTotal.WithLabelValues(registry, "ok").Inc()
}

// PluginLoadFailed implements plugin.Recorder.
func (m *Metrics) PluginLoadFailed(registry, _ string) {
	m.PluginLoadsTotal.WithLabelValues(registry, "error").Inc()
}

// DispatchStarted implements event.Recorder.
func (m *Metrics) DispatchStarted(eventName string, _ int) {
	m.DispatchesTotal.WithLabelValues(eventName).Inc()
}

// ListenerFailed implements event.Recorder.
func (m *Metrics) ListenerFailed(eventName string) {
	m.ListenerFailsTotal.WithLabelValues(eventName).Inc()
}
