// Package emsmetrics exposes the server's Prometheus collector: active
// session count, per-opcode request outcomes, and reservation seat
// throughput, registered on an HTTP /metrics endpoint the same way the
// teacher daemon's bfdmetrics package registers BFD session gauges and
// packet counters.
package emsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dantte-lp/goems/internal/frame"
)

const (
	namespace = "goems"
	subsystem = "server"

	labelOpcode  = "opcode"
	labelOutcome = "outcome"
)

// Collector holds every metric goems exports. It implements
// dispatcher.Metrics and acceptor.Metrics structurally; neither package
// needs to import this one.
type Collector struct {
	ActiveSessions    prometheus.Gauge
	SessionsAdmitted  prometheus.Counter
	SessionsCompleted prometheus.Counter
	RequestsTotal     *prometheus.CounterVec
	SeatsReserved     prometheus.Counter
}

// NewCollector builds a Collector and registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := newMetrics()
	reg.MustRegister(
		c.ActiveSessions,
		c.SessionsAdmitted,
		c.SessionsCompleted,
		c.RequestsTotal,
		c.SeatsReserved,
	)
	return c
}

func newMetrics() *Collector {
	return &Collector{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_sessions",
			Help:      "Number of sessions admitted by the acceptor but not yet completed.",
		}),
		SessionsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_admitted_total",
			Help:      "Total number of sessions admitted by the acceptor.",
		}),
		SessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_completed_total",
			Help:      "Total number of sessions a worker finished serving.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of per-session requests handled, by opcode and outcome.",
		}, []string{labelOpcode, labelOutcome}),
		SeatsReserved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "seats_reserved_total",
			Help:      "Total number of individual seats successfully reserved.",
		}),
	}
}

// SessionAdmitted records a session accepted by the Connection Acceptor.
// Implements acceptor.Metrics.
func (c *Collector) SessionAdmitted() {
	c.ActiveSessions.Inc()
	c.SessionsAdmitted.Inc()
}

// SessionEnded records a session a worker finished serving. Implements
// dispatcher.Metrics.
func (c *Collector) SessionEnded() {
	c.ActiveSessions.Dec()
	c.SessionsCompleted.Inc()
}

// RequestHandled records the outcome of one opcode dispatch. Implements
// dispatcher.Metrics.
func (c *Collector) RequestHandled(op frame.Opcode, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	c.RequestsTotal.WithLabelValues(op.String(), outcome).Inc()
}

// RecordSeatsReserved adds n successfully reserved seats to the
// cumulative total. Called by the dispatcher after a successful
// RESERVE.
func (c *Collector) RecordSeatsReserved(n int) {
	c.SeatsReserved.Add(float64(n))
}
