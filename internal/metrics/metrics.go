// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exports transaction counters and latencies to Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

const namespace = "dobotlink"

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics records every transaction of a dobot.Conn. It implements
// dobot.Observer.
type Metrics struct {
	Transactions  *prometheus.CounterVec   // labels: command, result
	Duration      *prometheus.HistogramVec // labels: command
	BytesSent     prometheus.Counter
	BytesReceived prometheus.Counter
	QueueIndex    prometheus.Gauge // last queued command index reported by the controller
}

// New registers and returns the transaction metrics
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Command transactions by command and result.",
		}, []string{"command", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Time from request write to validated reply.",
			Buckets:   []float64{.002, .005, .01, .02, .05, .1, .2, .5, 1},
		}, []string{"command"}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_bytes_sent_total",
			Help:      "Request frame bytes written.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_bytes_received_total",
			Help:      "Reply frame bytes read.",
		}),
		QueueIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_index",
			Help:      "Queue index of the last queued command.",
		}),
	}
	reg.MustRegister(m.Transactions, m.Duration, m.BytesSent, m.BytesReceived, m.QueueIndex)
	return m
}

// ObserveTransaction implements dobot.Observer
func (m *Metrics) ObserveTransaction(e dobot.TransactionEvent) {
	command := e.Command
	if command == "" {
		command = "raw"
	}
	m.Transactions.WithLabelValues(command, Result(e.Err)).Inc()
	m.BytesSent.Add(float64(len(e.Request)))
	m.BytesReceived.Add(float64(len(e.Response)))

	if !e.OK() {
		return
	}
	m.Duration.WithLabelValues(command).Observe(e.Duration.Seconds())

	if e.Control&dobot.ControlQueued == 0 {
		return
	}
	reply, err := dobot.ParseFrame(e.Response)
	if err != nil {
		return
	}
	if values, err := dobot.Decode(reply.Payload, dobot.QueueIndexSchema); err == nil {
		m.QueueIndex.Set(float64(values[0].(uint64)))
	}
}

// Result classifies err into a low-cardinality label value
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dobot.ErrTimeout):
		return "timeout"
	case errors.Is(err, dobot.ErrChecksum):
		return "checksum"
	case errors.Is(err, dobot.ErrFraming):
		return "framing"
	case errors.Is(err, dobot.ErrTransport):
		return "transport"
	case errors.Is(err, dobot.ErrSchemaMismatch), errors.Is(err, dobot.ErrTruncatedPayload):
		return "schema"
	case errors.Is(err, dobot.ErrUnknownCommand):
		return "unknown"
	case errors.Is(err, dobot.ErrConnectionClosed):
		return "closed"
	default:
		return "error"
	}
}
