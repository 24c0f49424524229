// Package metrics exposes Prometheus instruments and the process-wide
// counter snapshot served by the stats endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatcher metrics
var (
	// ActiveConnections tracks currently registered bidirectional connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulsecast_active_connections",
			Help: "Currently registered bidirectional connections",
		},
	)

	// StreamSubscribers tracks currently subscribed one-way stream clients
	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulsecast_stream_subscribers",
			Help: "Currently subscribed one-way stream clients",
		},
	)

	// TickDuration tracks dispatcher tick processing time in seconds
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulsecast_tick_duration_seconds",
			Help:    "Dispatcher tick processing duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// UpstreamFetchDuration tracks expensive payload fetch latency in seconds
	UpstreamFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulsecast_upstream_fetch_duration_seconds",
			Help:    "Upstream payload fetch duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// DispatcherRunning reports whether the tick dispatcher is running (1) or stopped (0)
	DispatcherRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulsecast_dispatcher_running",
			Help: "Whether the tick dispatcher is running (1) or stopped (0)",
		},
	)
)

// Totals
var (
	// RequestsTotal tracks HTTP requests served
	RequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsecast_requests_total",
			Help: "Total HTTP requests served",
		},
	)

	// ConnectionsAcceptedTotal tracks accepted bidirectional connections
	ConnectionsAcceptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsecast_connections_accepted_total",
			Help: "Total accepted bidirectional connections",
		},
	)

	// MessagesReceivedTotal tracks inbound messages on bidirectional connections
	MessagesReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsecast_messages_received_total",
			Help: "Total inbound messages on bidirectional connections",
		},
	)

	// PayloadsSentTotal tracks payload pushes to connections
	PayloadsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsecast_payloads_sent_total",
			Help: "Total payload pushes to connections",
		},
	)

	// ErrorsTotal tracks errors by kind
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsecast_errors_total",
			Help: "Total errors by kind",
		},
		[]string{"kind"},
	)
)

// Error kinds for ErrorsTotal.
const (
	ErrorKindUpstreamFetch = "upstream_fetch"
	ErrorKindConfigLoad    = "config_load"
	ErrorKindCapacity      = "capacity_exceeded"
	ErrorKindOrigin        = "origin_denied"
	ErrorKindCommand       = "malformed_command"
)
