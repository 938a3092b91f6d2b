package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains connector-level metrics shared by all components
type Metrics struct {
	EventsReceived     *prometheus.CounterVec
	EventsProcessed    *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	NATSConnected      prometheus.Gauge
	LastSyncTimestamp  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all connector metrics
func NewMetrics() *Metrics {
	return &Metrics{
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "connector",
				Subsystem: "events",
				Name:      "received_total",
				Help:      "Total number of capability events received from the bus",
			},
			[]string{"class"},
		),

		EventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "connector",
				Subsystem: "events",
				Name:      "processed_total",
				Help:      "Total number of capability events processed by terminal state",
			},
			[]string{"class", "status"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "connector",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Event processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "connector",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "connector",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		LastSyncTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "connector",
				Subsystem: "sync",
				Name:      "last_timestamp_seconds",
				Help:      "Unix timestamp of the last successful sync heartbeat",
			},
		),
	}
}

// RecordEventReceived increments the received event counter
func (c *Metrics) RecordEventReceived(class string) {
	c.EventsReceived.WithLabelValues(class).Inc()
}

// RecordEventProcessed increments the processed event counter
func (c *Metrics) RecordEventProcessed(class, status string) {
	c.EventsProcessed.WithLabelValues(class, status).Inc()
}

// RecordProcessingDuration records processing time for an operation
func (c *Metrics) RecordProcessingDuration(operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError increments the error counter
func (c *Metrics) RecordError(component, errorType string) {
	c.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordNATSStatus updates the NATS connection gauge
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordLastSync updates the last-sync heartbeat gauge
func (c *Metrics) RecordLastSync(t time.Time) {
	c.LastSyncTimestamp.Set(float64(t.Unix()))
}
