package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MetricsConfig configures the engine metrics
type MetricsConfig struct {
	// Service identification
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Prometheus namespace (default: duplex)
	Namespace string
	Subsystem string

	// Custom histogram buckets for latency, in milliseconds
	HistogramBuckets []float64

	// Labels to add to all metrics
	ConstLabels prometheus.Labels

	// Registerer receives the collectors; defaults to the process-wide
	// registry. Tests pass their own to avoid collisions.
	Registerer prometheus.Registerer
}

// EngineMetrics tracks protocol traffic through one or more engines
type EngineMetrics struct {
	requestDuration         *prometheus.HistogramVec
	requestTotal            *prometheus.CounterVec
	notificationTotal       *prometheus.CounterVec
	incomingRequestDuration *prometheus.HistogramVec
	incomingRequestTotal    *prometheus.CounterVec
	incomingNotifTotal      *prometheus.CounterVec
	pendingRequests         prometheus.Gauge
	errorTotal              *prometheus.CounterVec
}

// NewEngineMetrics creates and registers the engine metric collectors
func NewEngineMetrics(config MetricsConfig) (*EngineMetrics, error) {
	if config.Namespace == "" {
		config.Namespace = "duplex"
	}
	if config.HistogramBuckets == nil {
		// Default buckets for milliseconds
		config.HistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}

	if config.ConstLabels == nil {
		config.ConstLabels = prometheus.Labels{}
	}
	if config.ServiceName != "" {
		config.ConstLabels["service"] = config.ServiceName
	}
	if config.ServiceVersion != "" {
		config.ConstLabels["version"] = config.ServiceVersion
	}
	if config.Environment != "" {
		config.ConstLabels["environment"] = config.Environment
	}

	m := &EngineMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "request_duration_milliseconds",
				Help:        "Duration of outbound requests in milliseconds",
				Buckets:     config.HistogramBuckets,
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "request_total",
				Help:        "Total number of outbound requests",
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "status"},
		),
		notificationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "notification_total",
				Help:        "Total number of outbound notifications",
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "status"},
		),
		incomingRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "incoming_request_duration_milliseconds",
				Help:        "Duration of inbound request handling in milliseconds",
				Buckets:     config.HistogramBuckets,
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "status"},
		),
		incomingRequestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "incoming_request_total",
				Help:        "Total number of inbound requests",
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "status"},
		),
		incomingNotifTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "incoming_notification_total",
				Help:        "Total number of inbound notifications",
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "status"},
		),
		pendingRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "pending_requests",
				Help:        "Number of outbound requests awaiting a response",
				ConstLabels: config.ConstLabels,
			},
		),
		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "error_total",
				Help:        "Total number of protocol errors",
				ConstLabels: config.ConstLabels,
			},
			[]string{"type", "method"},
		),
	}

	collectors := []prometheus.Collector{
		m.requestDuration,
		m.requestTotal,
		m.notificationTotal,
		m.incomingRequestDuration,
		m.incomingRequestTotal,
		m.incomingNotifTotal,
		m.pendingRequests,
		m.errorTotal,
	}
	for _, collector := range collectors {
		if err := config.Registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, fmt.Errorf("failed to register metrics: %w", err)
			}
		}
	}

	return m, nil
}

// RecordRequest records a completed outbound request
func (m *EngineMetrics) RecordRequest(method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	ms := float64(duration.Milliseconds())
	m.requestDuration.WithLabelValues(method, status).Observe(ms)
	m.requestTotal.WithLabelValues(method, status).Inc()
}

// RecordNotification records an outbound notification
func (m *EngineMetrics) RecordNotification(method, status string) {
	if m == nil {
		return
	}
	m.notificationTotal.WithLabelValues(method, status).Inc()
}

// RecordIncomingRequest records a handled inbound request
func (m *EngineMetrics) RecordIncomingRequest(method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	ms := float64(duration.Milliseconds())
	m.incomingRequestDuration.WithLabelValues(method, status).Observe(ms)
	m.incomingRequestTotal.WithLabelValues(method, status).Inc()
}

// RecordIncomingNotification records a handled inbound notification
func (m *EngineMetrics) RecordIncomingNotification(method, status string) {
	if m == nil {
		return
	}
	m.incomingNotifTotal.WithLabelValues(method, status).Inc()
}

// PendingRequestsAdd adjusts the pending-request gauge
func (m *EngineMetrics) PendingRequestsAdd(delta float64) {
	if m == nil {
		return
	}
	m.pendingRequests.Add(delta)
}

// RecordError counts one protocol error by kind and method
func (m *EngineMetrics) RecordError(errType, method string) {
	if m == nil {
		return
	}
	m.errorTotal.WithLabelValues(errType, method).Inc()
}
