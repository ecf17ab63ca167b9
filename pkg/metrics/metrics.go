package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "queue_provider"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	Messages = "messages"
	Resolver = "resolver"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple worker instances.
type Labels struct {
	Provider    string // Queue backend (e.g., "sqs")
	Environment string // Deployment environment (e.g., "production", "staging")
	Region      string // Cloud region (e.g., "eu-west-1")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Provider != "" {
		labels["provider"] = l.Provider
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	return labels
}

type Metrics struct {
	// Provider calls
	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec

	// Message flow
	messagesSent         prometheus.Counter
	batchEntriesFailed   prometheus.Counter
	messagesReceived     prometheus.Counter
	emptyReceives        prometheus.Counter
	messagesAcknowledged prometheus.Counter

	// Queue identity cache
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	errors *prometheus.CounterVec
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// For metrics with constant labels, use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "calls_total",
			Help:      "Total provider operations by operation and status",
		}, []string{"operation", "status"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "call_duration_seconds",
			Help:      "Provider operation duration in seconds, including long-poll waits",
			// Long polls can take up to 20s
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"operation"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Messages,
			Name:      "sent_total",
			Help:      "Total messages accepted by the queue service",
		}),
		batchEntriesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Messages,
			Name:      "batch_entries_failed_total",
			Help:      "Total batch entries the queue service reported as failed",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Messages,
			Name:      "received_total",
			Help:      "Total messages received from the queue service",
		}),
		emptyReceives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Messages,
			Name:      "empty_receives_total",
			Help:      "Total receive calls that returned no message",
		}),
		messagesAcknowledged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Messages,
			Name:      "acknowledged_total",
			Help:      "Total received messages deleted from the queue",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Resolver,
			Name:      "cache_hits_total",
			Help:      "Queue name lookups served from the local cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Resolver,
			Name:      "cache_misses_total",
			Help:      "Queue name lookups that required a provider call",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total message-level errors by type",
		}, []string{"type"}),
	}

	err := errors.Join(
		reg.Register(m.calls),
		reg.Register(m.callDuration),
		reg.Register(m.messagesSent),
		reg.Register(m.batchEntriesFailed),
		reg.Register(m.messagesReceived),
		reg.Register(m.emptyReceives),
		reg.Register(m.messagesAcknowledged),
		reg.Register(m.cacheHits),
		reg.Register(m.cacheMisses),
		reg.Register(m.errors),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants for message-level errors (call failures are tracked via calls{status="error"}).
const (
	ErrTypeCorruptedMessage = "corrupted_message"
	ErrTypeDecode           = "decode"
)

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// RecordCall records a provider operation outcome.
func (m *Metrics) RecordCall(operation string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.calls.WithLabelValues(operation, status).Inc()
	m.callDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// AddMessagesSent records messages accepted by the service and batch entries it rejected.
func (m *Metrics) AddMessagesSent(sent, failed int) {
	if m == nil {
		return
	}
	m.messagesSent.Add(float64(sent))
	m.batchEntriesFailed.Add(float64(failed))
}

// RecordReceive records the result of a receive call.
func (m *Metrics) RecordReceive(received bool) {
	if m == nil {
		return
	}
	if received {
		m.messagesReceived.Inc()
		return
	}
	m.emptyReceives.Inc()
}

// IncAcknowledged increments the acknowledged messages counter.
func (m *Metrics) IncAcknowledged() {
	if m == nil {
		return
	}
	m.messagesAcknowledged.Inc()
}

// RecordCacheLookup records whether a queue name was served from cache.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}
