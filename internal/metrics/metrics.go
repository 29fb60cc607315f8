// Package metrics exposes Prometheus collectors for webhook and workflow activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lineassist"

// Result labels for workflow outcomes.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds the process collectors.
//
// A nil *Metrics is valid and records nothing, so services can be built
// without a registry in tests.
type Metrics struct {
	// EventsReceived counts inbound webhook events.
	// Labels: type (message|follow|unfollow|join|leave|postback|unknown)
	EventsReceived *prometheus.CounterVec

	// WorkflowOutcomes counts finished workflows.
	// Labels: workflow, result (success|error), kind
	WorkflowOutcomes *prometheus.CounterVec

	// CompletionDuration measures completion calls in seconds.
	// Labels: model, status (success|error)
	CompletionDuration *prometheus.HistogramVec

	// ContentBytes observes the size of fetched message content.
	ContentBytes prometheus.Histogram

	// InflightWorkflows tracks workflows currently running.
	InflightWorkflows prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg selects
// the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		EventsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Total number of webhook events received by event type",
			},
			[]string{"type"},
		),
		WorkflowOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_outcomes_total",
				Help:      "Total number of finished workflows by workflow, result, and error kind",
			},
			[]string{"workflow", "result", "kind"},
		),
		CompletionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "completion_duration_seconds",
				Help:      "Duration of completion requests in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model", "status"},
		),
		ContentBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "content_fetch_bytes",
				Help:      "Size of fetched message content in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		InflightWorkflows: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workflows_inflight",
				Help:      "Number of workflows currently running",
			},
		),
	}
}

func (m *Metrics) EventReceived(eventType string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(eventType).Inc()
}

// WorkflowFinished records one workflow outcome. kind is empty on success.
func (m *Metrics) WorkflowFinished(workflow, kind string) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if kind != "" {
		result = ResultError
	}
	m.WorkflowOutcomes.WithLabelValues(workflow, result, kind).Inc()
}

func (m *Metrics) ObserveCompletion(model string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := ResultSuccess
	if err != nil {
		status = ResultError
	}
	m.CompletionDuration.WithLabelValues(model, status).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveContent(size int) {
	if m == nil {
		return
	}
	m.ContentBytes.Observe(float64(size))
}

func (m *Metrics) WorkflowStarted() {
	if m == nil {
		return
	}
	m.InflightWorkflows.Inc()
}

func (m *Metrics) WorkflowDone() {
	if m == nil {
		return
	}
	m.InflightWorkflows.Dec()
}
