// Package observability provides Prometheus metrics for the trigger engine.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains all Prometheus metrics related to trigger evaluation,
// throttling and notification delivery.
type EngineMetrics struct {
	// Runner metrics
	RunsTotal       *prometheus.CounterVec // runs by outcome
	RunDuration     prometheus.Histogram   // full run latency
	TriggerFailures *prometheus.CounterVec // per-trigger evaluation failures

	// Evaluator metrics
	EvaluationsTotal *prometheus.CounterVec // evaluations by trigger type
	EligibleUsers    *prometheus.HistogramVec

	// Throttle metrics
	ThrottleDenialsTotal   *prometheus.CounterVec // denials by reason
	ThrottleOverridesTotal prometheus.Counter

	// Dispatch metrics
	DispatchTotal           *prometheus.CounterVec // dispatches by status
	GatewayDeliveryDuration *prometheus.HistogramVec
	RecipientsDelivered     prometheus.Counter
	RecipientsFailed        prometheus.Counter

	registry *prometheus.Registry
}

// NewEngineMetrics creates and registers engine metrics on the given registry.
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize engine metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() error {
	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_runner_runs_total",
			Help: "Total runner invocations by outcome",
		},
		[]string{"outcome"}, // outcome: success, partial, error
	)

	m.RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nudge_runner_run_duration_seconds",
			Help:    "Time taken for a full runner invocation",
			Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
	)

	m.TriggerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_trigger_failures_total",
			Help: "Trigger evaluation failures by trigger type and failure category",
		},
		[]string{"trigger_type", "category"}, // category: configuration, query
	)

	m.EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_trigger_evaluations_total",
			Help: "Trigger evaluations by trigger type",
		},
		[]string{"trigger_type"},
	)

	m.EligibleUsers = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nudge_trigger_eligible_users",
			Help:    "Eligible user count per evaluation by trigger type",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"trigger_type"},
	)

	m.ThrottleDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_throttle_denials_total",
			Help: "Throttle gate denials by reason",
		},
		[]string{"reason"}, // reason: daily_limit, cooldown
	)

	m.ThrottleOverridesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nudge_throttle_overrides_total",
			Help: "Sends allowed past throttle limits by priority override",
		},
	)

	m.DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_dispatch_total",
			Help: "Notification dispatches by final status",
		},
		[]string{"status"}, // status: sent, failed, empty
	)

	m.GatewayDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nudge_gateway_delivery_duration_seconds",
			Help:    "Time taken for a gateway send by provider",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"provider"},
	)

	m.RecipientsDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nudge_recipients_delivered_total",
			Help: "Recipients the gateway confirmed delivery for",
		},
	)

	m.RecipientsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nudge_recipients_failed_total",
			Help: "Recipients the gateway reported a per-recipient error for",
		},
	)

	return nil
}

// RecordRun records one completed runner invocation.
func (m *EngineMetrics) RecordRun(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

// RecordTriggerFailure records a per-trigger evaluation failure.
func (m *EngineMetrics) RecordTriggerFailure(triggerType, category string) {
	if m == nil {
		return
	}
	m.TriggerFailures.WithLabelValues(triggerType, category).Inc()
}

// RecordEvaluation records one evaluator pass and its eligible-user count.
func (m *EngineMetrics) RecordEvaluation(triggerType string, eligible int) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(triggerType).Inc()
	m.EligibleUsers.WithLabelValues(triggerType).Observe(float64(eligible))
}

// RecordThrottleDenial records a throttle gate denial.
func (m *EngineMetrics) RecordThrottleDenial(reason string) {
	if m == nil {
		return
	}
	m.ThrottleDenialsTotal.WithLabelValues(reason).Inc()
}

// RecordThrottleOverride records a send allowed past limits by priority.
func (m *EngineMetrics) RecordThrottleOverride() {
	if m == nil {
		return
	}
	m.ThrottleOverridesTotal.Inc()
}

// RecordDispatch records the final status of one dispatched notification and
// its per-recipient outcome counts.
func (m *EngineMetrics) RecordDispatch(status string, delivered, failed int) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(status).Inc()
	m.RecipientsDelivered.Add(float64(delivered))
	m.RecipientsFailed.Add(float64(failed))
}

// RecordGatewayDelivery records the latency of one gateway send.
func (m *EngineMetrics) RecordGatewayDelivery(provider string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GatewayDeliveryDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RunsTotal.Describe(ch)
	m.RunDuration.Describe(ch)
	m.TriggerFailures.Describe(ch)
	m.EvaluationsTotal.Describe(ch)
	m.EligibleUsers.Describe(ch)
	m.ThrottleDenialsTotal.Describe(ch)
	m.ThrottleOverridesTotal.Describe(ch)
	m.DispatchTotal.Describe(ch)
	m.GatewayDeliveryDuration.Describe(ch)
	m.RecipientsDelivered.Describe(ch)
	m.RecipientsFailed.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RunsTotal.Collect(ch)
	m.RunDuration.Collect(ch)
	m.TriggerFailures.Collect(ch)
	m.EvaluationsTotal.Collect(ch)
	m.EligibleUsers.Collect(ch)
	m.ThrottleDenialsTotal.Collect(ch)
	m.ThrottleOverridesTotal.Collect(ch)
	m.DispatchTotal.Collect(ch)
	m.GatewayDeliveryDuration.Collect(ch)
	m.RecipientsDelivered.Collect(ch)
	m.RecipientsFailed.Collect(ch)
}
