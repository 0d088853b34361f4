package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewEngineMetrics(registry)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	metrics.RecordRun("success", 120*time.Millisecond)
	metrics.RecordEvaluation("user_inactive", 3)
	metrics.RecordThrottleDenial("daily_limit")
	metrics.RecordThrottleOverride()
	metrics.RecordDispatch("sent", 2, 1)
	metrics.RecordGatewayDelivery("webhook", 40*time.Millisecond)
	metrics.RecordTriggerFailure("user_inactive", "trigger-evaluation")

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["nudge_runner_runs_total"])
	assert.True(t, names["nudge_throttle_denials_total"])
	assert.True(t, names["nudge_dispatch_total"])
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *EngineMetrics

	assert.NotPanics(t, func() {
		metrics.RecordRun("success", time.Second)
		metrics.RecordEvaluation("user_inactive", 0)
		metrics.RecordThrottleDenial("cooldown")
		metrics.RecordThrottleOverride()
		metrics.RecordDispatch("failed", 0, 1)
		metrics.RecordGatewayDelivery("shoutrrr", time.Second)
		metrics.RecordTriggerFailure("milestone_reached", "configuration")
	})
}
