package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*EngineMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := NewEngineMetrics(MetricsConfig{
		ServiceName: "test",
		Registerer:  reg,
	})
	require.NoError(t, err)
	return m, reg
}

func TestRecordRequest(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordRequest("tools/call", StatusSuccess, 15*time.Millisecond)
	m.RecordRequest("tools/call", StatusError, 5*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "duplex_request_total" {
			found = true
			var total float64
			for _, metric := range mf.GetMetric() {
				total += metric.GetCounter().GetValue()
			}
			assert.Equal(t, 2.0, total)
		}
	}
	assert.True(t, found, "duplex_request_total not gathered")
}

func TestPendingRequestsGauge(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.PendingRequestsAdd(1)
	m.PendingRequestsAdd(1)
	m.PendingRequestsAdd(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pendingRequests))
}

func TestNilMetricsSafe(t *testing.T) {
	var m *EngineMetrics

	// All recording methods must be no-ops on a nil receiver so the engine
	// can run without metrics wired.
	m.RecordRequest("x", StatusSuccess, time.Millisecond)
	m.RecordNotification("x", StatusSuccess)
	m.RecordIncomingRequest("x", StatusError, time.Millisecond)
	m.RecordIncomingNotification("x", StatusSuccess)
	m.PendingRequestsAdd(1)
	m.RecordError("remote", "x")
}

func TestDuplicateRegistrationTolerated(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := MetricsConfig{Registerer: reg}

	_, err := NewEngineMetrics(cfg)
	require.NoError(t, err)
	_, err = NewEngineMetrics(cfg)
	assert.NoError(t, err)
}
