package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums the counter samples of name whose labels include want.
func counterValue(t *testing.T, registry *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metrics
				}
			}
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	assert.NoError(t, m.Track("audit_record").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("audit_record").End(boom), boom)
	m.AddAffected("sessions_prune", 3)

	assert.Equal(t, 1.0, counterValue(t, registry, "opanel_jobs_total", map[string]string{"job": "audit_record", "status": "success"}))
	assert.Equal(t, 1.0, counterValue(t, registry, "opanel_jobs_total", map[string]string{"job": "audit_record", "status": "failure"}))
	assert.Equal(t, 1.0, counterValue(t, registry, "opanel_jobs_failures_total", map[string]string{"job": "audit_record"}))
	assert.Equal(t, 3.0, counterValue(t, registry, "opanel_job_rows_total", map[string]string{"job": "sessions_prune"}))
}

func TestNilMetricsTracker(t *testing.T) {
	var m *Metrics
	assert.NoError(t, m.Track("x").End(nil))
	m.AddAffected("x", 1)
}
