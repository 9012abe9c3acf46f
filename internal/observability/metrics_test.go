package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.PointsWritten.Add(3)
	a.Cycles.WithLabelValues("written").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(a.PointsWritten))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PointsWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Cycles.WithLabelValues("written")))
}

func TestMetrics_RegisterOnFreshRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	require.NoError(t, registerAll(reg, m))

	m.Cycles.WithLabelValues("throttled").Inc()
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "metoffice2influx_cycles_total")
	assert.Contains(t, names, "metoffice2influx_points_written_total")
	assert.Contains(t, names, "metoffice2influx_scheduler_running")
}

func registerAll(reg prometheus.Registerer, m *Metrics) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
