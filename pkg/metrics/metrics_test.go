package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMetricsRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := NewMetricFactory(NewPromRegistry(reg, false))
	em := f.NewEngineMetrics()
	wm := f.NewWriterMetrics()

	em.ObserveFetch("github", ResultOK, 10*time.Millisecond)
	em.ObserveFetch("github", ResultFailed, time.Millisecond)
	em.ObserveCycle(ResultOK, time.Second)
	em.SetAssets(4)
	em.FetchStarted()
	wm.SetQueueLength(2)
	wm.ObserveBatch(ResultOK, 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(em.fetches.WithLabelValues("github", ResultFailed)))
	assert.Equal(t, 4.0, testutil.ToFloat64(em.assets))
	assert.Equal(t, 1.0, testutil.ToFloat64(em.inFlight))
	assert.Equal(t, 5.0, testutil.ToFloat64(wm.values.WithLabelValues(ResultOK)))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["wsr_engine_cycle_duration_seconds"])
	assert.True(t, names["wsr_engine_fetch_total"])
	assert.True(t, names["wsr_output_queue_length"])
}

func TestNilMetricsAreNoops(t *testing.T) {
	var em *EngineMetrics
	var wm *WriterMetrics
	assert.NotPanics(t, func() {
		em.ObserveCycle(ResultOK, time.Second)
		em.ObserveFetch("x", ResultOK, time.Second)
		em.FetchStarted()
		em.FetchDone()
		em.SetAssets(1)
		em.ObserveRefresh(ResultOK)
		wm.SetQueueLength(1)
		wm.ObserveBatch(ResultOK, 1)
	})
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	f := NewMetricFactory(NewPromRegistry(prometheus.NewRegistry(), false))
	f.NewEngineMetrics()
	assert.Panics(t, func() { f.NewEngineMetrics() })
}
