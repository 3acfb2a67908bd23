package telemetry

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.SetPopulation(12, 3)
	m.AddEmitted(5)
	m.IncRejected()
	m.AddKilled(2)
	m.IncDispatch()
	m.ObserveTick(time.Millisecond)
	m.ObserveStage("social", time.Microsecond)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.Alive))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Pending))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Emitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Killed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ticks))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageSeconds))
}

func TestMetrics_RegisterTwiceReuses(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewMetrics(reg)
	require.NoError(t, err)
	b, err := NewMetrics(reg)
	require.NoError(t, err)

	a.AddEmitted(1)
	b.AddEmitted(1)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.Emitted))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetPopulation(1, 1)
		m.AddEmitted(1)
		m.IncRejected()
		m.ObserveTick(time.Second)
		m.ObserveStage("kill", time.Second)
	})
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	m.SetPopulation(7, 0)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ecosim_particles_alive 7")
}

func TestMetrics_Families(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	m.ObserveStage("publish", time.Millisecond)
	m.ObserveStage("kill", time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	types := map[string]dto.MetricType{}
	var stages *dto.MetricFamily
	for _, mf := range families {
		types[mf.GetName()] = mf.GetType()
		if mf.GetName() == "ecosim_stage_duration_seconds" {
			stages = mf
		}
	}

	assert.Equal(t, dto.MetricType_GAUGE, types["ecosim_particles_alive"])
	assert.Equal(t, dto.MetricType_COUNTER, types["ecosim_ticks_total"])
	assert.Equal(t, dto.MetricType_HISTOGRAM, types["ecosim_tick_duration_seconds"])
	require.NotNil(t, stages)
	assert.Len(t, stages.GetMetric(), 2)
	for _, metric := range stages.GetMetric() {
		assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
	}
}
