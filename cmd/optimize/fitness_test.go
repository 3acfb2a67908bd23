package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/ecosim/config"
	"github.com/pthm-cable/ecosim/telemetry"
)

func TestParamVector_RoundTrip(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	pv := NewParamVector(cfg)
	assert.Equal(t, 2*len(cfg.Social)+len(cfg.Species), pv.Dim())

	def := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		assert.InDelta(t, def[i], back[i], 1e-9, pv.Specs[i].Name)
	}
	assert.Equal(t, def, pv.ExtractFromConfig(cfg))
}

func TestParamVector_ApplyClampsRange(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	pv := NewParamVector(cfg)

	c := cfg.Clone()
	x := pv.DefaultVector()
	x[1] = 10 // first range, far beyond the cell size
	require.NoError(t, pv.ApplyToConfig(c, x))

	assert.Equal(t, cfg.Index.CellSize, c.Social[0].Range)
	assert.Equal(t, cfg.Index.CellSize, c.Derived.MaxSocialRange)
}

func TestComputeQuality(t *testing.T) {
	fe := &FitnessEvaluator{TargetSpread: 0.5}

	assert.Zero(t, fe.computeQuality(nil))

	steady := make([]telemetry.WindowStats, 10)
	for i := range steady {
		steady[i] = telemetry.WindowStats{Alive: 100, Spread: 0.5, SpeedMean: 0.01}
	}
	steady[0].Emitted = 100

	dying := make([]telemetry.WindowStats, 10)
	copy(dying, steady)
	dying[5].Killed = 90
	for i := range dying {
		dying[i].Spread = 2
	}

	good := fe.computeQuality(steady)
	bad := fe.computeQuality(dying)
	assert.Greater(t, good, 0.9)
	assert.Less(t, bad, good)
}

func TestCV(t *testing.T) {
	assert.Zero(t, cv(nil))
	assert.Zero(t, cv([]float64{3, 3, 3}))
	assert.InDelta(t, 0.5, cv([]float64{1, 3}), 1e-9)
}
