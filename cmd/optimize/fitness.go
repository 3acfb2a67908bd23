package main

import (
	"context"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/ecosim/config"
	"github.com/pthm-cable/ecosim/game"
	"github.com/pthm-cable/ecosim/telemetry"
)

// FitnessEvaluator runs headless simulations and scores how lively and
// cohesive the resulting swarm is.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int64
	seeds       []int64
	baseConfig  *config.Config
	statsWindow int

	// TargetSpread is the mean distance from the center of mass the swarm
	// should settle at.
	TargetSpread float64

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:       params,
		maxTicks:     maxTicks,
		seeds:        seeds,
		baseConfig:   baseCfg,
		statsWindow:  100,
		TargetSpread: baseCfg.Emitter.Radius * 0.5,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is negative quality averaged over seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	qualities := make([]float64, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			windows, err := fe.runSimulation(x, s)
			if err != nil {
				return // zero quality
			}
			qualities[idx] = fe.computeQuality(windows)
		}(i, seed)
	}
	wg.Wait()

	q := stat.Mean(qualities, nil)

	fe.mu.Lock()
	fe.lastQuality = q
	fe.mu.Unlock()

	return -q
}

// runSimulation executes a single headless simulation run and returns its
// stats windows.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) ([]telemetry.WindowStats, error) {
	cfg := fe.baseConfig.Clone()
	// Seeds already run concurrently.
	cfg.Simulation.Parallel = false
	cfg.Telemetry.StatsWindowTicks = fe.statsWindow
	cfg.Telemetry.LogStats = false
	cfg.Metrics.Enabled = false
	cfg.Stream.Enabled = false
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		return nil, err
	}

	g, err := game.NewGameWithOptions(cfg, game.Options{Seed: seed, StepsPerUpdate: 1})
	if err != nil {
		return nil, err
	}
	defer g.Unload()

	var windows []telemetry.WindowStats
	g.SetStatsCallback(func(stats telemetry.WindowStats) {
		windows = append(windows, stats)
	})

	if err := g.RunTicks(context.Background(), fe.maxTicks); err != nil {
		return nil, err
	}
	return windows, nil
}

// Quality component weights.
const (
	qualityWeightRetention = 0.30
	qualityWeightSpread    = 0.30
	qualityWeightStability = 0.20
	qualityWeightActivity  = 0.20

	qualityWarmupWindows = 3 // skip first N windows (warmup)
)

// computeQuality computes swarm quality in [0, 1] from window stats:
// particles stay alive, the swarm holds TargetSpread, its size is stable
// and it keeps moving.
func (fe *FitnessEvaluator) computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var emitted, killed int
	for _, w := range windows {
		emitted += w.Emitted
		killed += w.Killed
	}
	if emitted == 0 {
		return 0
	}
	retention := 1 - float64(killed)/float64(emitted)

	spreads := make([]float64, len(valid))
	speeds := make([]float64, len(valid))
	for i, w := range valid {
		spreads[i] = w.Spread
		speeds[i] = w.SpeedMean
	}

	meanSpread := stat.Mean(spreads, nil)
	spreadErr := (meanSpread - fe.TargetSpread) / math.Max(fe.TargetSpread, 1e-6)
	spreadScore := math.Exp(-spreadErr * spreadErr)

	c := cv(spreads)
	stabilityScore := math.Exp(-c * c * 10)

	// Speed relative to what drag allows at the target spread per tick.
	activityScore := 1 - math.Exp(-stat.Mean(speeds, nil)/(fe.TargetSpread*1e-3))

	quality := qualityWeightRetention*retention +
		qualityWeightSpread*spreadScore +
		qualityWeightStability*stabilityScore +
		qualityWeightActivity*activityScore

	return clamp01(quality)
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}
