package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/ecosim/components"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeDistribution(t *testing.T) {
	values := []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	mean, std, p10, p50, p90 := ComputeDistribution(values)

	if math.Abs(mean-0.55) > 0.001 {
		t.Errorf("mean = %v, want 0.55", mean)
	}
	// population std of 0.1..1.0
	if math.Abs(std-0.2872) > 0.001 {
		t.Errorf("std = %v, want ~0.287", std)
	}
	if math.Abs(p10-0.19) > 0.01 {
		t.Errorf("p10 = %v, want ~0.19", p10)
	}
	if math.Abs(p50-0.55) > 0.01 {
		t.Errorf("p50 = %v, want ~0.55", p50)
	}
	if math.Abs(p90-0.91) > 0.01 {
		t.Errorf("p90 = %v, want ~0.91", p90)
	}
}

func TestComputeDistributionEmpty(t *testing.T) {
	mean, std, p10, p50, p90 := ComputeDistribution(nil)
	if mean != 0 || std != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty slice should return all zeros")
	}
}

func TestCollector_Flush(t *testing.T) {
	c := NewCollector(10, 0.5)
	c.RecordEmitted(4)
	c.RecordRejected(1)
	c.RecordKilled(2)

	if c.ShouldFlush(9) {
		t.Error("flush before window end")
	}
	if !c.ShouldFlush(10) {
		t.Error("no flush at window end")
	}

	ps := []components.Particle{
		{Position: components.Vec3{X: 1}, Velocity: components.Vec3{X: 3, Y: 4}, Species: 0},
		{Position: components.Vec3{X: -1}, Velocity: components.Vec3{X: -3, Y: -4}, Species: 2},
		{Position: components.Vec3{Y: 2}, Species: 2},
		{Position: components.Vec3{Y: -2}, Species: 2},
	}
	s := c.Flush(10, ps, 3)

	if s.Alive != 4 || s.Emitted != 4 || s.Rejected != 1 || s.Killed != 2 {
		t.Errorf("counts = %+v", s)
	}
	if s.SimTime != 5 {
		t.Errorf("SimTime = %v, want 5", s.SimTime)
	}
	if s.CenterX != 0 || s.CenterY != 0 || s.CenterZ != 0 {
		t.Errorf("centre = (%v,%v,%v), want origin", s.CenterX, s.CenterY, s.CenterZ)
	}
	if math.Abs(s.Spread-1.5) > 1e-9 {
		t.Errorf("Spread = %v, want 1.5", s.Spread)
	}
	if s.Momentum != 0 {
		t.Errorf("Momentum = %v, want 0", s.Momentum)
	}
	if math.Abs(s.SpeedMean-2.5) > 1e-6 {
		t.Errorf("SpeedMean = %v, want 2.5", s.SpeedMean)
	}
	if s.PerSpecies != "1|0|3" {
		t.Errorf("PerSpecies = %q, want 1|0|3", s.PerSpecies)
	}

	next := c.Flush(20, nil, 3)
	if next.Emitted != 0 || next.WindowStartTick != 10 || next.Alive != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
}
