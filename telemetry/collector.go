package telemetry

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/ecosim/components"
)

// Collector accumulates events within tick windows and produces WindowStats.
type Collector struct {
	windowTicks int64
	dt          float32

	windowStartTick int64

	emitted  int
	rejected int
	killed   int

	// scratch reused across flushes
	xs, ys, zs []float64
	vxs, vys   []float64
	vzs        []float64
	speeds     []float64
	dists      []float64
	counts     []int
}

// NewCollector creates a stats collector that flushes every windowTicks ticks.
// dt converts ticks to simulation time.
func NewCollector(windowTicks int64, dt float32) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowTicks: windowTicks,
		dt:          dt,
		counts:      make([]int, components.MaxSpecies),
	}
}

// RecordEmitted adds drained emissions.
func (c *Collector) RecordEmitted(n int) { c.emitted += n }

// RecordRejected adds rejected emissions.
func (c *Collector) RecordRejected(n int) { c.rejected += n }

// RecordKilled adds removed particles.
func (c *Collector) RecordKilled(n int) { c.killed += n }

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowTicks
}

// WindowTicks returns the number of ticks per window.
func (c *Collector) WindowTicks() int64 { return c.windowTicks }

// Flush produces WindowStats from the published particles and resets the
// event counters for the next window. numSpecies limits the per-species
// column.
func (c *Collector) Flush(currentTick int64, ps []components.Particle, numSpecies int) WindowStats {
	n := len(ps)
	c.xs, c.ys, c.zs = resize(c.xs, n), resize(c.ys, n), resize(c.zs, n)
	c.vxs, c.vys, c.vzs = resize(c.vxs, n), resize(c.vys, n), resize(c.vzs, n)
	c.speeds, c.dists = resize(c.speeds, n), resize(c.dists, n)
	clear(c.counts)

	for i := range ps {
		p := &ps[i]
		c.xs[i], c.ys[i], c.zs[i] = float64(p.Position.X), float64(p.Position.Y), float64(p.Position.Z)
		c.vxs[i], c.vys[i], c.vzs[i] = float64(p.Velocity.X), float64(p.Velocity.Y), float64(p.Velocity.Z)
		c.speeds[i] = float64(p.Velocity.Len())
		if int(p.Species) < len(c.counts) {
			c.counts[p.Species]++
		}
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTime:         float64(currentTick) * float64(c.dt),
		Alive:           n,
		Emitted:         c.emitted,
		Rejected:        c.rejected,
		Killed:          c.killed,
	}

	if n > 0 {
		inv := 1 / float64(n)
		stats.CenterX = floats.Sum(c.xs) * inv
		stats.CenterY = floats.Sum(c.ys) * inv
		stats.CenterZ = floats.Sum(c.zs) * inv

		mx, my, mz := floats.Sum(c.vxs)*inv, floats.Sum(c.vys)*inv, floats.Sum(c.vzs)*inv
		stats.Momentum = math.Sqrt(mx*mx + my*my + mz*mz)

		for i := range c.dists {
			dx, dy, dz := c.xs[i]-stats.CenterX, c.ys[i]-stats.CenterY, c.zs[i]-stats.CenterZ
			c.dists[i] = math.Sqrt(dx*dx + dy*dy + dz*dz)
		}
		stats.Spread = stat.Mean(c.dists, nil)

		stats.SpeedMean, stats.SpeedStd, stats.SpeedP10, stats.SpeedP50, stats.SpeedP90 = ComputeDistribution(c.speeds)
	}

	if numSpecies > len(c.counts) {
		numSpecies = len(c.counts)
	}
	stats.PerSpecies = formatCounts(c.counts[:max(numSpecies, 0)])

	c.windowStartTick = currentTick
	c.emitted = 0
	c.rejected = 0
	c.killed = 0

	return stats
}

func resize(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}
