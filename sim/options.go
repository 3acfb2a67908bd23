package sim

import (
	"fmt"
	"math"

	"github.com/pthm-cable/ecosim/systems"
)

// Strategy selects the spatial index.
type Strategy string

const (
	StrategyDense  Strategy = "dense"  // bounded volume, flat grid
	StrategyHashed Strategy = "hashed" // unbounded volume, map keyed by chunk
	StrategyNone   Strategy = "none"   // no index, brute-force interactions
)

// CollisionMode selects how collision candidates are found.
type CollisionMode string

const (
	CollisionChunked CollisionMode = "chunked"
	CollisionBrute   CollisionMode = "brute"
)

// Options configures a Scheduler.
type Options struct {
	Capacity int
	Parallel bool
	Workers  int     // <= 0 means GOMAXPROCS
	DT       float32 // 0 means 1

	Strategy      Strategy
	CollisionMode CollisionMode
	CellSize      float32
	GridSide      int // dense only

	// CollisionCellSize gives collisions their own hashed grid when it
	// differs from CellSize. Ignored by the dense strategy.
	CollisionCellSize float32
}

// DefaultOptions returns a serial dense-grid setup.
func DefaultOptions() Options {
	return Options{
		Capacity:      4096,
		DT:            1,
		Strategy:      StrategyDense,
		CollisionMode: CollisionChunked,
		CellSize:      0.5,
		GridSide:      16,
	}
}

func (o *Options) normalize() error {
	if o.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", o.Capacity)
	}
	if o.DT == 0 {
		o.DT = 1
	}
	if !(o.DT > 0) || math.IsInf(float64(o.DT), 0) {
		return fmt.Errorf("dt must be positive and finite, got %.4g", o.DT)
	}
	if o.Strategy == "" {
		o.Strategy = StrategyDense
	}
	if o.CollisionMode == "" {
		o.CollisionMode = CollisionChunked
	}

	switch o.Strategy {
	case StrategyDense:
		if o.GridSide <= 0 || o.GridSide > systems.MaxGridSide {
			return fmt.Errorf("dense grid side %d outside [1,%d]", o.GridSide, systems.MaxGridSide)
		}
	case StrategyHashed:
	case StrategyNone:
		o.CollisionMode = CollisionBrute
	default:
		return fmt.Errorf("unknown index strategy %q", o.Strategy)
	}

	switch o.CollisionMode {
	case CollisionChunked, CollisionBrute:
	default:
		return fmt.Errorf("unknown collision mode %q", o.CollisionMode)
	}
	return nil
}

func (o *Options) collisionCell() float32 {
	if o.Strategy == StrategyHashed && o.CollisionCellSize > 0 {
		return o.CollisionCellSize
	}
	return o.CellSize
}

// checkCoverage rejects an ecosystem whose interaction ranges the configured
// cells cannot see with a single-ring scan.
func (o *Options) checkCoverage(eco *systems.Ecosystem) error {
	if o.Strategy == StrategyNone {
		return nil
	}
	if err := systems.ValidateCoverage(o.CellSize, eco.MaxSocialRange()); err != nil {
		return fmt.Errorf("social index: %w", err)
	}
	if o.CollisionMode == CollisionChunked {
		if err := systems.ValidateCoverage(o.collisionCell(), eco.MaxCollisionDiameter()); err != nil {
			return fmt.Errorf("collision index: %w", err)
		}
	}
	return nil
}
