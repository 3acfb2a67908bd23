package sim

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/ecosim/components"
)

// KillPolicy decides, once per particle per tick, whether a particle dies.
type KillPolicy interface {
	ShouldKill(p *components.Particle) bool
}

// KillFunc adapts a plain predicate to KillPolicy.
type KillFunc func(p *components.Particle) bool

// ShouldKill implements KillPolicy.
func (f KillFunc) ShouldKill(p *components.Particle) bool { return f(p) }

// Never keeps every particle.
type Never struct{}

// ShouldKill implements KillPolicy.
func (Never) ShouldKill(*components.Particle) bool { return false }

// OutsideRadius kills particles farther than Radius from Center.
type OutsideRadius struct {
	Center components.Vec3
	Radius float32
}

// ShouldKill implements KillPolicy.
func (k OutsideRadius) ShouldKill(p *components.Particle) bool {
	return p.Position.Sub(k.Center).LenSq() > k.Radius*k.Radius
}

// Sink accepts a particle for emission and reports whether it was queued.
type Sink func(p components.Particle) bool

// Emitter produces particles at the start of a tick.
type Emitter interface {
	Emit(tick int64, sink Sink)
}

// Sampler produces a single particle.
type Sampler interface {
	Sample() components.Particle
}

// SphereEmitter emits Rate particles per tick at uniformly random points
// inside a sphere, with random direction at Speed and species drawn from
// Species in proportion to Weights (uniform when Weights is empty).
type SphereEmitter struct {
	Center  components.Vec3
	Radius  float32
	Speed   float32
	Rate    int
	Species []components.SpeciesID
	Weights []float32

	rng *rand.Rand
}

// NewSphereEmitter returns a seeded sphere emitter.
func NewSphereEmitter(seed int64, center components.Vec3, radius float32, species []components.SpeciesID) *SphereEmitter {
	return &SphereEmitter{
		Center:  center,
		Radius:  radius,
		Species: species,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Sample implements Sampler.
func (e *SphereEmitter) Sample() components.Particle {
	// cube root keeps the density uniform in volume
	r := e.Radius * float32(math.Cbrt(e.rng.Float64()))
	pos := e.Center.Add(e.unit().Scale(r))
	return components.Particle{
		Position: pos,
		Velocity: e.unit().Scale(e.Speed),
		Species:  e.pickSpecies(),
	}
}

// Emit implements Emitter. It stops at the first rejection.
func (e *SphereEmitter) Emit(_ int64, sink Sink) {
	for i := 0; i < e.Rate; i++ {
		if !sink(e.Sample()) {
			return
		}
	}
}

func (e *SphereEmitter) unit() components.Vec3 {
	z := e.rng.Float64()*2 - 1
	theta := e.rng.Float64() * 2 * math.Pi
	s := math.Sqrt(1 - z*z)
	return components.Vec3{
		X: float32(s * math.Cos(theta)),
		Y: float32(s * math.Sin(theta)),
		Z: float32(z),
	}
}

func (e *SphereEmitter) pickSpecies() components.SpeciesID {
	if len(e.Species) == 0 {
		return 0
	}
	if len(e.Weights) != len(e.Species) {
		return e.Species[e.rng.Intn(len(e.Species))]
	}
	var total float32
	for _, w := range e.Weights {
		total += w
	}
	x := e.rng.Float32() * total
	for i, w := range e.Weights {
		if x < w {
			return e.Species[i]
		}
		x -= w
	}
	return e.Species[len(e.Species)-1]
}

// Burst emits Count samples once, on tick At.
type Burst struct {
	Source Sampler
	Count  int
	At     int64
}

// Emit implements Emitter.
func (b Burst) Emit(tick int64, sink Sink) {
	if tick != b.At {
		return
	}
	for i := 0; i < b.Count; i++ {
		if !sink(b.Source.Sample()) {
			return
		}
	}
}

// Fixed emits a fixed particle list once, on the first tick.
type Fixed []components.Particle

// Emit implements Emitter.
func (f Fixed) Emit(tick int64, sink Sink) {
	if tick != 0 {
		return
	}
	for _, p := range f {
		sink(p)
	}
}
