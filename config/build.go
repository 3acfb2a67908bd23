package config

import (
	"github.com/pthm-cable/ecosim/components"
	"github.com/pthm-cable/ecosim/sim"
	"github.com/pthm-cable/ecosim/systems"
)

func vec3(v [3]float64) components.Vec3 {
	return components.Vec3{X: float32(v[0]), Y: float32(v[1]), Z: float32(v[2])}
}

// Ecosystem builds the force model described by the species, social,
// boundary and gravity sections.
func (c *Config) Ecosystem() *systems.Ecosystem {
	e := systems.NewEcosystem()
	for i, s := range c.Species {
		if i >= components.MaxSpecies {
			break
		}
		e.Species[i] = components.SpeciesParams{
			Drag:           float32(s.Drag),
			CollisionForce: float32(s.CollisionForce),
			Radius:         float32(s.Radius),
		}
	}

	for _, s := range c.Social {
		from, ok1 := c.Derived.SpeciesIndex[s.From]
		to, ok2 := c.Derived.SpeciesIndex[s.To]
		if !ok1 || !ok2 {
			continue
		}
		if s.Symmetric {
			e.SetSymmetricSocial(from, to, float32(s.Force), float32(s.Range))
		} else {
			e.SetSocial(from, to, float32(s.Force), float32(s.Range))
		}
	}

	switch c.Boundary.Kind {
	case "home":
		e.Boundary = systems.HomeBoundary{
			Home:     vec3(c.Boundary.Home),
			Radius:   float32(c.Boundary.Radius),
			Strength: float32(c.Boundary.Strength),
		}
	case "box":
		e.Boundary = systems.BoxBoundary{
			HalfExtent: float32(c.Boundary.HalfExtent),
			Strength:   float32(c.Boundary.Strength),
		}
	}

	if g := vec3(c.Gravity); g != (components.Vec3{}) {
		e.Fields = append(e.Fields, systems.ConstantField{Accel: g})
	}

	if c.Flow.Strength != 0 {
		seed := c.Flow.Seed
		if seed == 0 {
			seed = c.Simulation.Seed
		}
		f := systems.NewFlowField(seed, float32(c.Flow.Scale), float32(c.Flow.Strength))
		for _, name := range c.Flow.Species {
			if id, ok := c.Derived.SpeciesIndex[name]; ok {
				f.Mask |= 1 << id
			}
		}
		e.Fields = append(e.Fields, f)
	}
	return e
}

// SimOptions returns the scheduler options.
func (c *Config) SimOptions() sim.Options {
	return sim.Options{
		Capacity:          c.Simulation.Capacity,
		Parallel:          c.Simulation.Parallel,
		Workers:           c.Simulation.Workers,
		DT:                c.Derived.DT32,
		Strategy:          sim.Strategy(c.Index.Strategy),
		CollisionMode:     sim.CollisionMode(c.Collision.Mode),
		CellSize:          float32(c.Index.CellSize),
		GridSide:          c.Index.GridSide,
		CollisionCellSize: float32(c.Index.CollisionCellSize),
	}
}

// KillPolicy returns the configured kill policy.
func (c *Config) KillPolicy() sim.KillPolicy {
	if c.Kill.Policy == "outside_radius" {
		return sim.OutsideRadius{
			Center: vec3(c.Boundary.Home),
			Radius: float32(c.Kill.Radius),
		}
	}
	return sim.Never{}
}

// SpeciesIDs returns the configured species ids and their emission weights.
func (c *Config) SpeciesIDs() ([]components.SpeciesID, []float32) {
	n := min(len(c.Species), components.MaxSpecies)
	ids := make([]components.SpeciesID, n)
	weights := make([]float32, n)
	for i := 0; i < n; i++ {
		ids[i] = components.SpeciesID(i)
		weights[i] = float32(c.Species[i].Weight)
		if weights[i] == 0 {
			weights[i] = 1
		}
	}
	return ids, weights
}

// Emitters returns the initial burst and the steady stream, seeded from seed.
func (c *Config) Emitters(seed int64) []sim.Emitter {
	ids, weights := c.SpeciesIDs()
	mk := func(s int64) *sim.SphereEmitter {
		e := sim.NewSphereEmitter(s, vec3(c.Emitter.Center), float32(c.Emitter.Radius), ids)
		e.Weights = weights
		e.Speed = float32(c.Emitter.Speed)
		return e
	}

	var out []sim.Emitter
	if c.Emitter.Initial > 0 {
		out = append(out, sim.Burst{Source: mk(seed), Count: c.Emitter.Initial})
	}
	if c.Emitter.Rate > 0 {
		stream := mk(seed + 1)
		stream.Rate = c.Emitter.Rate
		out = append(out, stream)
	}
	return out
}
