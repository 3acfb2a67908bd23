package systems

import (
	"fmt"
	"math"

	"github.com/pthm-cable/ecosim/components"
)

// Ecosystem holds the per-species parameters, the species x species social
// matrix, and the global force policy. It is read-only during a tick and is
// passed to the scheduler explicitly, so it can be swapped between ticks.
type Ecosystem struct {
	Species [components.MaxSpecies]components.SpeciesParams
	// Social[a][b] is the force a particle of species a feels toward one of
	// species b. Social[a][b] need not equal Social[b][a].
	Social [components.MaxSpecies][components.MaxSpecies]components.SocialEntry

	Boundary Boundary     // nil means unbounded
	Fields   []ForceField // global fields applied after drag
}

// NewEcosystem returns an ecosystem with zeroed tables and no boundary.
func NewEcosystem() *Ecosystem {
	return &Ecosystem{}
}

// Clone returns a copy that can be edited while e is in use.
func (e *Ecosystem) Clone() *Ecosystem {
	c := *e
	c.Fields = append([]ForceField(nil), e.Fields...)
	return &c
}

// SetSocial sets the force species a feels toward species b.
func (e *Ecosystem) SetSocial(a, b components.SpeciesID, force, rng float32) {
	e.Social[a][b] = components.SocialEntry{Force: force, Range: rng}
}

// SetSymmetricSocial sets both directions of a species pair.
func (e *Ecosystem) SetSymmetricSocial(a, b components.SpeciesID, force, rng float32) {
	e.SetSocial(a, b, force, rng)
	e.SetSocial(b, a, force, rng)
}

// ResolveCollision returns the velocity change for a particle at self caused
// by overlapping a particle at other. The impulse is proportional to the
// penetration depth, points away from other, and is scaled by the mean of the
// two species' collision forces, so swapping the arguments yields the same
// magnitude in the opposite direction. Coincident particles are skipped.
func (e *Ecosystem) ResolveCollision(self components.Vec3, selfSpecies components.SpeciesID, other components.Vec3, otherSpecies components.SpeciesID, dt float32) components.Vec3 {
	a := &e.Species[selfSpecies]
	b := &e.Species[otherSpecies]

	diameter := a.Radius + b.Radius
	if diameter <= 0 {
		return components.Vec3{}
	}

	d := self.Sub(other)
	distSq := d.LenSq()
	if distSq >= diameter*diameter || distSq == 0 {
		return components.Vec3{}
	}

	dist := float32(math.Sqrt(float64(distSq)))
	strength := (a.CollisionForce + b.CollisionForce) * 0.5
	penetration := diameter - dist
	return d.Scale(penetration * strength * dt / dist)
}

// AccumulateSocial returns the social force self feels toward other and
// whether the pair is within range. Callers average all contributing forces
// before applying them.
func (e *Ecosystem) AccumulateSocial(self components.Vec3, selfSpecies components.SpeciesID, other components.Vec3, otherSpecies components.SpeciesID) (components.Vec3, bool) {
	entry := e.Social[selfSpecies][otherSpecies]
	if entry.Range <= 0 {
		return components.Vec3{}, false
	}

	d := other.Sub(self)
	distSq := d.LenSq()
	if distSq >= entry.Range*entry.Range || distSq == 0 {
		return components.Vec3{}, false
	}

	dist := float32(math.Sqrt(float64(distSq)))
	return d.Scale(entry.Force / dist), true
}

// ApplyGlobal applies drag, the boundary policy, and global fields to p.
func (e *Ecosystem) ApplyGlobal(p *components.Particle, dt float32) {
	drag := e.Species[p.Species].Drag
	p.Velocity = p.Velocity.Scale(1 - drag)

	if e.Boundary != nil {
		p.Velocity = p.Velocity.Add(e.Boundary.Force(p.Position).Scale(dt))
	}
	for _, f := range e.Fields {
		p.Velocity = p.Velocity.Add(f.Force(p.Position, p.Species).Scale(dt))
	}
}

// MaxSocialRange returns the largest configured social range.
func (e *Ecosystem) MaxSocialRange() float32 {
	var m float32
	for a := range e.Social {
		for b := range e.Social[a] {
			if r := e.Social[a][b].Range; r > m {
				m = r
			}
		}
	}
	return m
}

// MaxCollisionDiameter returns the largest pairwise collision diameter.
func (e *Ecosystem) MaxCollisionDiameter() float32 {
	var m float32
	for i := range e.Species {
		if r := e.Species[i].Radius; r > m {
			m = r
		}
	}
	return 2 * m
}

// Validate checks parameter ranges.
func (e *Ecosystem) Validate() error {
	for i, s := range e.Species {
		if !(s.Drag >= 0 && s.Drag < 1) {
			return fmt.Errorf("species %d: drag %.4g outside [0,1)", i, s.Drag)
		}
		if !nonNegative(s.CollisionForce) {
			return fmt.Errorf("species %d: invalid collision force %.4g", i, s.CollisionForce)
		}
		if !nonNegative(s.Radius) {
			return fmt.Errorf("species %d: invalid radius %.4g", i, s.Radius)
		}
	}
	for a := range e.Social {
		for b := range e.Social[a] {
			entry := e.Social[a][b]
			if !finite(entry.Force) {
				return fmt.Errorf("social %d->%d: invalid force %.4g", a, b, entry.Force)
			}
			if !nonNegative(entry.Range) {
				return fmt.Errorf("social %d->%d: invalid range %.4g", a, b, entry.Range)
			}
		}
	}
	return nil
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

// nonNegative reports whether v is finite and >= 0.
func nonNegative(v float32) bool {
	return v >= 0 && finite(v)
}
