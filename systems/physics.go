package systems

import (
	"math"

	"github.com/pthm-cable/ecosim/components"
)

// Boundary pushes particles back toward the simulation volume.
type Boundary interface {
	Force(pos components.Vec3) components.Vec3
}

// ForceField is a global, position-dependent force.
type ForceField interface {
	Force(pos components.Vec3, species components.SpeciesID) components.Vec3
}

// HomeBoundary pulls particles back toward Home once they are farther than
// Radius, proportionally to how far outside they are.
type HomeBoundary struct {
	Home     components.Vec3
	Radius   float32
	Strength float32
}

// Force implements Boundary.
func (b HomeBoundary) Force(pos components.Vec3) components.Vec3 {
	d := b.Home.Sub(pos)
	distSq := d.LenSq()
	if distSq <= b.Radius*b.Radius {
		return components.Vec3{}
	}
	dist := float32(math.Sqrt(float64(distSq)))
	return d.Scale(b.Strength * (dist - b.Radius) / dist)
}

// BoxBoundary pushes particles back inside an axis-aligned cube of
// half-width HalfExtent centered on the origin.
type BoxBoundary struct {
	HalfExtent float32
	Strength   float32
}

// Force implements Boundary.
func (b BoxBoundary) Force(pos components.Vec3) components.Vec3 {
	return components.Vec3{
		X: b.axis(pos.X),
		Y: b.axis(pos.Y),
		Z: b.axis(pos.Z),
	}
}

func (b BoxBoundary) axis(v float32) float32 {
	switch {
	case v > b.HalfExtent:
		return -(v - b.HalfExtent) * b.Strength
	case v < -b.HalfExtent:
		return (-b.HalfExtent - v) * b.Strength
	}
	return 0
}

// ConstantField applies the same acceleration to every particle.
type ConstantField struct {
	Accel components.Vec3
}

// Force implements ForceField.
func (f ConstantField) Force(components.Vec3, components.SpeciesID) components.Vec3 {
	return f.Accel
}

// Integrate advances a particle's position by its velocity.
func Integrate(p *components.Particle, dt float32) {
	p.Position = p.Position.Add(p.Velocity.Scale(dt))
}
