package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/ecosim/camera"
	"github.com/pthm-cable/ecosim/components"
)

// ParticleRenderer draws the published frame in 3D.
type ParticleRenderer struct {
	Colors []rl.Color
	Radii  []float32 // per species; zero falls back to MinRadius

	MinRadius float32
}

// NewParticleRenderer creates a renderer with one color and radius per species.
func NewParticleRenderer(colors []rl.Color, radii []float32) *ParticleRenderer {
	return &ParticleRenderer{
		Colors:    colors,
		Radii:     radii,
		MinRadius: 0.01,
	}
}

// Camera3D converts the orbit camera to raylib's representation.
func Camera3D(c *camera.Camera) rl.Camera3D {
	return rl.Camera3D{
		Position:   vec(c.Eye()),
		Target:     vec(c.Target),
		Up:         vec(camera.Up),
		Fovy:       c.FovY,
		Projection: rl.CameraPerspective,
	}
}

// Draw renders particles. Must be called between BeginMode3D and EndMode3D.
func (r *ParticleRenderer) Draw(cam *camera.Camera, ps []components.Particle) {
	for i := range ps {
		p := &ps[i]
		radius := r.radius(p.Species)
		if !cam.IsVisible(p.Position, radius) {
			continue
		}
		size := radius * 2
		rl.DrawCubeV(vec(p.Position), rl.Vector3{X: size, Y: size, Z: size}, r.color(p.Species))
	}
}

// DrawVelocities draws a short line along each particle's velocity.
func (r *ParticleRenderer) DrawVelocities(ps []components.Particle, scale float32) {
	for i := range ps {
		p := &ps[i]
		end := p.Position.Add(p.Velocity.Scale(scale))
		c := r.color(p.Species)
		c.A = 140
		rl.DrawLine3D(vec(p.Position), vec(end), c)
	}
}

func (r *ParticleRenderer) color(s components.SpeciesID) rl.Color {
	if int(s) < len(r.Colors) {
		return r.Colors[s]
	}
	return rl.White
}

func (r *ParticleRenderer) radius(s components.SpeciesID) float32 {
	if int(s) < len(r.Radii) && r.Radii[s] > r.MinRadius {
		return r.Radii[s]
	}
	return r.MinRadius
}

func vec(v components.Vec3) rl.Vector3 {
	return rl.Vector3{X: v.X, Y: v.Y, Z: v.Z}
}
