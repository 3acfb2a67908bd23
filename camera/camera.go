// Package camera provides an orbit camera for viewing the simulation volume.
package camera

import (
	"math"

	"github.com/pthm-cable/ecosim/components"
)

// Up is the world up axis.
var Up = components.Vec3{Y: 1}

const maxPitch = math.Pi/2 - 0.01

// Camera orbits a target point at a fixed distance.
type Camera struct {
	// Target is the point the camera looks at.
	Target components.Vec3

	// Yaw rotates around Up; Pitch tilts toward it. Radians.
	Yaw, Pitch float32

	// Distance from the target to the eye.
	Distance float32

	// FovY is the vertical field of view in degrees.
	FovY float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Distance constraints
	MinDistance, MaxDistance float32

	home components.Vec3
}

// New creates a camera looking at target from distance along +Z.
func New(viewportW, viewportH float32, target components.Vec3, distance float32) *Camera {
	return &Camera{
		Target:      target,
		Distance:    distance,
		FovY:        45,
		ViewportW:   viewportW,
		ViewportH:   viewportH,
		MinDistance: 0.5,
		MaxDistance: distance * 8,
		home:        target,
	}
}

// Eye returns the camera position in world coordinates.
func (c *Camera) Eye() components.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	off := components.Vec3{
		X: cp * float32(math.Sin(float64(c.Yaw))),
		Y: float32(math.Sin(float64(c.Pitch))),
		Z: cp * float32(math.Cos(float64(c.Yaw))),
	}
	return c.Target.Add(off.Scale(c.Distance))
}

// basis returns the forward, right and up unit vectors of the view.
func (c *Camera) basis() (f, r, u components.Vec3) {
	f = normalize(c.Target.Sub(c.Eye()))
	r = normalize(cross(f, Up))
	u = cross(r, f)
	return f, r, u
}

func (c *Camera) focal() float32 {
	half := float64(c.FovY) * math.Pi / 360
	return c.ViewportH / 2 / float32(math.Tan(half))
}

// WorldToScreen projects a world point. ok is false for points at or
// behind the eye.
func (c *Camera) WorldToScreen(p components.Vec3) (sx, sy, depth float32, ok bool) {
	f, r, u := c.basis()
	d := p.Sub(c.Eye())
	depth = d.Dot(f)
	if depth <= 1e-4 {
		return 0, 0, depth, false
	}
	k := c.focal() / depth
	sx = c.ViewportW/2 + d.Dot(r)*k
	sy = c.ViewportH/2 - d.Dot(u)*k
	return sx, sy, depth, true
}

// ScreenRadius returns the projected size of a world radius at depth.
func (c *Camera) ScreenRadius(radius, depth float32) float32 {
	if depth <= 0 {
		return 0
	}
	return radius * c.focal() / depth
}

// IsVisible returns true if a sphere at p could be on screen.
func (c *Camera) IsVisible(p components.Vec3, radius float32) bool {
	sx, sy, depth, ok := c.WorldToScreen(p)
	if !ok {
		return false
	}
	rs := c.ScreenRadius(radius, depth)
	return sx+rs >= 0 && sx-rs <= c.ViewportW && sy+rs >= 0 && sy-rs <= c.ViewportH
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Orbit rotates the eye around the target by the given angles.
func (c *Camera) Orbit(dYaw, dPitch float32) {
	c.Yaw = float32(math.Remainder(float64(c.Yaw+dYaw), 2*math.Pi))
	c.Pitch = clamp(c.Pitch+dPitch, -maxPitch, maxPitch)
}

// Pan moves the target by the given delta in screen pixels.
func (c *Camera) Pan(dx, dy float32) {
	_, r, u := c.basis()
	scale := c.Distance / c.focal()
	c.Target = c.Target.Sub(r.Scale(dx * scale)).Add(u.Scale(dy * scale))
}

// ZoomBy moves the eye toward the target by factor (>1 zooms in).
func (c *Camera) ZoomBy(factor float32) {
	if factor <= 0 {
		return
	}
	c.Distance = clamp(c.Distance/factor, c.MinDistance, c.MaxDistance)
}

// Reset returns the camera to its starting target and orientation.
func (c *Camera) Reset() {
	c.Target = c.home
	c.Yaw = 0
	c.Pitch = 0
}

func cross(a, b components.Vec3) components.Vec3 {
	return components.Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func normalize(v components.Vec3) components.Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// clamp restricts a value to a range.
func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
