package systems

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/ecosim/components"
)

// PerlinNoise generates coherent 3D noise. It is read-only after
// construction and safe for concurrent use.
type PerlinNoise struct {
	perm [512]int
}

// NewPerlinNoise creates a noise generator with a permutation seeded by seed.
func NewPerlinNoise(seed int64) *PerlinNoise {
	p := &PerlinNoise{}
	rng := rand.New(rand.NewSource(seed))
	for i, v := range rng.Perm(256) {
		p.perm[i] = v
		p.perm[i+256] = v
	}
	return p
}

// Noise3D returns a value in roughly [-1, 1].
func (p *PerlinNoise) Noise3D(x, y, z float64) float64 {
	fx, fy, fz := math.Floor(x), math.Floor(y), math.Floor(z)
	X, Y, Z := int(fx)&255, int(fy)&255, int(fz)&255
	x, y, z = x-fx, y-fy, z-fz
	u, v, w := fade(x), fade(y), fade(z)

	a := p.perm[X] + Y
	aa, ab := p.perm[a]+Z, p.perm[a+1]+Z
	b := p.perm[X+1] + Y
	ba, bb := p.perm[b]+Z, p.perm[b+1]+Z

	return lerp(w,
		lerp(v,
			lerp(u, grad(p.perm[aa], x, y, z), grad(p.perm[ba], x-1, y, z)),
			lerp(u, grad(p.perm[ab], x, y-1, z), grad(p.perm[bb], x-1, y-1, z))),
		lerp(v,
			lerp(u, grad(p.perm[aa+1], x, y, z-1), grad(p.perm[ba+1], x-1, y, z-1)),
			lerp(u, grad(p.perm[ab+1], x, y-1, z-1), grad(p.perm[bb+1], x-1, y-1, z-1))))
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

func grad(hash int, x, y, z float64) float64 {
	h := hash & 15
	u := x
	if h >= 8 {
		u = y
	}
	v := y
	if h >= 4 {
		if h == 12 || h == 14 {
			v = x
		} else {
			v = z
		}
	}
	if h&1 != 0 {
		u = -u
	}
	if h&2 != 0 {
		v = -v
	}
	return u + v
}

// FlowField pushes particles along a static noise field. Each axis samples
// the noise at a different offset so the components are uncorrelated.
type FlowField struct {
	Noise    *PerlinNoise
	Scale    float32 // spatial frequency, cycles per world unit
	Strength float32 // peak acceleration

	// Mask selects affected species by bit; zero affects all.
	Mask uint16
}

// NewFlowField builds a flow field seeded by seed.
func NewFlowField(seed int64, scale, strength float32) FlowField {
	return FlowField{Noise: NewPerlinNoise(seed), Scale: scale, Strength: strength}
}

// Force implements ForceField.
func (f FlowField) Force(pos components.Vec3, s components.SpeciesID) components.Vec3 {
	if f.Noise == nil || (f.Mask != 0 && f.Mask&(1<<s) == 0) {
		return components.Vec3{}
	}
	x := float64(pos.X * f.Scale)
	y := float64(pos.Y * f.Scale)
	z := float64(pos.Z * f.Scale)
	return components.Vec3{
		X: float32(f.Noise.Noise3D(x, y, z)),
		Y: float32(f.Noise.Noise3D(x+31.4, y+47.2, z+12.9)),
		Z: float32(f.Noise.Noise3D(x+73.1, y+5.6, z+88.3)),
	}.Scale(f.Strength)
}
