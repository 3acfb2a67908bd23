package systems

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/ecosim/components"
)

func approxEq(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func vecApproxEq(a, b components.Vec3, eps float32) bool {
	return approxEq(a.X, b.X, eps) && approxEq(a.Y, b.Y, eps) && approxEq(a.Z, b.Z, eps)
}

func twoSpeciesEcosystem() *Ecosystem {
	e := NewEcosystem()
	e.Species[0] = components.SpeciesParams{Drag: 0.1, CollisionForce: 0.2, Radius: 0.05}
	e.Species[1] = components.SpeciesParams{Drag: 0.2, CollisionForce: 0.6, Radius: 0.1}
	return e
}

func TestResolveCollision_SymmetricUnderSwap(t *testing.T) {
	e := twoSpeciesEcosystem()
	rng := rand.New(rand.NewSource(9))

	for i := 0; i < 200; i++ {
		a := components.Vec3{X: rng.Float32() * 0.1, Y: rng.Float32() * 0.1, Z: rng.Float32() * 0.1}
		b := components.Vec3{X: rng.Float32() * 0.1, Y: rng.Float32() * 0.1, Z: rng.Float32() * 0.1}

		ab := e.ResolveCollision(a, 0, b, 1, 1)
		ba := e.ResolveCollision(b, 1, a, 0, 1)

		if !vecApproxEq(ab, ba.Scale(-1), 1e-6) {
			t.Fatalf("pair %d: impulse %v is not the negation of %v", i, ab, ba)
		}
	}
}

func TestResolveCollision(t *testing.T) {
	e := twoSpeciesEcosystem()

	tests := []struct {
		name  string
		self  components.Vec3
		other components.Vec3
		want  components.Vec3
	}{
		{
			name:  "coincident skipped",
			self:  components.Vec3{X: 1},
			other: components.Vec3{X: 1},
			want:  components.Vec3{},
		},
		{
			name:  "outside diameter",
			self:  components.Vec3{},
			other: components.Vec3{X: 0.2},
			want:  components.Vec3{},
		},
		{
			// diameter 0.15, dist 0.05, penetration 0.1, mean force 0.4
			name:  "overlap pushes apart",
			self:  components.Vec3{},
			other: components.Vec3{X: 0.05},
			want:  components.Vec3{X: -0.04},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := e.ResolveCollision(tc.self, 0, tc.other, 1, 1)
			if !vecApproxEq(got, tc.want, 1e-6) {
				t.Errorf("ResolveCollision = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAccumulateSocial(t *testing.T) {
	e := NewEcosystem()
	e.SetSocial(0, 1, 0.0005, 0.5)
	e.SetSocial(1, 0, -0.002, 0.3)

	tests := []struct {
		name         string
		selfSpecies  components.SpeciesID
		otherSpecies components.SpeciesID
		other        components.Vec3
		want         components.Vec3
		contributes  bool
	}{
		{"attract in range", 0, 1, components.Vec3{X: 0.4}, components.Vec3{X: 0.0005}, true},
		{"out of range", 0, 1, components.Vec3{X: 0.5}, components.Vec3{}, false},
		{"asymmetric repel", 1, 0, components.Vec3{Y: -0.2}, components.Vec3{Y: 0.002}, true},
		{"asymmetric range shorter", 1, 0, components.Vec3{Y: 0.4}, components.Vec3{}, false},
		{"coincident skipped", 0, 1, components.Vec3{}, components.Vec3{}, false},
		{"unset pair", 2, 3, components.Vec3{X: 0.1}, components.Vec3{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := e.AccumulateSocial(components.Vec3{}, tc.selfSpecies, tc.other, tc.otherSpecies)
			if ok != tc.contributes {
				t.Fatalf("contributes = %v, want %v", ok, tc.contributes)
			}
			if !vecApproxEq(got, tc.want, 1e-7) {
				t.Errorf("force = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestApplyGlobal_Drag(t *testing.T) {
	e := twoSpeciesEcosystem()
	p := components.Particle{Velocity: components.Vec3{X: 1, Y: -2}, Species: 1}

	e.ApplyGlobal(&p, 1)

	want := components.Vec3{X: 0.8, Y: -1.6}
	if !vecApproxEq(p.Velocity, want, 1e-6) {
		t.Errorf("velocity after drag = %v, want %v", p.Velocity, want)
	}
}

func TestApplyGlobal_BoundaryAndFields(t *testing.T) {
	e := NewEcosystem()
	e.Boundary = HomeBoundary{Radius: 1, Strength: 0.5}
	e.Fields = []ForceField{ConstantField{Accel: components.Vec3{Z: -0.1}}}

	inside := components.Particle{Position: components.Vec3{X: 0.5}}
	e.ApplyGlobal(&inside, 1)
	if !vecApproxEq(inside.Velocity, components.Vec3{Z: -0.1}, 1e-6) {
		t.Errorf("inside home radius velocity = %v, want only field", inside.Velocity)
	}

	outside := components.Particle{Position: components.Vec3{X: 3}}
	e.ApplyGlobal(&outside, 1)
	// 2 units outside, strength 0.5, pointing home
	if !vecApproxEq(outside.Velocity, components.Vec3{X: -1, Z: -0.1}, 1e-6) {
		t.Errorf("outside home radius velocity = %v", outside.Velocity)
	}
}

func TestBoxBoundary(t *testing.T) {
	b := BoxBoundary{HalfExtent: 1, Strength: 2}

	tests := []struct {
		name string
		pos  components.Vec3
		want components.Vec3
	}{
		{"inside", components.Vec3{X: 0.9, Y: -0.9}, components.Vec3{}},
		{"above", components.Vec3{X: 1.5}, components.Vec3{X: -1}},
		{"below", components.Vec3{Y: -1.25}, components.Vec3{Y: 0.5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := b.Force(tc.pos); !vecApproxEq(got, tc.want, 1e-6) {
				t.Errorf("Force(%v) = %v, want %v", tc.pos, got, tc.want)
			}
		})
	}
}

func TestEcosystem_MaxRanges(t *testing.T) {
	e := twoSpeciesEcosystem()
	e.SetSocial(0, 1, 1, 0.4)
	e.SetSocial(1, 1, 1, 0.7)

	if got := e.MaxSocialRange(); got != 0.7 {
		t.Errorf("MaxSocialRange = %v, want 0.7", got)
	}
	if got := e.MaxCollisionDiameter(); !approxEq(got, 0.2, 1e-7) {
		t.Errorf("MaxCollisionDiameter = %v, want 0.2", got)
	}
}

func TestEcosystem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Ecosystem)
		wantErr bool
	}{
		{"valid", func(*Ecosystem) {}, false},
		{"drag one", func(e *Ecosystem) { e.Species[2].Drag = 1 }, true},
		{"negative drag", func(e *Ecosystem) { e.Species[0].Drag = -0.1 }, true},
		{"negative collision", func(e *Ecosystem) { e.Species[0].CollisionForce = -1 }, true},
		{"negative radius", func(e *Ecosystem) { e.Species[0].Radius = -1 }, true},
		{"negative range", func(e *Ecosystem) { e.SetSocial(3, 4, 1, -0.1) }, true},
		{"negative force allowed", func(e *Ecosystem) { e.SetSocial(3, 4, -1, 0.1) }, false},
		{"nan drag", func(e *Ecosystem) { e.Species[0].Drag = float32(math.NaN()) }, true},
		{"nan collision", func(e *Ecosystem) { e.Species[0].CollisionForce = float32(math.NaN()) }, true},
		{"inf radius", func(e *Ecosystem) { e.Species[1].Radius = float32(math.Inf(1)) }, true},
		{"inf force", func(e *Ecosystem) { e.SetSocial(0, 1, float32(math.Inf(1)), 0.1) }, true},
		{"nan force", func(e *Ecosystem) { e.SetSocial(0, 1, float32(math.NaN()), 0.1) }, true},
		{"inf range", func(e *Ecosystem) { e.SetSocial(0, 1, 1, float32(math.Inf(1))) }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := twoSpeciesEcosystem()
			tc.mutate(e)
			err := e.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestIntegrate(t *testing.T) {
	p := components.Particle{Position: components.Vec3{X: 1}, Velocity: components.Vec3{X: 0.5, Z: -1}}
	Integrate(&p, 0.5)
	if !vecApproxEq(p.Position, components.Vec3{X: 1.25, Z: -0.5}, 1e-7) {
		t.Errorf("position = %v", p.Position)
	}
}

func TestEcosystem_CloneIsIndependent(t *testing.T) {
	e := twoSpeciesEcosystem()
	e.SetSocial(0, 1, 0.5, 0.3)
	e.Fields = []ForceField{ConstantField{}}

	c := e.Clone()
	c.SetSocial(0, 1, -1, 0.1)
	c.Species[0].Drag = 0.9
	c.Fields[0] = ConstantField{Accel: components.Vec3{X: 1}}

	if e.Social[0][1].Force != 0.5 || e.Species[0].Drag != 0.1 {
		t.Error("editing the clone changed the original tables")
	}
	if e.Fields[0].(ConstantField).Accel.X != 0 {
		t.Error("editing the clone changed the original fields")
	}
}
