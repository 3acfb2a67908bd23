package sim

import (
	"testing"

	"github.com/pthm-cable/ecosim/components"
)

func TestOutsideRadius(t *testing.T) {
	k := OutsideRadius{Center: components.Vec3{X: 1}, Radius: 2}

	tests := []struct {
		name string
		pos  components.Vec3
		want bool
	}{
		{"center", components.Vec3{X: 1}, false},
		{"on boundary", components.Vec3{X: 3}, false},
		{"outside", components.Vec3{X: -1.5}, true},
		{"outside diagonal", components.Vec3{X: 2.5, Y: 1.5, Z: 1}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := components.Particle{Position: tc.pos}
			if got := k.ShouldKill(&p); got != tc.want {
				t.Errorf("ShouldKill(%v) = %v, want %v", tc.pos, got, tc.want)
			}
		})
	}
}

func TestKillFunc(t *testing.T) {
	k := KillFunc(func(p *components.Particle) bool { return p.Species == 3 })
	if !k.ShouldKill(&components.Particle{Species: 3}) {
		t.Error("expected species 3 to be killed")
	}
	if (Never{}).ShouldKill(&components.Particle{Species: 3}) {
		t.Error("Never killed a particle")
	}
}

func TestSphereEmitter_SamplesInsideSphere(t *testing.T) {
	center := components.Vec3{X: 1, Y: -2, Z: 0.5}
	e := NewSphereEmitter(3, center, 0.75, []components.SpeciesID{2, 5})
	e.Speed = 0.1

	seen := map[components.SpeciesID]int{}
	for i := 0; i < 2000; i++ {
		p := e.Sample()
		if d := p.Position.Sub(center).Len(); d > 0.75+1e-5 {
			t.Fatalf("sample %d at distance %v outside radius", i, d)
		}
		if s := p.Velocity.Len(); s < 0.1-1e-5 || s > 0.1+1e-5 {
			t.Fatalf("sample %d speed %v, want 0.1", i, s)
		}
		seen[p.Species]++
	}

	if len(seen) != 2 || seen[2] == 0 || seen[5] == 0 {
		t.Errorf("species mix = %v, want both 2 and 5", seen)
	}
}

func TestSphereEmitter_Weights(t *testing.T) {
	e := NewSphereEmitter(8, components.Vec3{}, 1, []components.SpeciesID{0, 1})
	e.Weights = []float32{1, 0}

	for i := 0; i < 500; i++ {
		if s := e.Sample().Species; s != 0 {
			t.Fatalf("sample %d species %d with zero weight", i, s)
		}
	}
}

func TestSphereEmitter_EmitStopsWhenFull(t *testing.T) {
	e := NewSphereEmitter(1, components.Vec3{}, 1, nil)
	e.Rate = 10

	calls := 0
	e.Emit(0, func(components.Particle) bool {
		calls++
		return calls < 4
	})
	if calls != 4 {
		t.Errorf("sink called %d times, want 4", calls)
	}
}

func TestBurst_OnlyOnItsTick(t *testing.T) {
	b := Burst{Source: NewSphereEmitter(1, components.Vec3{}, 1, nil), Count: 5, At: 3}

	for tick := int64(0); tick < 6; tick++ {
		n := 0
		b.Emit(tick, func(components.Particle) bool { n++; return true })

		want := 0
		if tick == 3 {
			want = 5
		}
		if n != want {
			t.Errorf("tick %d: emitted %d, want %d", tick, n, want)
		}
	}
}

func TestStage_String(t *testing.T) {
	if got := StageRebuildIndex.String(); got != "rebuild_index" {
		t.Errorf("String() = %q", got)
	}
	if got := Stage(200).String(); got != "unknown" {
		t.Errorf("out of range String() = %q", got)
	}
}
