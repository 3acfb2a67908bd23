package particles

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/pthm-cable/ecosim/components"
)

func particleAt(x float32, species components.SpeciesID) components.Particle {
	return components.Particle{Position: components.Vec3{X: x}, Species: species}
}

func TestStore_TryEmitRespectsCapacity(t *testing.T) {
	s := NewStore(3)

	for i := 0; i < 3; i++ {
		if !s.TryEmit(particleAt(float32(i), 0)) {
			t.Fatalf("emit %d rejected below capacity", i)
		}
	}
	if s.TryEmit(particleAt(9, 0)) {
		t.Fatal("emit accepted at capacity")
	}
	if got := s.Pending(); got != 3 {
		t.Errorf("Pending() = %d, want 3", got)
	}

	if got := s.DrainEmissions(); got != 3 {
		t.Errorf("DrainEmissions() = %d, want 3", got)
	}
	if s.TryEmit(particleAt(9, 0)) {
		t.Fatal("emit accepted with full front buffer")
	}
}

func TestStore_TryEmitRejectsUnknownSpecies(t *testing.T) {
	s := NewStore(4)
	if s.TryEmit(particleAt(0, components.MaxSpecies)) {
		t.Error("species outside the tables accepted")
	}
	if s.Pending() != 0 {
		t.Error("rejected particle was queued")
	}
}

func TestStore_CapacityInvariantUnderChurn(t *testing.T) {
	const capacity = 50
	s := NewStore(capacity)
	rng := rand.New(rand.NewSource(1))

	for tick := 0; tick < 500; tick++ {
		for i := rng.Intn(30); i > 0; i-- {
			s.TryEmit(particleAt(rng.Float32(), components.SpeciesID(rng.Intn(4))))
			if s.Alive()+s.Pending() > capacity {
				t.Fatalf("tick %d: alive %d + pending %d > capacity", tick, s.Alive(), s.Pending())
			}
		}
		s.CompactRemove(func(p *components.Particle) bool { return p.Position.X < 0.3 })
		s.DrainEmissions()
		if s.Alive() > capacity {
			t.Fatalf("tick %d: alive %d > capacity", tick, s.Alive())
		}
	}
}

func TestStore_ConcurrentEmitters(t *testing.T) {
	const capacity = 1000
	s := NewStore(capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if s.TryEmit(particleAt(0, 1)) {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if accepted != capacity {
		t.Errorf("accepted %d emissions, want %d", accepted, capacity)
	}
	if got := s.DrainEmissions(); got != capacity {
		t.Errorf("drained %d, want %d", got, capacity)
	}
}

func TestStore_CompactRemove(t *testing.T) {
	tests := []struct {
		name      string
		xs        []float32
		kill      func(*components.Particle) bool
		wantAlive []float32
	}{
		{
			name:      "none",
			xs:        []float32{1, 2, 3},
			kill:      func(*components.Particle) bool { return false },
			wantAlive: []float32{1, 2, 3},
		},
		{
			name:      "all",
			xs:        []float32{1, 2, 3},
			kill:      func(*components.Particle) bool { return true },
			wantAlive: nil,
		},
		{
			// 1 is replaced by 4, then 4 checked again and kept
			name:      "swap from tail",
			xs:        []float32{1, 2, 3, 4},
			kill:      func(p *components.Particle) bool { return p.Position.X == 1 },
			wantAlive: []float32{4, 2, 3},
		},
		{
			// the swapped-in tail is itself a kill candidate
			name:      "consecutive kills",
			xs:        []float32{1, 5, 6, 2},
			kill:      func(p *components.Particle) bool { return p.Position.X < 3 },
			wantAlive: []float32{6, 5},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(len(tc.xs))
			for _, x := range tc.xs {
				s.TryEmit(particleAt(x, 0))
			}
			s.DrainEmissions()

			removed := s.CompactRemove(tc.kill)
			if want := len(tc.xs) - len(tc.wantAlive); removed != want {
				t.Errorf("removed = %d, want %d", removed, want)
			}

			front := s.Front()
			if len(front) != len(tc.wantAlive) {
				t.Fatalf("alive = %d, want %d", len(front), len(tc.wantAlive))
			}
			for i, x := range tc.wantAlive {
				if front[i].Position.X != x {
					t.Errorf("front[%d].X = %v, want %v", i, front[i].Position.X, x)
				}
			}
		})
	}
}

func TestStore_SwapBuffers(t *testing.T) {
	s := NewStore(2)
	s.TryEmit(particleAt(1, 0))
	s.TryEmit(particleAt(2, 0))
	s.DrainEmissions()

	back := s.Back()
	for i, p := range s.Front() {
		p.Position.X *= 10
		back[i] = p
	}
	s.SwapBuffers()

	front := s.Front()
	if front[0].Position.X != 10 || front[1].Position.X != 20 {
		t.Errorf("front after swap = %v", front)
	}
	if got := s.Back()[0].Position.X; got != 1 {
		t.Errorf("back after swap holds %v, want previous front", got)
	}
}

func TestStore_DrainAfterSwapTargetsFront(t *testing.T) {
	s := NewStore(4)
	s.TryEmit(particleAt(1, 0))
	s.DrainEmissions()
	s.SwapBuffers()
	s.Front()[0] = particleAt(7, 0)

	s.TryEmit(particleAt(2, 0))
	s.DrainEmissions()

	front := s.Front()
	if len(front) != 2 || front[0].Position.X != 7 || front[1].Position.X != 2 {
		t.Errorf("front = %v", front)
	}
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(4)
	s.TryEmit(particleAt(1, 0))
	s.DrainEmissions()
	s.TryEmit(particleAt(2, 0))
	s.Reset()

	if s.Alive() != 0 || s.Pending() != 0 {
		t.Errorf("after Reset alive=%d pending=%d", s.Alive(), s.Pending())
	}
}
