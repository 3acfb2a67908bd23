// Package particles owns the double-buffered particle arrays and the
// emission queue that feeds them.
package particles

import (
	"sync"

	"github.com/pthm-cable/ecosim/components"
)

// Store owns two fixed-capacity buffers. Front is authoritative; back is the
// output of the pass in progress. The emission queue may be fed from any
// goroutine; everything else belongs to the simulation goroutine.
type Store struct {
	bufs     [2][]components.Particle
	front    int
	capacity int

	mu      sync.Mutex // guards pending and writes to alive
	pending []components.Particle
	alive   int
}

// NewStore allocates both buffers up front.
func NewStore(capacity int) *Store {
	if capacity < 0 {
		capacity = 0
	}
	return &Store{
		bufs: [2][]components.Particle{
			make([]components.Particle, capacity),
			make([]components.Particle, capacity),
		},
		capacity: capacity,
		pending:  make([]components.Particle, 0, 64),
	}
}

// Capacity returns the maximum number of live plus queued particles.
func (s *Store) Capacity() int { return s.capacity }

// Alive returns the number of live particles in the front buffer.
func (s *Store) Alive() int { return s.alive }

// Pending returns the number of queued emissions.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// TryEmit queues p for the next drain. It returns false when the store is
// full or the species is out of range; the particle is not queued.
func (s *Store) TryEmit(p components.Particle) bool {
	if int(p.Species) >= components.MaxSpecies {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alive+len(s.pending) >= s.capacity {
		return false
	}
	s.pending = append(s.pending, p)
	return true
}

// DrainEmissions appends every queued particle to the front buffer and
// returns how many were added.
func (s *Store) DrainEmissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(s.bufs[s.front][s.alive:], s.pending)
	s.alive += n
	s.pending = s.pending[:0]
	return n
}

// CompactRemove scans the live particles once and swap-removes every one for
// which kill returns true. Order is not preserved. Returns the number removed.
func (s *Store) CompactRemove(kill func(*components.Particle) bool) int {
	buf := s.bufs[s.front]
	alive := s.alive
	removed := 0

	for i := 0; i < alive; {
		if kill(&buf[i]) {
			alive--
			buf[i] = buf[alive]
			removed++
			continue
		}
		i++
	}

	if removed > 0 {
		s.mu.Lock()
		s.alive = alive
		s.mu.Unlock()
	}
	return removed
}

// SwapBuffers exchanges the front and back roles.
func (s *Store) SwapBuffers() {
	s.front ^= 1
}

// Front returns the live prefix of the authoritative buffer.
func (s *Store) Front() []components.Particle {
	return s.bufs[s.front][:s.alive]
}

// Back returns the scratch buffer sized to the live count.
func (s *Store) Back() []components.Particle {
	return s.bufs[s.front^1][:s.alive]
}

// Reset drops every live and queued particle.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = 0
	s.pending = s.pending[:0]
}
