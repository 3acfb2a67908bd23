// Package systems provides the spatial index and ecosystem force model.
package systems

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/ecosim/components"
	"github.com/pthm-cable/ecosim/parallel"
)

// ErrCellTooSmall is returned when a cell size cannot cover the requested
// interaction range with a single-ring neighbor scan.
var ErrCellTooSmall = errors.New("cell size smaller than interaction range")

// ChunkKey is a quantized position.
type ChunkKey struct {
	X, Y, Z int32
}

// ChunkLocation is the half-open slot range [Start, End) of a chunk in the
// chunk-sorted buffer.
type ChunkLocation struct {
	Start, End int
}

// MaxNeighborChunks is the size of a single-ring neighborhood.
const MaxNeighborChunks = 27

// Len returns the number of particles in the chunk.
func (l ChunkLocation) Len() int {
	return l.End - l.Start
}

// Neighbor visits a particle found by a neighbor query. j is the particle's
// index in the buffer the layout was built from; q points into the sorted copy.
type Neighbor func(j int, q *components.Particle)

// Index partitions particles into chunks for localized neighbor queries.
// A layout is tick-scoped: it must be rebuilt whenever positions change.
type Index interface {
	// KeyOf quantizes a position.
	KeyOf(p components.Vec3) ChunkKey
	// CellSize returns the chunk edge length.
	CellSize() float32
	// Build sorts src into dst by chunk and records chunk locations.
	Build(r parallel.Runner, src, dst []components.Particle) *Layout
	// NeighborRanges appends to dst the occupied slot ranges of the chunk
	// containing pos and the 26 chunks around it, at most MaxNeighborChunks.
	NeighborRanges(pos components.Vec3, dst []ChunkLocation) []ChunkLocation
	// ForEachNeighbor visits every particle in those ranges.
	ForEachNeighbor(pos components.Vec3, fn Neighbor)
	// ForEachChunk visits every non-empty chunk of the current layout.
	ForEachChunk(fn func(ChunkKey, ChunkLocation))
	// Layout returns the current layout (nil before the first Build).
	Layout() *Layout
}

// Layout is the chunk-sorted copy of a particle buffer.
type Layout struct {
	Sorted []components.Particle // particles grouped by chunk
	Source []int32               // slot -> index in the buffer Build read from
}

// Promote marks the sorted buffer as the new source of truth: after the caller
// swaps it in as the authoritative buffer, slot i is particle i.
func (l *Layout) Promote() {
	for i := range l.Source {
		l.Source[i] = int32(i)
	}
}

// visitRanges calls fn for every slot in ranges.
func visitRanges(l *Layout, ranges []ChunkLocation, fn Neighbor) {
	for _, loc := range ranges {
		for slot := loc.Start; slot < loc.End; slot++ {
			fn(int(l.Source[slot]), &l.Sorted[slot])
		}
	}
}

// ValidateCoverage checks that a single-ring scan at cellSize sees every
// particle within maxRange.
func ValidateCoverage(cellSize, maxRange float32) error {
	if !(cellSize > 0) || !finite(cellSize) {
		return fmt.Errorf("cell size %.4g must be positive and finite", cellSize)
	}
	if !(cellSize >= maxRange) {
		return fmt.Errorf("cell size %.4g < range %.4g: %w", cellSize, maxRange, ErrCellTooSmall)
	}
	return nil
}

// floorDiv quantizes v by cell, rounding toward negative infinity.
func floorDiv(v, invCell float32) int32 {
	f := v * invCell
	i := int32(f)
	if f < float32(i) {
		i--
	}
	return i
}

// growParticles returns buf resized to n, reallocating only when needed.
func growParticles(buf []components.Particle, n int) []components.Particle {
	if cap(buf) < n {
		return make([]components.Particle, n)
	}
	return buf[:n]
}

func growInt32(buf []int32, n int) []int32 {
	if cap(buf) < n {
		return make([]int32, n)
	}
	return buf[:n]
}

// insertionSort sorts a short run of slot sources in place.
func insertionSort(s []int32) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}
