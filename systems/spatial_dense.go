package systems

import (
	"slices"
	"sync/atomic"

	"github.com/pthm-cable/ecosim/components"
	"github.com/pthm-cable/ecosim/parallel"
)

// DenseGrid indexes a bounded volume of side*cellSize centered on the origin
// with a flat S*S*S array of chunks. Positions outside the volume are clamped
// into the boundary chunks.
type DenseGrid struct {
	side     int
	cellSize float32
	invCell  float32
	half     float32

	keys    []int32 // per source particle: flat chunk index
	counts  []int32 // per chunk
	starts  []int32 // per chunk: exclusive prefix sum
	cursor  []int32 // per chunk: scatter write cursor
	rowSum  []int32 // per (y,z) row: total count, then row offset
	slabSum []int32 // per z slab: total count, then slab offset

	layout  Layout
	scratch []components.Particle
	built   bool
}

// MaxGridSide bounds the dense grid at side^3 chunks, allocated up front.
const MaxGridSide = 128

// NewDenseGrid creates a grid with side chunks per axis, clamped to
// [1, MaxGridSide].
func NewDenseGrid(side int, cellSize float32) *DenseGrid {
	side = min(max(side, 1), MaxGridSide)
	chunks := side * side * side
	return &DenseGrid{
		side:     side,
		cellSize: cellSize,
		invCell:  1 / cellSize,
		half:     float32(side) / 2,
		counts:   make([]int32, chunks),
		starts:   make([]int32, chunks),
		cursor:   make([]int32, chunks),
		rowSum:   make([]int32, side*side),
		slabSum:  make([]int32, side),
	}
}

// Side returns the number of chunks per axis.
func (g *DenseGrid) Side() int { return g.side }

// CellSize returns the chunk edge length.
func (g *DenseGrid) CellSize() float32 { return g.cellSize }

// Extent returns the half-width of the indexed volume.
func (g *DenseGrid) Extent() float32 { return g.half * g.cellSize }

// KeyOf returns floor(p/cell + S/2) per axis, clamped to [0, S).
func (g *DenseGrid) KeyOf(p components.Vec3) ChunkKey {
	return ChunkKey{
		X: g.axis(p.X),
		Y: g.axis(p.Y),
		Z: g.axis(p.Z),
	}
}

func (g *DenseGrid) axis(v float32) int32 {
	f := v*g.invCell + g.half
	c := int32(f)
	if f < float32(c) {
		c--
	}
	if c < 0 {
		return 0
	}
	if c >= int32(g.side) {
		return int32(g.side) - 1
	}
	return c
}

// flat converts a key to its chunk index (X fastest).
func (g *DenseGrid) flat(k ChunkKey) int {
	return int(k.X) + g.side*(int(k.Y)+g.side*int(k.Z))
}

// Location returns the slot range of the chunk with key k.
func (g *DenseGrid) Location(k ChunkKey) ChunkLocation {
	c := g.flat(k)
	start := int(g.starts[c])
	return ChunkLocation{Start: start, End: start + int(g.counts[c])}
}

// Layout returns the current layout.
func (g *DenseGrid) Layout() *Layout {
	if !g.built {
		return nil
	}
	return &g.layout
}

// Build runs the counting sort:
//  1. count particles per chunk (atomic)
//  2. scan counts along X within each (y,z) row
//  3. scan row totals along Y within each slab, then slab totals along Z,
//     and compose the three scans into chunk start offsets
//  4. scatter source indices at each chunk's atomic cursor, restore source
//     order within each chunk, and gather particles into dst.
//
// Step 4's per-chunk sort makes the layout independent of worker timing.
func (g *DenseGrid) Build(r parallel.Runner, src, dst []components.Particle) *Layout {
	n := len(src)
	S := g.side
	chunks := len(g.counts)

	out := dst
	if len(out) < n {
		g.scratch = growParticles(g.scratch, n)
		out = g.scratch
	}
	out = out[:n]
	g.keys = growInt32(g.keys, n)
	g.layout.Source = growInt32(g.layout.Source, n)

	// Pass 1: count.
	r.Run(chunks, func(_, start, end int) {
		clear(g.counts[start:end])
	})
	r.Run(n, func(_, start, end int) {
		for i := start; i < end; i++ {
			c := int32(g.flat(g.KeyOf(src[i].Position)))
			g.keys[i] = c
			atomic.AddInt32(&g.counts[c], 1)
		}
	})

	// Pass 2: X scan, one row per (y,z).
	r.Run(S*S, func(_, start, end int) {
		for row := start; row < end; row++ {
			base := row * S
			var run int32
			for x := 0; x < S; x++ {
				g.starts[base+x] = run
				run += g.counts[base+x]
			}
			g.rowSum[row] = run
		}
	})

	// Pass 3a: Y scan of row totals, one slab per z.
	r.Run(S, func(_, start, end int) {
		for z := start; z < end; z++ {
			base := z * S
			var run int32
			for y := 0; y < S; y++ {
				total := g.rowSum[base+y]
				g.rowSum[base+y] = run
				run += total
			}
			g.slabSum[z] = run
		}
	})

	// Pass 3b: Z scan of slab totals (S entries).
	var run int32
	for z := 0; z < S; z++ {
		total := g.slabSum[z]
		g.slabSum[z] = run
		run += total
	}

	// Compose offsets and reset cursors.
	r.Run(chunks, func(_, start, end int) {
		for c := start; c < end; c++ {
			row := c / S
			z := row / S
			s := g.starts[c] + g.rowSum[row] + g.slabSum[z]
			g.starts[c] = s
			g.cursor[c] = s
		}
	})

	// Pass 4: scatter, stabilize, gather.
	source := g.layout.Source
	r.Run(n, func(_, start, end int) {
		for i := start; i < end; i++ {
			slot := atomic.AddInt32(&g.cursor[g.keys[i]], 1) - 1
			source[slot] = int32(i)
		}
	})
	r.Run(chunks, func(_, start, end int) {
		for c := start; c < end; c++ {
			cnt := g.counts[c]
			if cnt < 2 {
				continue
			}
			run := source[g.starts[c] : g.starts[c]+cnt]
			if cnt <= 32 {
				insertionSort(run)
			} else {
				slices.Sort(run)
			}
		}
	})
	r.Run(n, func(_, start, end int) {
		for s := start; s < end; s++ {
			out[s] = src[source[s]]
		}
	})

	g.layout.Sorted = out
	g.built = true
	return &g.layout
}

// NeighborRanges collects the chunk containing pos and its in-bounds
// neighbors at offsets {-1,0,1}^3. Empty chunks are skipped.
func (g *DenseGrid) NeighborRanges(pos components.Vec3, dst []ChunkLocation) []ChunkLocation {
	k := g.KeyOf(pos)
	S := int32(g.side)

	for dz := int32(-1); dz <= 1; dz++ {
		z := k.Z + dz
		if z < 0 || z >= S {
			continue
		}
		for dy := int32(-1); dy <= 1; dy++ {
			y := k.Y + dy
			if y < 0 || y >= S {
				continue
			}
			for dx := int32(-1); dx <= 1; dx++ {
				x := k.X + dx
				if x < 0 || x >= S {
					continue
				}
				c := int(x) + g.side*(int(y)+g.side*int(z))
				if cnt := g.counts[c]; cnt > 0 {
					start := int(g.starts[c])
					dst = append(dst, ChunkLocation{Start: start, End: start + int(cnt)})
				}
			}
		}
	}
	return dst
}

// ForEachNeighbor visits every particle NeighborRanges finds.
func (g *DenseGrid) ForEachNeighbor(pos components.Vec3, fn Neighbor) {
	var buf [MaxNeighborChunks]ChunkLocation
	visitRanges(&g.layout, g.NeighborRanges(pos, buf[:0]), fn)
}

// ForEachChunk visits non-empty chunks in flat order.
func (g *DenseGrid) ForEachChunk(fn func(ChunkKey, ChunkLocation)) {
	S := g.side
	for c, cnt := range g.counts {
		if cnt == 0 {
			continue
		}
		k := ChunkKey{X: int32(c % S), Y: int32((c / S) % S), Z: int32(c / (S * S))}
		start := int(g.starts[c])
		fn(k, ChunkLocation{Start: start, End: start + int(cnt)})
	}
}
