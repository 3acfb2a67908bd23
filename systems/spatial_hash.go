package systems

import (
	"cmp"
	"slices"

	"github.com/pthm-cable/ecosim/components"
	"github.com/pthm-cable/ecosim/parallel"
)

// HashedGrid indexes an unbounded volume with a map from chunk key to slot
// range. Several grids with different cell sizes can coexist, e.g. a tight
// one for collisions and a coarse one for long-range social forces.
type HashedGrid struct {
	cellSize float32
	invCell  float32

	keys   []ChunkKey
	locs   map[ChunkKey]ChunkLocation
	cursor map[ChunkKey]int
	order  []ChunkKey

	layout  Layout
	scratch []components.Particle
	built   bool
}

// NewHashedGrid creates an empty hashed grid.
func NewHashedGrid(cellSize float32) *HashedGrid {
	return &HashedGrid{
		cellSize: cellSize,
		invCell:  1 / cellSize,
		locs:     make(map[ChunkKey]ChunkLocation),
		cursor:   make(map[ChunkKey]int),
	}
}

// CellSize returns the chunk edge length.
func (g *HashedGrid) CellSize() float32 { return g.cellSize }

// KeyOf returns floor(p/cell) per axis.
func (g *HashedGrid) KeyOf(p components.Vec3) ChunkKey {
	return ChunkKey{
		X: floorDiv(p.X, g.invCell),
		Y: floorDiv(p.Y, g.invCell),
		Z: floorDiv(p.Z, g.invCell),
	}
}

// Layout returns the current layout.
func (g *HashedGrid) Layout() *Layout {
	if !g.built {
		return nil
	}
	return &g.layout
}

// Location returns the slot range for k and whether the chunk is occupied.
func (g *HashedGrid) Location(k ChunkKey) (ChunkLocation, bool) {
	loc, ok := g.locs[k]
	return loc, ok
}

// Chunks returns the number of occupied chunks.
func (g *HashedGrid) Chunks() int { return len(g.locs) }

// Build counts occurrences per key, assigns each key a contiguous range by
// prefix sum over the keys in sorted order, then scatters particles into dst
// at each key's cursor. If dst is too short the grid uses a private buffer.
func (g *HashedGrid) Build(r parallel.Runner, src, dst []components.Particle) *Layout {
	n := len(src)
	out := dst
	if len(out) < n {
		g.scratch = growParticles(g.scratch, n)
		out = g.scratch
	}
	out = out[:n]

	if cap(g.keys) < n {
		g.keys = make([]ChunkKey, n)
	}
	g.keys = g.keys[:n]
	g.layout.Source = growInt32(g.layout.Source, n)

	r.Run(n, func(_, start, end int) {
		for i := start; i < end; i++ {
			g.keys[i] = g.KeyOf(src[i].Position)
		}
	})

	// (a) count per key; map writes stay on this goroutine.
	clear(g.locs)
	for _, k := range g.keys {
		loc := g.locs[k]
		loc.End++
		g.locs[k] = loc
	}

	// (b) prefix sum over keys in a deterministic order.
	g.order = g.order[:0]
	for k := range g.locs {
		g.order = append(g.order, k)
	}
	slices.SortFunc(g.order, compareKeys)

	clear(g.cursor)
	run := 0
	for _, k := range g.order {
		cnt := g.locs[k].End
		g.locs[k] = ChunkLocation{Start: run, End: run + cnt}
		g.cursor[k] = run
		run += cnt
	}

	// (c) scatter in source order, which keeps each chunk stable.
	source := g.layout.Source
	for i, k := range g.keys {
		slot := g.cursor[k]
		g.cursor[k] = slot + 1
		source[slot] = int32(i)
	}
	r.Run(n, func(_, start, end int) {
		for s := start; s < end; s++ {
			out[s] = src[source[s]]
		}
	})

	g.layout.Sorted = out
	g.built = true
	return &g.layout
}

// NeighborRanges probes the 27 chunks around pos; empty chunks miss and are
// skipped.
func (g *HashedGrid) NeighborRanges(pos components.Vec3, dst []ChunkLocation) []ChunkLocation {
	k := g.KeyOf(pos)
	for dz := int32(-1); dz <= 1; dz++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				if loc, ok := g.locs[ChunkKey{X: k.X + dx, Y: k.Y + dy, Z: k.Z + dz}]; ok {
					dst = append(dst, loc)
				}
			}
		}
	}
	return dst
}

// ForEachNeighbor visits every particle NeighborRanges finds.
func (g *HashedGrid) ForEachNeighbor(pos components.Vec3, fn Neighbor) {
	var buf [MaxNeighborChunks]ChunkLocation
	visitRanges(&g.layout, g.NeighborRanges(pos, buf[:0]), fn)
}

// ForEachChunk visits occupied chunks in slot order.
func (g *HashedGrid) ForEachChunk(fn func(ChunkKey, ChunkLocation)) {
	for _, k := range g.order {
		fn(k, g.locs[k])
	}
}

func compareKeys(a, b ChunkKey) int {
	if c := cmp.Compare(a.Z, b.Z); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.X, b.X)
}
