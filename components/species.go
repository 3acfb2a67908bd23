package components

// MaxSpecies bounds the species tables.
const MaxSpecies = 16

// SpeciesParams holds per-species physical parameters.
type SpeciesParams struct {
	Drag           float32 // fraction of velocity removed per tick, in [0,1)
	CollisionForce float32 // impulse scale for overlapping particles
	Radius         float32 // collision radius; pair diameter is the sum of radii
}

// SocialEntry is the force one species feels toward another.
// Positive attracts, negative repels. Entries need not be symmetric.
type SocialEntry struct {
	Force float32
	Range float32
}
