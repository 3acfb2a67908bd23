package components

// SpeciesID selects a row/column of the ecosystem tables.
type SpeciesID uint8

// Particle is a single simulated point. It carries no references to display
// state; renderers look particles up by index in the published frame.
type Particle struct {
	Position Vec3
	Velocity Vec3
	Species  SpeciesID
}
