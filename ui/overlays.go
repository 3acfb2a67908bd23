package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// OverlayID uniquely identifies an overlay.
type OverlayID string

// Standard overlay IDs.
const (
	OverlayBounds     OverlayID = "bounds"
	OverlayCellGrid   OverlayID = "cell_grid"
	OverlayAxes       OverlayID = "axes"
	OverlayVelocities OverlayID = "velocities"
	OverlayPerf       OverlayID = "perf"
	OverlayEditor     OverlayID = "editor"
)

// OverlayDescriptor defines an overlay that can be toggled.
type OverlayDescriptor struct {
	ID          OverlayID   // Unique identifier
	Name        string      // Display name
	Description string      // What this overlay shows
	Key         int32       // Keyboard key to toggle (0 = no key)
	KeyLabel    string      // Key label for display (e.g., "S", "V")
	Category    string      // Grouping (e.g., "scene", "panels")
	Exclusive   []OverlayID // Other overlays to disable when this is enabled
}

// OverlayRegistry manages overlay state and metadata.
type OverlayRegistry struct {
	descriptors []OverlayDescriptor
	byID        map[OverlayID]OverlayDescriptor
	enabled     map[OverlayID]bool
}

// NewOverlayRegistry creates a registry with default overlays.
func NewOverlayRegistry() *OverlayRegistry {
	reg := &OverlayRegistry{
		byID:    make(map[OverlayID]OverlayDescriptor),
		enabled: make(map[OverlayID]bool),
	}
	reg.registerDefaults()
	return reg
}

func (r *OverlayRegistry) registerDefaults() {
	r.Register(OverlayDescriptor{
		ID:          OverlayBounds,
		Name:        "Boundary",
		Description: "Wireframe of the home sphere or box",
		Key:         rl.KeyB,
		KeyLabel:    "B",
		Category:    "scene",
	})
	r.Register(OverlayDescriptor{
		ID:          OverlayCellGrid,
		Name:        "Index Cells",
		Description: "Spatial index cells on the XZ plane",
		Key:         rl.KeyG,
		KeyLabel:    "G",
		Category:    "scene",
	})
	r.Register(OverlayDescriptor{
		ID:          OverlayAxes,
		Name:        "Axes",
		Description: "Unit axes at the origin",
		Key:         rl.KeyX,
		KeyLabel:    "X",
		Category:    "scene",
	})
	r.Register(OverlayDescriptor{
		ID:          OverlayVelocities,
		Name:        "Velocities",
		Description: "Velocity vector per particle",
		Key:         rl.KeyV,
		KeyLabel:    "V",
		Category:    "scene",
	})
	r.Register(OverlayDescriptor{
		ID:          OverlayPerf,
		Name:        "Stage Timings",
		Description: "Per-stage share of tick time",
		Key:         rl.KeyP,
		KeyLabel:    "P",
		Category:    "panels",
	})
	r.Register(OverlayDescriptor{
		ID:          OverlayEditor,
		Name:        "Ecosystem Editor",
		Description: "Edit social forces and drag",
		Key:         rl.KeyE,
		KeyLabel:    "E",
		Category:    "panels",
	})
	r.SetEnabled(OverlayBounds, true)
}

// Register adds an overlay to the registry.
func (r *OverlayRegistry) Register(desc OverlayDescriptor) {
	r.descriptors = append(r.descriptors, desc)
	r.byID[desc.ID] = desc
	r.enabled[desc.ID] = false
}

// Toggle switches an overlay on/off and handles exclusivity.
func (r *OverlayRegistry) Toggle(id OverlayID) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	newState := !r.enabled[id]
	r.SetEnabled(id, newState)
	return newState
}

// SetEnabled explicitly sets an overlay's state.
func (r *OverlayRegistry) SetEnabled(id OverlayID, enabled bool) {
	desc, ok := r.byID[id]
	if !ok {
		return
	}

	r.enabled[id] = enabled
	if enabled {
		for _, excl := range desc.Exclusive {
			r.enabled[excl] = false
		}
	}
}

// IsEnabled returns whether an overlay is active.
func (r *OverlayRegistry) IsEnabled(id OverlayID) bool {
	return r.enabled[id]
}

// ByCategory returns overlays filtered by category.
func (r *OverlayRegistry) ByCategory(category string) []OverlayDescriptor {
	var result []OverlayDescriptor
	for _, desc := range r.descriptors {
		if desc.Category == category {
			result = append(result, desc)
		}
	}
	return result
}

// Categories returns all unique categories in order.
func (r *OverlayRegistry) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, desc := range r.descriptors {
		if !seen[desc.Category] {
			seen[desc.Category] = true
			cats = append(cats, desc.Category)
		}
	}
	return cats
}

// HandleKeys toggles every overlay whose key was pressed this frame.
func (r *OverlayRegistry) HandleKeys() {
	for _, desc := range r.descriptors {
		if desc.Key != 0 && rl.IsKeyPressed(desc.Key) {
			r.Toggle(desc.ID)
		}
	}
}
