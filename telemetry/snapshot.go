package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/ecosim/components"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 2

// Snapshot holds a published frame plus enough run context to resume it.
type Snapshot struct {
	Version int    `json:"version"`
	RNGSeed int64  `json:"rng_seed"`
	Preset  string `json:"preset,omitempty"`

	Tick int64 `json:"tick"`

	Particles []ParticleState `json:"particles"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// ParticleState is the JSON form of one particle.
type ParticleState struct {
	Pos     [3]float32 `json:"pos"`
	Vel     [3]float32 `json:"vel"`
	Species uint8      `json:"species"`
}

// NewSnapshot captures ps at tick.
func NewSnapshot(tick int64, seed int64, preset string, ps []components.Particle) *Snapshot {
	s := &Snapshot{
		Version:   SnapshotVersion,
		RNGSeed:   seed,
		Preset:    preset,
		Tick:      tick,
		Particles: make([]ParticleState, len(ps)),
	}
	for i, p := range ps {
		s.Particles[i] = ParticleState{
			Pos:     [3]float32{p.Position.X, p.Position.Y, p.Position.Z},
			Vel:     [3]float32{p.Velocity.X, p.Velocity.Y, p.Velocity.Z},
			Species: uint8(p.Species),
		}
	}
	return s
}

// ToParticles converts the snapshot back to simulation particles.
func (s *Snapshot) ToParticles() []components.Particle {
	out := make([]components.Particle, len(s.Particles))
	for i, ps := range s.Particles {
		out[i] = components.Particle{
			Position: components.Vec3{X: ps.Pos[0], Y: ps.Pos[1], Z: ps.Pos[2]},
			Velocity: components.Vec3{X: ps.Vel[0], Y: ps.Vel[1], Z: ps.Vel[2]},
			Species:  components.SpeciesID(ps.Species),
		}
	}
	return out
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
