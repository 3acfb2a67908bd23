// Package config provides configuration loading and access for the simulation.
package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/ecosim/components"
	"github.com/pthm-cable/ecosim/systems"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed presets/*.yaml
var presetFS embed.FS

// ErrCellTooSmall is returned by Validate when the index cell size cannot
// cover the largest configured interaction range.
var ErrCellTooSmall = systems.ErrCellTooSmall

// Config holds all simulation configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Simulation SimulationConfig `yaml:"simulation"`
	Index      IndexConfig      `yaml:"index"`
	Collision  CollisionConfig  `yaml:"collision"`
	Species    []SpeciesConfig  `yaml:"species"`
	Social     []SocialConfig   `yaml:"social"`
	Boundary   BoundaryConfig   `yaml:"boundary"`
	Gravity    [3]float64       `yaml:"gravity"`
	Flow       FlowConfig       `yaml:"flow"`
	Emitter    EmitterConfig    `yaml:"emitter"`
	Kill       KillConfig       `yaml:"kill"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Stream     StreamConfig     `yaml:"stream"`
	Tracing    TracingConfig    `yaml:"tracing"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds window dimensions for the graphical viewer.
type ScreenConfig struct {
	Width     int  `yaml:"width"`
	Height    int  `yaml:"height"`
	TargetFPS int  `yaml:"target_fps"`
	ShowPanel bool `yaml:"show_panel"`
}

// SimulationConfig holds scheduler parameters.
type SimulationConfig struct {
	Capacity int     `yaml:"capacity"`
	DT       float64 `yaml:"dt"`
	Parallel bool    `yaml:"parallel"`
	Workers  int     `yaml:"workers"` // 0 = GOMAXPROCS
	Seed     int64   `yaml:"seed"`
}

// IndexConfig selects and sizes the spatial index.
type IndexConfig struct {
	Strategy          string  `yaml:"strategy"` // dense | hashed | none
	CellSize          float64 `yaml:"cell_size"`
	GridSide          int     `yaml:"grid_side"`           // dense only
	CollisionCellSize float64 `yaml:"collision_cell_size"` // hashed only, 0 = share cell_size
}

// CollisionConfig selects collision candidate search.
type CollisionConfig struct {
	Mode string `yaml:"mode"` // chunked | brute
}

// SpeciesConfig defines one species.
type SpeciesConfig struct {
	Name           string   `yaml:"name"`
	Drag           float64  `yaml:"drag"`
	CollisionForce float64  `yaml:"collision_force"`
	Radius         float64  `yaml:"radius"`
	Color          [3]uint8 `yaml:"color"`
	Weight         float64  `yaml:"weight"` // emission share, 0 = 1
}

// SocialConfig is one directed entry of the social matrix.
type SocialConfig struct {
	From      string  `yaml:"from"`
	To        string  `yaml:"to"`
	Force     float64 `yaml:"force"`
	Range     float64 `yaml:"range"`
	Symmetric bool    `yaml:"symmetric"` // also set To->From
}

// BoundaryConfig selects the boundary policy.
type BoundaryConfig struct {
	Kind       string     `yaml:"kind"` // home | box | none
	Home       [3]float64 `yaml:"home"`
	Radius     float64    `yaml:"radius"`
	HalfExtent float64    `yaml:"half_extent"`
	Strength   float64    `yaml:"strength"`
}

// FlowConfig configures the noise flow field. Zero strength disables it.
type FlowConfig struct {
	Strength float64  `yaml:"strength"`
	Scale    float64  `yaml:"scale"`
	Seed     int64    `yaml:"seed"`    // 0 = simulation seed
	Species  []string `yaml:"species"` // empty = all
}

// EmitterConfig controls particle seeding and the steady emission stream.
type EmitterConfig struct {
	Initial int        `yaml:"initial"` // burst on the first tick
	Rate    int        `yaml:"rate"`    // per tick afterwards
	Center  [3]float64 `yaml:"center"`
	Radius  float64    `yaml:"radius"`
	Speed   float64    `yaml:"speed"`
}

// KillConfig selects the kill policy.
type KillConfig struct {
	Policy string  `yaml:"policy"` // never | outside_radius
	Radius float64 `yaml:"radius"`
}

// TelemetryConfig holds window sizes for stats and perf collection.
type TelemetryConfig struct {
	StatsWindowTicks int  `yaml:"stats_window_ticks"`
	PerfWindowTicks  int  `yaml:"perf_window_ticks"`
	LogStats         bool `yaml:"log_stats"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// StreamConfig controls the websocket frame stream.
type StreamConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	IntervalTicks int    `yaml:"interval_ticks"`
}

// TracingConfig controls tick tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32           float32                        // Simulation.DT as float32
	SpeciesIndex   map[string]components.SpeciesID // name -> id
	MaxSocialRange float64
	MaxDiameter    float64 // largest pairwise collision diameter
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	return LoadWithPreset("", path)
}

// LoadWithPreset layers embedded defaults, then the named preset (if any),
// then the user file (if any). The result is validated.
func LoadWithPreset(preset, path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if preset != "" {
		data, err := presetFS.ReadFile("presets/" + preset + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("unknown preset %q (have %s)", preset, strings.Join(Presets(), ", "))
		}
		// Presets replace the species and social lists wholesale.
		cfg.Species, cfg.Social = nil, nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing preset %s: %w", preset, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Presets lists the embedded preset names.
func Presets() []string {
	entries, err := fs.ReadDir(presetFS, "presets")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy that shares no slices with c.
func (c *Config) Clone() *Config {
	out := *c
	out.Species = append([]SpeciesConfig(nil), c.Species...)
	out.Social = append([]SocialConfig(nil), c.Social...)
	out.Derived.SpeciesIndex = nil
	out.computeDerived()
	return &out
}

// Refresh recomputes derived values after fields were edited in code and
// validates the result.
func (c *Config) Refresh() error {
	c.computeDerived()
	return c.Validate()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Simulation.DT == 0 {
		c.Simulation.DT = 1
	}
	c.Derived.DT32 = float32(c.Simulation.DT)

	c.Derived.SpeciesIndex = make(map[string]components.SpeciesID, len(c.Species))
	var maxRadius float64
	for i, s := range c.Species {
		if i < components.MaxSpecies {
			c.Derived.SpeciesIndex[s.Name] = components.SpeciesID(i)
		}
		if s.Radius > maxRadius {
			maxRadius = s.Radius
		}
	}
	c.Derived.MaxDiameter = 2 * maxRadius

	c.Derived.MaxSocialRange = 0
	for _, s := range c.Social {
		if s.Range > c.Derived.MaxSocialRange {
			c.Derived.MaxSocialRange = s.Range
		}
	}
}

// Validate checks the configuration for inconsistencies that would otherwise
// show up as silently wrong simulation behavior.
func (c *Config) Validate() error {
	var errs []error

	if c.Simulation.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("simulation.capacity must be positive, got %d", c.Simulation.Capacity))
	}
	if !(c.Simulation.DT >= 0) || !finite(c.Simulation.DT) {
		errs = append(errs, fmt.Errorf("simulation.dt must be positive, got %g", c.Simulation.DT))
	}

	switch n := len(c.Species); {
	case n == 0:
		errs = append(errs, errors.New("at least one species is required"))
	case n > components.MaxSpecies:
		errs = append(errs, fmt.Errorf("%d species configured, max is %d", n, components.MaxSpecies))
	}
	seen := make(map[string]bool, len(c.Species))
	for i, s := range c.Species {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("species[%d]: name is required", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("species[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
		if !(s.Drag >= 0 && s.Drag < 1) {
			errs = append(errs, fmt.Errorf("species %q: drag %g outside [0,1)", s.Name, s.Drag))
		}
		if !nonNegative(s.CollisionForce) {
			errs = append(errs, fmt.Errorf("species %q: invalid collision_force %g", s.Name, s.CollisionForce))
		}
		if !nonNegative(s.Radius) {
			errs = append(errs, fmt.Errorf("species %q: invalid radius %g", s.Name, s.Radius))
		}
		if !nonNegative(s.Weight) {
			errs = append(errs, fmt.Errorf("species %q: invalid weight %g", s.Name, s.Weight))
		}
	}

	for i, s := range c.Social {
		if _, ok := c.Derived.SpeciesIndex[s.From]; !ok {
			errs = append(errs, fmt.Errorf("social[%d]: unknown species %q", i, s.From))
		}
		if _, ok := c.Derived.SpeciesIndex[s.To]; !ok {
			errs = append(errs, fmt.Errorf("social[%d]: unknown species %q", i, s.To))
		}
		if !finite(s.Force) {
			errs = append(errs, fmt.Errorf("social[%d]: invalid force %g", i, s.Force))
		}
		if !nonNegative(s.Range) {
			errs = append(errs, fmt.Errorf("social[%d]: invalid range %g", i, s.Range))
		}
	}

	switch c.Index.Strategy {
	case "dense", "hashed":
		if err := systems.ValidateCoverage(float32(c.Index.CellSize), float32(c.Derived.MaxSocialRange)); err != nil {
			errs = append(errs, fmt.Errorf("index.cell_size: %w", err))
		}
		if c.Collision.Mode != "brute" {
			cell := c.Index.CellSize
			if c.Index.Strategy == "hashed" && c.Index.CollisionCellSize > 0 {
				cell = c.Index.CollisionCellSize
			}
			if err := systems.ValidateCoverage(float32(cell), float32(c.Derived.MaxDiameter)); err != nil {
				errs = append(errs, fmt.Errorf("collision cell: %w", err))
			}
		}
		if c.Index.Strategy == "dense" && (c.Index.GridSide <= 0 || c.Index.GridSide > systems.MaxGridSide) {
			errs = append(errs, fmt.Errorf("index.grid_side %d outside [1,%d] for dense strategy", c.Index.GridSide, systems.MaxGridSide))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown index.strategy %q", c.Index.Strategy))
	}

	switch c.Collision.Mode {
	case "chunked", "brute":
	default:
		errs = append(errs, fmt.Errorf("unknown collision.mode %q", c.Collision.Mode))
	}

	if !finite(c.Flow.Strength) {
		errs = append(errs, fmt.Errorf("flow.strength must be finite, got %g", c.Flow.Strength))
	}
	if c.Flow.Strength != 0 && (!(c.Flow.Scale > 0) || !finite(c.Flow.Scale)) {
		errs = append(errs, fmt.Errorf("flow.scale must be positive, got %g", c.Flow.Scale))
	}
	for _, name := range c.Flow.Species {
		if _, ok := c.Derived.SpeciesIndex[name]; !ok {
			errs = append(errs, fmt.Errorf("flow: unknown species %q", name))
		}
	}

	switch c.Boundary.Kind {
	case "home", "box", "none", "":
	default:
		errs = append(errs, fmt.Errorf("unknown boundary.kind %q", c.Boundary.Kind))
	}

	for _, f := range []struct {
		name string
		v    float64
	}{
		{"gravity.x", c.Gravity[0]},
		{"gravity.y", c.Gravity[1]},
		{"gravity.z", c.Gravity[2]},
		{"boundary.home.x", c.Boundary.Home[0]},
		{"boundary.home.y", c.Boundary.Home[1]},
		{"boundary.home.z", c.Boundary.Home[2]},
		{"boundary.radius", c.Boundary.Radius},
		{"boundary.half_extent", c.Boundary.HalfExtent},
		{"boundary.strength", c.Boundary.Strength},
		{"emitter.center.x", c.Emitter.Center[0]},
		{"emitter.center.y", c.Emitter.Center[1]},
		{"emitter.center.z", c.Emitter.Center[2]},
		{"emitter.radius", c.Emitter.Radius},
		{"emitter.speed", c.Emitter.Speed},
		{"kill.radius", c.Kill.Radius},
	} {
		if !finite(f.v) {
			errs = append(errs, fmt.Errorf("%s must be finite, got %g", f.name, f.v))
		}
	}

	switch c.Kill.Policy {
	case "never", "", "outside_radius":
	default:
		errs = append(errs, fmt.Errorf("unknown kill.policy %q", c.Kill.Policy))
	}

	return errors.Join(errs...)
}

// finite reports whether v stays finite once narrowed to float32.
func finite(v float64) bool {
	f := float64(float32(v))
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func nonNegative(v float64) bool {
	return v >= 0 && finite(v)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
