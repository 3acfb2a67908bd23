package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/ecosim/components"
	"github.com/pthm-cable/ecosim/sim"
	"github.com/pthm-cable/ecosim/systems"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}

	if cfg.Simulation.Capacity != 4096 {
		t.Errorf("capacity = %d, want 4096", cfg.Simulation.Capacity)
	}
	if cfg.Derived.DT32 != 1 {
		t.Errorf("DT32 = %v, want 1", cfg.Derived.DT32)
	}
	if got := len(cfg.Derived.SpeciesIndex); got != 3 {
		t.Errorf("species index has %d entries, want 3", got)
	}
	if cfg.Derived.MaxSocialRange != 0.5 {
		t.Errorf("MaxSocialRange = %v, want 0.5", cfg.Derived.MaxSocialRange)
	}
}

func TestLoad_OverlayKeepsUnsetFields(t *testing.T) {
	path := writeFile(t, "simulation:\n  capacity: 100\n  parallel: false\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulation.Capacity != 100 || cfg.Simulation.Parallel {
		t.Errorf("overlay not applied: %+v", cfg.Simulation)
	}
	if cfg.Index.CellSize != 0.5 {
		t.Errorf("cell size = %v, want default 0.5", cfg.Index.CellSize)
	}
}

func TestLoad_RejectsCellSmallerThanSocialRange(t *testing.T) {
	path := writeFile(t, "index:\n  cell_size: 0.3\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for cell_size below social range")
	}
	if !errors.Is(err, ErrCellTooSmall) {
		t.Errorf("error %v does not wrap ErrCellTooSmall", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadWithPreset(t *testing.T) {
	for _, name := range Presets() {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadWithPreset(name, "")
			if err != nil {
				t.Fatalf("preset %s: %v", name, err)
			}
			if len(cfg.Species) == 0 {
				t.Error("preset has no species")
			}
		})
	}

	if _, err := LoadWithPreset("missing", ""); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestPresets_Listed(t *testing.T) {
	want := map[string]bool{"chase": true, "clusters": true, "pair": true}
	got := Presets()
	if len(got) != len(want) {
		t.Fatalf("Presets() = %v", got)
	}
	for _, n := range got {
		if !want[n] {
			t.Errorf("unexpected preset %q", n)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no species", func(c *Config) { c.Species = nil; c.Social = nil }, true},
		{"duplicate species", func(c *Config) { c.Species[1].Name = c.Species[0].Name }, true},
		{"drag out of range", func(c *Config) { c.Species[0].Drag = 1.2 }, true},
		{"unknown social species", func(c *Config) { c.Social[0].To = "purple" }, true},
		{"unknown strategy", func(c *Config) { c.Index.Strategy = "octree" }, true},
		{"brute force ignores cell", func(c *Config) { c.Index.Strategy = "none"; c.Index.CellSize = 0.01 }, false},
		{"collision cell too small", func(c *Config) {
			c.Index.Strategy = "hashed"
			c.Index.CollisionCellSize = 0.01
		}, true},
		{"dense without side", func(c *Config) { c.Index.GridSide = 0 }, true},
		{"dense side too large", func(c *Config) { c.Index.GridSide = 4096 }, true},
		{"nan drag", func(c *Config) { c.Species[0].Drag = math.NaN() }, true},
		{"inf collision force", func(c *Config) { c.Species[0].CollisionForce = math.Inf(1) }, true},
		{"nan radius", func(c *Config) { c.Species[0].Radius = math.NaN() }, true},
		{"inf social force", func(c *Config) { c.Social[0].Force = math.Inf(1) }, true},
		{"social force overflows float32", func(c *Config) { c.Social[0].Force = 1e300 }, true},
		{"nan social range", func(c *Config) { c.Social[0].Range = math.NaN() }, true},
		{"nan cell size", func(c *Config) { c.Index.CellSize = math.NaN() }, true},
		{"nan dt", func(c *Config) { c.Simulation.DT = math.NaN() }, true},
		{"inf gravity", func(c *Config) { c.Gravity[1] = math.Inf(-1) }, true},
		{"nan flow strength", func(c *Config) { c.Flow.Strength = math.NaN() }, true},
		{"nan emitter radius", func(c *Config) { c.Emitter.Radius = math.NaN() }, true},
		{"unknown boundary", func(c *Config) { c.Boundary.Kind = "torus" }, true},
		{"unknown kill policy", func(c *Config) { c.Kill.Policy = "random" }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			tc.mutate(cfg)
			cfg.computeDerived()
			err = cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_RejectsNaNFromYAML(t *testing.T) {
	path := writeFile(t, `
species:
  - {name: a, drag: .nan}
social: []
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "drag") {
		t.Fatalf("Load() error = %v, want drag rejected", err)
	}
}

func TestConfig_Ecosystem(t *testing.T) {
	cfg, err := LoadWithPreset("pair", "")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Gravity = [3]float64{0, -0.001, 0}

	e := cfg.Ecosystem()
	if got := e.Social[0][1]; got.Force != 0.0005 || got.Range != 0.5 {
		t.Errorf("Social[0][1] = %+v", got)
	}
	if e.Social[1][0] != e.Social[0][1] {
		t.Error("symmetric entry not mirrored")
	}
	if e.Species[0].Drag != float32(0.1) {
		t.Errorf("drag = %v", e.Species[0].Drag)
	}
	if _, ok := e.Boundary.(systems.HomeBoundary); !ok {
		t.Errorf("boundary = %T, want HomeBoundary", e.Boundary)
	}
	if len(e.Fields) != 1 {
		t.Errorf("fields = %d, want gravity only", len(e.Fields))
	}
	if err := e.Validate(); err != nil {
		t.Errorf("built ecosystem invalid: %v", err)
	}
}

func TestConfig_SchedulerParts(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	opts := cfg.SimOptions()
	if opts.Strategy != sim.StrategyDense || opts.CellSize != 0.5 || opts.GridSide != 16 {
		t.Errorf("SimOptions = %+v", opts)
	}

	if _, ok := cfg.KillPolicy().(sim.OutsideRadius); !ok {
		t.Errorf("KillPolicy = %T", cfg.KillPolicy())
	}

	ems := cfg.Emitters(1)
	if len(ems) != 1 {
		t.Fatalf("Emitters() = %d, want only the initial burst", len(ems))
	}
	burst, ok := ems[0].(sim.Burst)
	if !ok || burst.Count != 1500 {
		t.Errorf("burst = %+v", ems[0])
	}

	ids, weights := cfg.SpeciesIDs()
	if len(ids) != 3 || ids[2] != components.SpeciesID(2) || weights[0] != 1 {
		t.Errorf("SpeciesIDs = %v %v", ids, weights)
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	cfg, err := LoadWithPreset("chase", "")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	back, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(back.Species) != 2 || back.Species[1].Name != "hunter" {
		t.Errorf("reloaded species = %+v", back.Species)
	}
}

func TestClone_Independent(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	c := cfg.Clone()
	c.Species[0].Drag = 0.5
	c.Social[0].Range = 0.45
	if err := c.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if cfg.Species[0].Drag == 0.5 || cfg.Social[0].Range == 0.45 {
		t.Error("clone shares slices with the original")
	}
	if c.Derived.SpeciesIndex["green"] != 1 {
		t.Errorf("clone species index = %v", c.Derived.SpeciesIndex)
	}
}

func TestRefresh_RejectsRangeBeyondCell(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	c := cfg.Clone()
	c.Social[0].Range = c.Index.CellSize * 2
	if err := c.Refresh(); !errors.Is(err, ErrCellTooSmall) {
		t.Errorf("Refresh() = %v, want ErrCellTooSmall", err)
	}
}

func TestConfig_FlowField(t *testing.T) {
	cfg, err := LoadWithPreset("chase", "")
	if err != nil {
		t.Fatal(err)
	}

	e := cfg.Ecosystem()
	if len(e.Fields) != 1 {
		t.Fatalf("fields = %d, want flow only", len(e.Fields))
	}
	f, ok := e.Fields[0].(systems.FlowField)
	if !ok {
		t.Fatalf("field = %T, want FlowField", e.Fields[0])
	}
	if f.Mask != 1 {
		t.Errorf("mask = %b, want prey only", f.Mask)
	}

	cfg.Flow.Species = []string{"plankton"}
	cfg.computeDerived()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown flow species")
	}
}
