package main

import (
	"fmt"

	"github.com/pthm-cable/ecosim/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec

	numSocial  int
	numSpecies int
}

// Force bounds for social entries.
const (
	minForce = -0.002
	maxForce = 0.002
	minRange = 0.05
)

// NewParamVector derives the tunable parameters from cfg: force and range
// for every social entry, then drag for every species. Ranges are capped at
// the index cell size so every candidate passes validation.
func NewParamVector(cfg *config.Config) *ParamVector {
	pv := &ParamVector{numSocial: len(cfg.Social), numSpecies: len(cfg.Species)}

	maxRange := cfg.Index.CellSize
	if cfg.Index.Strategy == "none" || maxRange <= minRange {
		maxRange = 1
	}

	for i, s := range cfg.Social {
		pv.Specs = append(pv.Specs,
			ParamSpec{
				Name:    fmt.Sprintf("%s_%s_force", s.From, s.To),
				Path:    fmt.Sprintf("social[%d].force", i),
				Min:     minForce,
				Max:     maxForce,
				Default: s.Force,
			},
			ParamSpec{
				Name:    fmt.Sprintf("%s_%s_range", s.From, s.To),
				Path:    fmt.Sprintf("social[%d].range", i),
				Min:     minRange,
				Max:     maxRange,
				Default: min(max(s.Range, minRange), maxRange),
			},
		)
	}
	for i, s := range cfg.Species {
		pv.Specs = append(pv.Specs, ParamSpec{
			Name:    s.Name + "_drag",
			Path:    fmt.Sprintf("species[%d].drag", i),
			Min:     0.01,
			Max:     0.5,
			Default: s.Drag,
		})
	}
	return pv
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped values into cfg and refreshes its derived
// fields. Order matches Specs.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	clamped := pv.Clamp(values)

	i := 0
	for s := 0; s < pv.numSocial; s++ {
		cfg.Social[s].Force = clamped[i]
		cfg.Social[s].Range = clamped[i+1]
		i += 2
	}
	for s := 0; s < pv.numSpecies; s++ {
		cfg.Species[s].Drag = clamped[i]
		i++
	}
	return cfg.Refresh()
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := make([]float64, 0, len(pv.Specs))
	for _, s := range cfg.Social[:pv.numSocial] {
		v = append(v, s.Force, s.Range)
	}
	for _, s := range cfg.Species[:pv.numSpecies] {
		v = append(v, s.Drag)
	}
	return v
}
