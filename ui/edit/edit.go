// Package edit holds the editable draft behind the ecosystem panel. It has
// no rendering dependencies.
package edit

import (
	"fmt"

	"github.com/pthm-cable/ecosim/components"
	"github.com/pthm-cable/ecosim/systems"
)

// CoverageCheck rejects a draft the running index cannot serve.
type CoverageCheck func(*systems.Ecosystem) error

// Editor tracks a draft copy of an ecosystem and the selected species pair.
type Editor struct {
	names []string
	base  *systems.Ecosystem
	draft *systems.Ecosystem
	check CoverageCheck

	From, To int
	dirty    bool
	err      error
}

// New starts editing a copy of eco. names labels the configured species.
func New(eco *systems.Ecosystem, names []string, check CoverageCheck) *Editor {
	return &Editor{
		names: names,
		base:  eco,
		draft: eco.Clone(),
		check: check,
	}
}

// Names returns the species labels.
func (e *Editor) Names() []string { return e.names }

// Dirty reports unapplied changes.
func (e *Editor) Dirty() bool { return e.dirty }

// Err returns the error from the last Commit.
func (e *Editor) Err() error { return e.err }

// Draft returns the working copy.
func (e *Editor) Draft() *systems.Ecosystem { return e.draft }

// Select chooses the pair edited by SetForce and SetRange.
func (e *Editor) Select(from, to int) {
	e.From = e.clamp(from)
	e.To = e.clamp(to)
}

// Cycle advances the selection row-major through the species pairs.
func (e *Editor) Cycle() {
	n := len(e.names)
	if n == 0 {
		return
	}
	e.To++
	if e.To >= n {
		e.To = 0
		e.From = (e.From + 1) % n
	}
}

func (e *Editor) clamp(i int) int {
	n := len(e.names)
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Pair returns the selected social entry.
func (e *Editor) Pair() components.SocialEntry {
	return e.draft.Social[e.From][e.To]
}

// SetForce updates the selected pair's force.
func (e *Editor) SetForce(f float32) {
	s := &e.draft.Social[e.From][e.To]
	if s.Force != f {
		s.Force = f
		e.dirty = true
	}
}

// SetRange updates the selected pair's range.
func (e *Editor) SetRange(r float32) {
	s := &e.draft.Social[e.From][e.To]
	if s.Range != r {
		s.Range = r
		e.dirty = true
	}
}

// Drag returns a species' drag in the draft.
func (e *Editor) Drag(species int) float32 {
	return e.draft.Species[e.clamp(species)].Drag
}

// SetDrag updates a species' drag.
func (e *Editor) SetDrag(species int, d float32) {
	sp := &e.draft.Species[e.clamp(species)]
	if sp.Drag != d {
		sp.Drag = d
		e.dirty = true
	}
}

// Commit validates the draft and returns a copy ready to hand to the
// scheduler. The draft stays editable.
func (e *Editor) Commit() (*systems.Ecosystem, error) {
	e.err = nil
	if err := e.draft.Validate(); err != nil {
		e.err = err
		return nil, err
	}
	if e.check != nil {
		if err := e.check(e.draft); err != nil {
			e.err = fmt.Errorf("rejected: %w", err)
			return nil, e.err
		}
	}
	e.base = e.draft.Clone()
	e.dirty = false
	return e.base, nil
}

// Revert discards unapplied changes.
func (e *Editor) Revert() {
	e.draft = e.base.Clone()
	e.dirty = false
	e.err = nil
}
