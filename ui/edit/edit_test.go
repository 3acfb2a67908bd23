package edit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/ecosim/systems"
)

func baseEcosystem() *systems.Ecosystem {
	e := systems.NewEcosystem()
	e.SetSocial(0, 1, 0.001, 0.4)
	e.Species[0].Drag = 0.1
	return e
}

func TestEditor_CommitLeavesOriginal(t *testing.T) {
	orig := baseEcosystem()
	ed := New(orig, []string{"a", "b"}, nil)

	ed.Select(0, 1)
	ed.SetForce(-0.002)
	ed.SetDrag(0, 0.3)
	assert.True(t, ed.Dirty())

	got, err := ed.Commit()
	require.NoError(t, err)
	assert.False(t, ed.Dirty())
	assert.Equal(t, float32(-0.002), got.Social[0][1].Force)
	assert.Equal(t, float32(0.3), got.Species[0].Drag)

	assert.Equal(t, float32(0.001), orig.Social[0][1].Force, "original untouched")

	// later edits do not leak into the committed copy
	ed.SetForce(1)
	assert.Equal(t, float32(-0.002), got.Social[0][1].Force)
}

func TestEditor_CommitRejectsInvalid(t *testing.T) {
	ed := New(baseEcosystem(), []string{"a", "b"}, nil)
	ed.SetDrag(1, 1.5)

	_, err := ed.Commit()
	require.Error(t, err)
	assert.Equal(t, err, ed.Err())
	assert.True(t, ed.Dirty())

	ed.Revert()
	assert.False(t, ed.Dirty())
	assert.NoError(t, ed.Err())
	assert.Equal(t, float32(0), ed.Drag(1))
}

func TestEditor_CoverageCheck(t *testing.T) {
	tooFar := errors.New("range exceeds cell")
	check := func(e *systems.Ecosystem) error {
		if e.MaxSocialRange() > 0.5 {
			return tooFar
		}
		return nil
	}
	ed := New(baseEcosystem(), []string{"a", "b"}, check)
	ed.Select(0, 1)
	ed.SetRange(0.8)

	_, err := ed.Commit()
	assert.True(t, errors.Is(err, tooFar), "got %v", err)
}

func TestEditor_SelectAndCycle(t *testing.T) {
	ed := New(baseEcosystem(), []string{"a", "b", "c"}, nil)

	ed.Select(5, -1)
	assert.Equal(t, 2, ed.From)
	assert.Equal(t, 0, ed.To)

	ed.Select(1, 2)
	ed.Cycle()
	assert.Equal(t, [2]int{2, 0}, [2]int{ed.From, ed.To})
	ed.Select(2, 2)
	ed.Cycle()
	assert.Equal(t, [2]int{0, 0}, [2]int{ed.From, ed.To})
}

func TestEditor_NoChangeNotDirty(t *testing.T) {
	ed := New(baseEcosystem(), []string{"a", "b"}, nil)
	ed.Select(0, 1)
	ed.SetForce(ed.Pair().Force)
	ed.SetRange(ed.Pair().Range)
	assert.False(t, ed.Dirty())
}
