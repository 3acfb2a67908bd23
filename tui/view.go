// Package tui draws a top-down density view of the published frame in a
// terminal.
package tui

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/ecosim/components"
)

// Canvas is the part of tcell.Screen the view draws into.
type Canvas interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Size() (int, int)
}

// Action is a user command decoded from a key press.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionPause
	ActionStep
	ActionZoomIn
	ActionZoomOut
	ActionRotate
)

// KeyAction maps a key press to an action.
func KeyAction(key tcell.Key, r rune) Action {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActionQuit
	case tcell.KeyRune:
		switch r {
		case 'q':
			return ActionQuit
		case ' ':
			return ActionPause
		case '.':
			return ActionStep
		case '+', '=':
			return ActionZoomIn
		case '-':
			return ActionZoomOut
		case 'r':
			return ActionRotate
		}
	}
	return ActionNone
}

// density glyphs from sparse to packed
var shades = []rune{'·', '∘', 'o', 'O', '@'}

// Plane selects which two axes are projected onto the terminal.
type Plane int

const (
	PlaneXY Plane = iota
	PlaneXZ
	PlaneZY
)

func (p Plane) String() string {
	switch p {
	case PlaneXZ:
		return "xz"
	case PlaneZY:
		return "zy"
	default:
		return "xy"
	}
}

func (p Plane) project(v components.Vec3) (float32, float32) {
	switch p {
	case PlaneXZ:
		return v.X, v.Z
	case PlaneZY:
		return v.Z, v.Y
	default:
		return v.X, v.Y
	}
}

// View renders particles as per-cell counts colored by the dominant
// species.
type View struct {
	Colors []tcell.Color
	Scale  float32 // world units across half the shorter screen side
	Plane  Plane

	counts []uint16
	owner  [][components.MaxSpecies]uint16
}

// NewView builds a view with one color per species.
func NewView(colors []tcell.Color) *View {
	return &View{Colors: colors, Scale: 3}
}

// Apply performs a view action. It returns false for actions the view
// does not own.
func (v *View) Apply(a Action) bool {
	switch a {
	case ActionZoomIn:
		v.Scale = max(v.Scale*0.8, 0.1)
	case ActionZoomOut:
		v.Scale *= 1.25
	case ActionRotate:
		v.Plane = (v.Plane + 1) % 3
	default:
		return false
	}
	return true
}

// Draw fills the canvas with the density map and a one-line status bar.
func (v *View) Draw(c Canvas, ps []components.Particle, status string) {
	w, h := c.Size()
	if w <= 0 || h <= 1 {
		return
	}
	rows := h - 1
	n := w * rows
	if cap(v.counts) < n {
		v.counts = make([]uint16, n)
		v.owner = make([][components.MaxSpecies]uint16, n)
	}
	v.counts = v.counts[:n]
	v.owner = v.owner[:n]
	clear(v.counts)
	clear(v.owner)

	// terminal cells are about twice as tall as wide
	half := float32(min(w/2, rows))
	unit := half / v.Scale
	cx, cy := float32(w)/2, float32(rows)/2

	for i := range ps {
		a, b := v.Plane.project(ps[i].Position)
		x := int(math.Floor(float64(cx + a*unit*2)))
		y := int(math.Floor(float64(cy - b*unit)))
		if x < 0 || x >= w || y < 0 || y >= rows {
			continue
		}
		k := y*w + x
		if v.counts[k] < math.MaxUint16 {
			v.counts[k]++
		}
		if s := ps[i].Species; int(s) < components.MaxSpecies && v.owner[k][s] < math.MaxUint16 {
			v.owner[k][s]++
		}
	}

	for y := 0; y < rows; y++ {
		for x := 0; x < w; x++ {
			k := y*w + x
			cnt := v.counts[k]
			if cnt == 0 {
				c.SetContent(x, y, ' ', nil, tcell.StyleDefault)
				continue
			}
			c.SetContent(x, y, shade(cnt), nil, tcell.StyleDefault.Foreground(v.color(dominant(&v.owner[k]))))
		}
	}

	line := fmt.Sprintf(" %s  plane=%s scale=%.2f", status, v.Plane, v.Scale)
	bar := tcell.StyleDefault.Reverse(true)
	x := 0
	for _, r := range line {
		if x >= w {
			break
		}
		c.SetContent(x, rows, r, nil, bar)
		x++
	}
	for ; x < w; x++ {
		c.SetContent(x, rows, ' ', nil, bar)
	}
}

func (v *View) color(s int) tcell.Color {
	if s < len(v.Colors) {
		return v.Colors[s]
	}
	return tcell.ColorWhite
}

func shade(n uint16) rune {
	switch {
	case n >= 16:
		return shades[4]
	case n >= 8:
		return shades[3]
	case n >= 4:
		return shades[2]
	case n >= 2:
		return shades[1]
	default:
		return shades[0]
	}
}

func dominant(counts *[components.MaxSpecies]uint16) int {
	best := 0
	for s := 1; s < len(counts); s++ {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best
}
