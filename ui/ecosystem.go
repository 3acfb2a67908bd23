package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/ecosim/systems"
	"github.com/pthm-cable/ecosim/ui/edit"
)

// Slider limits for the editor.
const (
	maxEditForce = 0.005
	maxEditRange = 1.0
	maxEditDrag  = 0.99
)

// EcosystemPanel edits a draft ecosystem with raygui controls. Apply hands
// the validated draft to the caller between ticks.
type EcosystemPanel struct {
	renderer *Renderer
	editor   *edit.Editor
	colors   []rl.Color
	x, y     int32
	width    int32
}

// NewEcosystemPanel creates an editor panel for eco.
func NewEcosystemPanel(x, y, width int32, editor *edit.Editor, colors []rl.Color) *EcosystemPanel {
	return &EcosystemPanel{
		renderer: NewRenderer(),
		editor:   editor,
		colors:   colors,
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetPosition updates the panel position.
func (p *EcosystemPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the panel and returns a new ecosystem when Apply succeeds.
func (p *EcosystemPanel) Draw() *systems.Ecosystem {
	r := p.renderer
	ed := p.editor
	pad := r.Theme.Padding
	names := ed.Names()
	if len(names) == 0 {
		return nil
	}

	height := int32(250 + 22*len(names))
	r.DrawPanel(p.x, p.y, p.width, height)

	x := float32(p.x + pad)
	y := float32(p.y + pad)
	w := float32(p.width - pad*2)

	rl.DrawText("Ecosystem", int32(x), int32(y), 16, rl.White)
	y += 24

	// pair selection
	rl.DrawRectangle(int32(x), int32(y)+2, 10, 10, p.color(ed.From))
	rl.DrawText(names[ed.From], int32(x)+14, int32(y), r.Theme.FontSize, r.Theme.ValueColor)
	rl.DrawText("->", int32(x+w/2)-20, int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawRectangle(int32(x+w/2), int32(y)+2, 10, 10, p.color(ed.To))
	rl.DrawText(names[ed.To], int32(x+w/2)+14, int32(y), r.Theme.FontSize, r.Theme.ValueColor)
	y += 20
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 22}, "Next pair") {
		ed.Cycle()
	}
	y += 30

	pair := ed.Pair()
	rl.DrawText(fmt.Sprintf("Force %+.5f", pair.Force), int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	y += 16
	ed.SetForce(gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "", pair.Force, -maxEditForce, maxEditForce))
	y += 24

	rl.DrawText(fmt.Sprintf("Range %.3f", pair.Range), int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	y += 16
	ed.SetRange(gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "", pair.Range, 0, maxEditRange))
	y += 28

	rl.DrawText("Drag", int32(x), int32(y), r.Theme.HeaderFontSize, r.Theme.SectionHeader)
	y += 18
	for i, name := range names {
		rl.DrawRectangle(int32(x), int32(y)+3, 10, 10, p.color(i))
		rl.DrawText(name, int32(x)+14, int32(y)+1, r.Theme.FontSize, r.Theme.LabelColor)
		ed.SetDrag(i, gui.SliderBar(rl.Rectangle{X: x + 80, Y: y, Width: w - 80, Height: 16}, "", "", ed.Drag(i), 0, maxEditDrag))
		y += 22
	}
	y += 8

	var applied *systems.Ecosystem
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w/2 - 4, Height: 24}, "Apply") {
		if eco, err := ed.Commit(); err == nil {
			applied = eco
		}
	}
	if gui.Button(rl.Rectangle{X: x + w/2 + 4, Y: y, Width: w/2 - 4, Height: 24}, "Revert") {
		ed.Revert()
	}
	y += 30

	switch {
	case ed.Err() != nil:
		rl.DrawText(ed.Err().Error(), int32(x), int32(y), 10, r.Theme.Hot)
	case ed.Dirty():
		rl.DrawText("unapplied changes", int32(x), int32(y), 10, r.Theme.Warn)
	}

	return applied
}

func (p *EcosystemPanel) color(i int) rl.Color {
	if i < len(p.colors) {
		return p.colors[i]
	}
	return rl.White
}
