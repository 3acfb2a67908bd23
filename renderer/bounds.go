package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/ecosim/components"
)

var (
	boundsColor = rl.Color{R: 90, G: 110, B: 130, A: 120}
	gridColor   = rl.Color{R: 60, G: 60, B: 70, A: 90}
)

// DrawHome draws the home boundary as a wire sphere.
func DrawHome(center components.Vec3, radius float32) {
	if radius <= 0 {
		return
	}
	rl.DrawSphereWires(vec(center), radius, 12, 16, boundsColor)
}

// DrawBox draws an axis-aligned box boundary centered on the origin.
func DrawBox(halfExtent float32) {
	if halfExtent <= 0 {
		return
	}
	s := halfExtent * 2
	rl.DrawCubeWires(rl.Vector3{}, s, s, s, boundsColor)
}

// DrawCellGrid draws the spatial index cells on the XZ plane through the
// origin.
func DrawCellGrid(cellSize float32, side int) {
	if cellSize <= 0 || side <= 0 {
		return
	}
	half := cellSize * float32(side) / 2
	for i := 0; i <= side; i++ {
		o := -half + float32(i)*cellSize
		rl.DrawLine3D(rl.Vector3{X: o, Z: -half}, rl.Vector3{X: o, Z: half}, gridColor)
		rl.DrawLine3D(rl.Vector3{X: -half, Z: o}, rl.Vector3{X: half, Z: o}, gridColor)
	}
}

// DrawAxes draws unit X/Y/Z axes at the origin.
func DrawAxes(length float32) {
	rl.DrawLine3D(rl.Vector3{}, rl.Vector3{X: length}, rl.Red)
	rl.DrawLine3D(rl.Vector3{}, rl.Vector3{Y: length}, rl.Green)
	rl.DrawLine3D(rl.Vector3{}, rl.Vector3{Z: length}, rl.Blue)
}
