package viewer

import (
	"context"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// handleInput processes keyboard and mouse input.
func (v *Viewer) handleInput(ctx context.Context) {
	v.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		v.game.TogglePause()
	}
	if rl.IsKeyPressed(rl.KeyN) && v.game.Paused() {
		v.game.Step(ctx)
	}

	// Steps-per-update control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) {
		v.game.SetStepsPerUpdate(v.game.StepsPerUpdate() - 1)
	}
	if rl.IsKeyPressed(rl.KeyPeriod) {
		v.game.SetStepsPerUpdate(v.game.StepsPerUpdate() + 1)
	}

	if rl.IsKeyPressed(rl.KeyH) {
		v.controls.Toggle()
	}

	if rl.IsKeyPressed(rl.KeyF5) {
		if path, err := v.game.SaveSnapshot(); err != nil {
			slog.Error("failed to save snapshot", "error", err)
		} else {
			slog.Info("snapshot saved", "path", path)
		}
	}

	v.overlays.HandleKeys()
	v.handleCameraInput()
}

// handleResize checks for window resize and propagates new dimensions.
func (v *Viewer) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == v.screenWidth && h == v.screenHeight {
		return
	}
	v.screenWidth = w
	v.screenHeight = h

	v.camera.Resize(w, h)
	v.perfPanel.SetPosition(int32(w)-300, 10)
	v.ecoPanel.SetPosition(int32(w)-270, 220)
}

// handleCameraInput processes orbit, pan and zoom controls.
func (v *Viewer) handleCameraInput() {
	const orbitSpeed = 0.005

	if rl.IsMouseButtonDown(rl.MouseButtonRight) {
		d := rl.GetMouseDelta()
		v.camera.Orbit(-d.X*orbitSpeed, d.Y*orbitSpeed)
	}
	if rl.IsMouseButtonDown(rl.MouseButtonMiddle) {
		d := rl.GetMouseDelta()
		v.camera.Pan(d.X, d.Y)
	}

	// Arrow keys orbit
	if rl.IsKeyDown(rl.KeyRight) {
		v.camera.Orbit(0.02, 0)
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		v.camera.Orbit(-0.02, 0)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		v.camera.Orbit(0, 0.02)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		v.camera.Orbit(0, -0.02)
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		v.camera.ZoomBy(1 + wheel*0.1)
	}

	// Keyboard zoom with +/- (= and - keys)
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		v.camera.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		v.camera.ZoomBy(0.8)
	}

	if rl.IsKeyPressed(rl.KeyHome) {
		v.camera.Reset()
	}
}
