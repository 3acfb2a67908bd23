package viewer

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/ecosim/renderer"
	"github.com/pthm-cable/ecosim/ui"
)

// Draw renders one frame from the last published tick.
func (v *Viewer) Draw() {
	v.game.RecordFrame()

	frame, _ := v.game.Frame()
	v.frame = frame

	rl.BeginDrawing()
	rl.ClearBackground(rl.Color{R: 12, G: 14, B: 20, A: 255})

	rl.BeginMode3D(renderer.Camera3D(v.camera))
	v.drawScene()
	rl.EndMode3D()

	v.drawPanels()

	rl.EndDrawing()
}

func (v *Viewer) drawScene() {
	cfg := v.cfg
	if v.overlays.IsEnabled(ui.OverlayBounds) {
		switch cfg.Boundary.Kind {
		case "home":
			renderer.DrawHome(vec3(cfg.Boundary.Home), float32(cfg.Boundary.Radius))
		case "box":
			renderer.DrawBox(float32(cfg.Boundary.HalfExtent))
		}
	}
	if v.overlays.IsEnabled(ui.OverlayCellGrid) {
		renderer.DrawCellGrid(float32(cfg.Index.CellSize), cfg.Index.GridSide)
	}
	if v.overlays.IsEnabled(ui.OverlayAxes) {
		renderer.DrawAxes(0.5)
	}

	v.particles.Draw(v.camera, v.frame)

	if v.overlays.IsEnabled(ui.OverlayVelocities) {
		v.particles.DrawVelocities(v.frame, 20)
	}
}

func (v *Viewer) drawPanels() {
	g := v.game
	sched := g.Scheduler()
	st := sched.Stats()
	opts := sched.Options()

	v.hud.Draw(ui.HUDData{
		Title:    "ecosim",
		Preset:   g.Preset(),
		Tick:     st.Tick,
		Alive:    st.Alive,
		Pending:  st.Pending,
		Capacity: opts.Capacity,
		Emitted:  st.Emitted,
		Rejected: st.Rejected,
		Killed:   st.Killed,
		Speed:    g.StepsPerUpdate(),
		FPS:      rl.GetFPS(),
		Workers:  sched.Workers(),
		Strategy: string(opts.Strategy),
		Paused:   g.Paused(),
		Clients:  g.StreamClients(),
	})

	v.controls.Draw(v.overlays)

	if v.overlays.IsEnabled(ui.OverlayPerf) {
		v.perfPanel.Draw(g.Perf())
	}

	if v.overlays.IsEnabled(ui.OverlayEditor) {
		if eco := v.ecoPanel.Draw(); eco != nil {
			// Draw runs between ticks, so the swap cannot land mid-stage.
			if err := sched.SetEcosystem(eco); err != nil {
				slog.Error("ecosystem rejected", "error", err)
			} else {
				slog.Info("ecosystem applied", "tick", st.Tick)
			}
		}
	}

	v.hud.DrawControls(int32(v.screenWidth), int32(v.screenHeight), controlsLegend)
}
