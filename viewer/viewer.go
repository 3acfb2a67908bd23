// Package viewer is the raylib front end. It owns the window, camera and
// panels and drives a game.Game once per frame.
package viewer

import (
	"context"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/ecosim/camera"
	"github.com/pthm-cable/ecosim/components"
	"github.com/pthm-cable/ecosim/config"
	"github.com/pthm-cable/ecosim/game"
	"github.com/pthm-cable/ecosim/renderer"
	"github.com/pthm-cable/ecosim/ui"
	"github.com/pthm-cable/ecosim/ui/edit"
)

const controlsLegend = "Space: pause  ,/.: speed  N: step  RMB: orbit  MMB: pan  Wheel: zoom  Home: reset  H: toggles  F5: snapshot"

// Viewer renders one game in a raylib window.
type Viewer struct {
	game *game.Game
	cfg  *config.Config

	screenWidth, screenHeight float32

	camera    *camera.Camera
	particles *renderer.ParticleRenderer

	overlays  *ui.OverlayRegistry
	hud       *ui.HUD
	perfPanel *ui.PerfPanel
	controls  *ui.ControlsPanel
	ecoPanel  *ui.EcosystemPanel

	frame []components.Particle
}

// New builds a viewer for g. The raylib window must already be open.
func New(g *game.Game) *Viewer {
	cfg := g.Config()
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())

	colors := make([]rl.Color, len(cfg.Species))
	radii := make([]float32, len(cfg.Species))
	names := make([]string, len(cfg.Species))
	for i, s := range cfg.Species {
		colors[i] = rl.Color{R: s.Color[0], G: s.Color[1], B: s.Color[2], A: 255}
		radii[i] = float32(s.Radius)
		names[i] = s.Name
	}

	sched := g.Scheduler()
	editor := edit.New(sched.Ecosystem(), names, sched.CheckCoverage)

	v := &Viewer{
		game:         g,
		cfg:          cfg,
		screenWidth:  w,
		screenHeight: h,
		camera:       camera.New(w, h, vec3(cfg.Boundary.Home), viewDistance(cfg)),
		particles:    renderer.NewParticleRenderer(colors, radii),
		overlays:     ui.NewOverlayRegistry(),
		hud:          ui.NewHUD(),
		perfPanel:    ui.NewPerfPanel(int32(w)-300, 10),
		controls:     ui.NewControlsPanel(10, 260, 220),
	}
	v.ecoPanel = ui.NewEcosystemPanel(int32(w)-270, 220, 260, editor, colors)
	v.overlays.SetEnabled(ui.OverlayPerf, cfg.Screen.ShowPanel)
	return v
}

// viewDistance frames the boundary volume.
func viewDistance(cfg *config.Config) float32 {
	extent := cfg.Boundary.Radius
	if cfg.Boundary.Kind == "box" {
		extent = cfg.Boundary.HalfExtent * 1.5
	}
	if extent <= 0 {
		extent = cfg.Emitter.Radius
	}
	return float32(max(extent*3, 1))
}

func vec3(v [3]float64) components.Vec3 {
	return components.Vec3{X: float32(v[0]), Y: float32(v[1]), Z: float32(v[2])}
}

// Run loops until the window closes, ctx is cancelled, or maxTicks is
// reached (0 = unlimited).
func (v *Viewer) Run(ctx context.Context, maxTicks int64) {
	for !rl.WindowShouldClose() {
		if ctx.Err() != nil {
			return
		}
		v.handleInput(ctx)
		v.game.Update(ctx)
		v.Draw()

		if maxTicks > 0 && v.game.Tick() >= maxTicks {
			slog.Info("max ticks reached", "tick", v.game.Tick())
			return
		}
	}
}
