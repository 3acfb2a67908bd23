package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/ecosim/config"
	"github.com/pthm-cable/ecosim/game"
	"github.com/pthm-cable/ecosim/tui"
)

// runTerminal draws the published frame with tcell. Key events arrive on a
// separate goroutine; the simulation and drawing stay on this one.
func runTerminal(ctx context.Context, cfg *config.Config, opts game.Options, maxTicks int64) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	defer screen.Fini()

	g, err := game.NewGameWithOptions(cfg, opts)
	if err != nil {
		return err
	}
	defer g.Unload()

	colors := make([]tcell.Color, len(cfg.Species))
	for i, s := range cfg.Species {
		colors[i] = tcell.NewRGBColor(int32(s.Color[0]), int32(s.Color[1]), int32(s.Color[2]))
	}
	view := tui.NewView(colors)

	actions := make(chan tui.Action, 16)
	go func() {
		for {
			switch ev := screen.PollEvent().(type) {
			case nil:
				return
			case *tcell.EventKey:
				if a := tui.KeyAction(ev.Key(), ev.Rune()); a != tui.ActionNone {
					select {
					case actions <- a:
					default:
					}
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		}
	}()

	frames := time.NewTicker(time.Second / 30)
	defer frames.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case a := <-actions:
			switch a {
			case tui.ActionQuit:
				return nil
			case tui.ActionPause:
				g.TogglePause()
			case tui.ActionStep:
				g.Step(ctx)
			default:
				view.Apply(a)
			}
			continue
		case <-frames.C:
		}

		g.Update(ctx)
		frame, tick := g.Frame()

		st := g.Scheduler().Stats()
		status := fmt.Sprintf(" tick %d  alive %d  %s  x%d  scale %.2f", tick, st.Alive, view.Plane, g.StepsPerUpdate(), view.Scale)
		if g.Paused() {
			status += "  PAUSED"
		}

		screen.Clear()
		view.Draw(screen, frame, status)
		screen.Show()

		if maxTicks > 0 && g.Tick() >= maxTicks {
			return nil
		}
	}
}
