package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/ecosim/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title    string
	Preset   string
	Tick     int64
	Alive    int
	Pending  int
	Capacity int
	Emitted  int64
	Rejected int64
	Killed   int64
	Speed    int
	FPS      int32
	Workers  int
	Strategy string
	Paused   bool
	Clients  int
}

var hudSections = []SectionDescriptor{
	{
		ID:    "population",
		Title: "Population",
		Fields: []FieldDescriptor{
			{ID: "alive", Label: "Alive", Widget: WidgetText, TextGetter: func(d any) string {
				h := d.(*HUDData)
				return fmt.Sprintf("%d / %d", h.Alive, h.Capacity)
			}},
			{ID: "fill", Label: "Fill", Widget: WidgetBar, Range: DefaultRange(), Getter: func(d any) float32 {
				h := d.(*HUDData)
				if h.Capacity == 0 {
					return 0
				}
				return float32(h.Alive) / float32(h.Capacity)
			}},
			{ID: "pending", Label: "Pending", Widget: WidgetText, Format: "%.0f", Getter: func(d any) float32 {
				return float32(d.(*HUDData).Pending)
			}},
			{ID: "events", Label: "+/-/x", Widget: WidgetText, TextGetter: func(d any) string {
				h := d.(*HUDData)
				return fmt.Sprintf("%d / %d / %d", h.Emitted, h.Killed, h.Rejected)
			}},
			{ID: "balance", Label: "Balance", Widget: WidgetCenteredBar, Range: CenteredRange(), Getter: func(d any) float32 {
				h := d.(*HUDData)
				total := h.Emitted + h.Killed
				if total == 0 {
					return 0
				}
				return float32(h.Emitted-h.Killed) / float32(total)
			}},
		},
	},
	{
		ID:    "run",
		Title: "Run",
		Fields: []FieldDescriptor{
			{ID: "tick", Label: "Tick", Widget: WidgetText, TextGetter: func(d any) string {
				h := d.(*HUDData)
				return fmt.Sprintf("%d (%dx)", h.Tick, h.Speed)
			}},
			{ID: "fps", Label: "FPS", Widget: WidgetText, Format: "%.0f", Getter: func(d any) float32 {
				return float32(d.(*HUDData).FPS)
			}},
			{ID: "index", Label: "Index", Widget: WidgetText, TextGetter: func(d any) string {
				h := d.(*HUDData)
				return fmt.Sprintf("%s, %d workers", h.Strategy, h.Workers)
			}},
			{ID: "viewers", Label: "Viewers", Widget: WidgetText, Format: "%.0f", Getter: func(d any) float32 {
				return float32(d.(*HUDData).Clients)
			}, Visible: func(d any) bool { return d.(*HUDData).Clients > 0 }},
		},
	},
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
	width    int32
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
		width:    220,
	}
}

// Draw renders the HUD in the top-left corner.
func (h *HUD) Draw(data HUDData) {
	r := h.renderer
	x, y := int32(10), int32(10)

	title := data.Title
	if data.Preset != "" {
		title += " / " + data.Preset
	}
	rl.DrawText(title, x, y, 20, rl.White)
	y += 26

	r.DrawPanel(x, y, h.width, 8*r.Theme.LineHeight+r.Theme.Padding*3+30)
	y += r.Theme.Padding
	for _, sd := range hudSections {
		y = r.DrawSection(x+r.Theme.Padding, y, sd, &data, h.width-r.Theme.Padding*2)
	}

	if data.Paused {
		rl.DrawText("PAUSED", x, y+r.Theme.Padding, 16, rl.Yellow)
	}
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenWidth, screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanel renders the per-stage timing breakdown.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
	}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	th := p.renderer.Theme
	x := p.x
	y := p.y

	rl.DrawText("Stage Timings", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Tick: %s  (%.0f/s)", stats.AvgTickDuration.Round(time.Microsecond), stats.TicksPerSecond), x, y, 14, rl.Yellow)
	y += 16

	for _, name := range telemetry.Phases {
		avg, ok := stats.PhaseAvg[name]
		if !ok {
			continue
		}
		pct := stats.PhasePct[name]

		color := th.LabelColor
		if pct > 40 {
			color = th.Hot
		} else if pct > 20 {
			color = th.Warn
		}

		rl.DrawText(
			fmt.Sprintf("%-14s %8s %5.1f%%", name, avg.Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
