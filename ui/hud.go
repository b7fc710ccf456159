package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/splash/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title    string
	Tick     int64
	FPS      int32
	Pointers int
	Dropped  int64
	GridW    int // Velocity grid size
	GridH    int
	Manual   bool // Manual bilinear filtering in use
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
	}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	rl.DrawText(
		fmt.Sprintf("Tick: %d | FPS: %d | Grid: %dx%d", data.Tick, data.FPS, data.GridW, data.GridH),
		10, 35, 16, rl.LightGray,
	)

	status := fmt.Sprintf("Pointers: %d | Dropped events: %d", data.Pointers, data.Dropped)
	if data.Manual {
		status += " | manual filtering"
	}
	rl.DrawText(status, 10, 55, 16, rl.LightGray)
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPhases is the display order of the perf panel.
var PerfPhases = []string{
	telemetry.PhaseResize,
	telemetry.PhaseInput,
	telemetry.PhaseSplat,
	telemetry.PhaseCurl,
	telemetry.PhaseVorticity,
	telemetry.PhaseDivergence,
	telemetry.PhasePressure,
	telemetry.PhaseProjection,
	telemetry.PhaseAdvection,
	telemetry.PhaseRender,
	telemetry.PhaseTelemetry,
}

// PerfPanel renders per-phase tick timings.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y, width int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	r := p.renderer
	th := r.Theme
	height := th.Padding*2 + th.LineHeight*2 + int32(len(PerfPhases))*(th.LineHeight+2)
	r.DrawPanel(p.x, p.y, p.width, height)

	x := p.x + th.Padding
	y := p.y + th.Padding
	inner := p.width - th.Padding*2

	y = r.DrawSectionHeader(x, y, "Tick Performance")
	y = r.DrawLabelValue(x, y, "Avg tick", fmt.Sprintf("%s (%.0f/s)",
		stats.AvgTickDuration.Round(time.Microsecond), stats.TicksPerSecond))

	for _, phase := range PerfPhases {
		y = r.DrawBar(x, y, phase, stats.PhasePct[phase], inner)
	}
}
