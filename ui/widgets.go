package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/splash/config"
)

// Renderer handles all UI drawing with consistent styling.
type Renderer struct {
	Theme Theme
}

// NewRenderer creates a renderer with the default theme.
func NewRenderer() *Renderer {
	return &Renderer{Theme: DefaultTheme()}
}

// DrawPanel draws a panel background with border.
func (r *Renderer) DrawPanel(x, y, width, height int32) {
	rl.DrawRectangle(x, y, width, height, r.Theme.PanelBg)
	rl.DrawRectangleLines(x, y, width, height, r.Theme.PanelBorder)
}

// DrawSectionHeader draws a section header and returns the new Y position.
func (r *Renderer) DrawSectionHeader(x, y int32, title string) int32 {
	rl.DrawText(title, x, y, r.Theme.HeaderFontSize, r.Theme.SectionHeader)
	return y + r.Theme.LineHeight
}

// DrawLabelValue draws a label and value on the same line.
func (r *Renderer) DrawLabelValue(x, y int32, label, value string) int32 {
	rl.DrawText(label+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawText(value, x+r.Theme.LabelWidth, y, r.Theme.FontSize, r.Theme.ValueColor)
	return y + r.Theme.LineHeight
}

// DrawSwatch draws a labelled color chip for a linear config color.
func (r *Renderer) DrawSwatch(x, y int32, label string, c config.Color) int32 {
	th := r.Theme
	rl.DrawText(label+":", x, y, th.FontSize, th.LabelColor)
	chip := rl.Color{R: unit8(c.R), G: unit8(c.G), B: unit8(c.B), A: 255}
	rl.DrawRectangle(x+th.LabelWidth, y+1, th.BarHeight*2, th.BarHeight, chip)
	rl.DrawRectangleLines(x+th.LabelWidth, y+1, th.BarHeight*2, th.BarHeight, th.PanelBorder)
	return y + th.LineHeight
}

func unit8(v float32) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}

// DrawBar draws a share bar for pct in [0, 100]. The fill turns to the warn
// and high colors past the theme thresholds.
func (r *Renderer) DrawBar(x, y int32, label string, pct float64, width int32) int32 {
	th := r.Theme
	barX := x + th.LabelWidth
	barWidth := width - th.LabelWidth - 50

	rl.DrawText(label+":", x, y, th.FontSize, th.LabelColor)
	rl.DrawRectangle(barX, y+2, barWidth, th.BarHeight, th.BarBg)

	fill := th.BarFill
	switch {
	case pct > th.HighPct:
		fill = th.BarFillHigh
	case pct > th.WarnPct:
		fill = th.BarFillWarn
	}
	share := min(max(pct/100, 0), 1)
	rl.DrawRectangle(barX, y+2, int32(float64(barWidth)*share), th.BarHeight, fill)
	rl.DrawText(fmt.Sprintf("%.1f%%", pct), barX+barWidth+5, y, th.FontSize, th.ValueColor)

	return y + th.LineHeight + 2
}
