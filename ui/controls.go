package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/splash/config"
)

// ControlsPanel renders the settings panel: a raygui slider per
// SliderDescriptor and a button per ToggleDescriptor. Edits write straight
// into the live config, which the engine reads every tick.
type ControlsPanel struct {
	renderer *Renderer
	cfg      *config.Config
	sliders  []SliderDescriptor
	toggles  []ToggleDescriptor
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a hidden controls panel bound to cfg.
func NewControlsPanel(cfg *config.Config, x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		cfg:      cfg,
		sliders:  DefaultSliders(),
		toggles:  DefaultToggles(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool {
	return c.visible
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Contains reports whether pos lies on the visible panel.
func (c *ControlsPanel) Contains(pos rl.Vector2) bool {
	if !c.visible {
		return false
	}
	bounds := rl.Rectangle{X: float32(c.x), Y: float32(c.y), Width: float32(c.width), Height: float32(c.Height())}
	return rl.CheckCollisionPointRec(pos, bounds)
}

// HandleKeys applies toggle hotkeys. It works while the panel is hidden and
// returns the IDs of the settings that changed.
func (c *ControlsPanel) HandleKeys() []string {
	var changed []string
	for _, t := range c.toggles {
		if t.Key != 0 && rl.IsKeyPressed(t.Key) {
			t.Set(c.cfg, !t.Get(c.cfg))
			changed = append(changed, t.ID)
		}
	}
	return changed
}

// Height returns the panel height for the current descriptor lists.
func (c *ControlsPanel) Height() int32 {
	th := c.renderer.Theme
	sliderRow := th.LineHeight + th.SliderHeight + 6
	buttonRows := int32(len(c.toggles)+1) / 2
	return th.Padding*2 + th.LineHeight + 4 +
		int32(len(c.sliders))*sliderRow +
		th.LineHeight*2 + 4 +
		buttonRows*(th.SliderHeight+14)
}

// Draw renders the panel and applies any edits. Returns the Y below the
// panel.
func (c *ControlsPanel) Draw() int32 {
	if !c.visible {
		return c.y
	}

	r := c.renderer
	th := r.Theme
	r.DrawPanel(c.x, c.y, c.width, c.Height())

	x := c.x + th.Padding
	y := c.y + th.Padding
	inner := c.width - th.Padding*2

	y = r.DrawSectionHeader(x, y, "Fluid") + 4

	for _, s := range c.sliders {
		value := s.Get(c.cfg)
		rl.DrawText(s.Label, x, y, th.FontSize, th.LabelColor)
		readout := fmt.Sprintf(s.Format, value)
		rw := rl.MeasureText(readout, th.FontSize)
		rl.DrawText(readout, x+inner-rw, y, th.FontSize, th.ValueColor)
		y += th.LineHeight

		next := gui.SliderBar(
			rl.Rectangle{X: float32(x), Y: float32(y), Width: float32(inner), Height: float32(th.SliderHeight)},
			"", "",
			value, s.Min, s.Max,
		)
		if next != value {
			s.Set(c.cfg, next)
		}
		y += th.SliderHeight + 6
	}

	y = r.DrawSwatch(x, y, "Pointer", c.cfg.Pointer.ThemeColor)
	y = r.DrawSwatch(x, y, "Background", c.cfg.Fluid.BackgroundColor) + 4

	bw := (inner - th.Padding) / 2
	for i, t := range c.toggles {
		bx := x + int32(i%2)*(bw+th.Padding)
		state := "off"
		if t.Get(c.cfg) {
			state = "on"
		}
		label := fmt.Sprintf("%s: %s [%s]", t.Label, state, t.KeyLabel)
		if gui.Button(rl.Rectangle{X: float32(bx), Y: float32(y), Width: float32(bw), Height: float32(th.SliderHeight + 6)}, label) {
			t.Set(c.cfg, !t.Get(c.cfg))
		}
		if i%2 == 1 || i == len(c.toggles)-1 {
			y += th.SliderHeight + 14
		}
	}

	return c.y + c.Height()
}
