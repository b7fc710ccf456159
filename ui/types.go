// Package ui provides the on-screen controls for the fluid engine.
// Settings are declared as descriptors bound to config fields, so the
// panel layout follows the list rather than hard-coded widgets.
package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/splash/config"
)

// SliderDescriptor binds a raygui slider to a numeric config field.
type SliderDescriptor struct {
	ID     string
	Label  string
	Format string // Printf format for the value readout
	Min    float32
	Max    float32
	Get    func(*config.Config) float32
	Set    func(*config.Config, float32)
}

// ToggleDescriptor binds a button and a hotkey to a boolean setting.
type ToggleDescriptor struct {
	ID       string
	Label    string
	Key      int32  // Raylib key code (0 = none)
	KeyLabel string // Display label for the key
	Get      func(*config.Config) bool
	Set      func(*config.Config, bool)
}

// Theme holds UI styling constants.
type Theme struct {
	PanelBg        rl.Color
	PanelBorder    rl.Color
	SectionHeader  rl.Color
	LabelColor     rl.Color
	ValueColor     rl.Color
	BarBg          rl.Color
	BarFill        rl.Color
	BarFillHigh    rl.Color
	BarFillWarn    rl.Color
	WarnPct        float64 // Bar share above which BarFillWarn is used
	HighPct        float64
	Padding        int32
	LineHeight     int32
	LabelWidth     int32
	BarHeight      int32
	SliderHeight   int32
	FontSize       int32
	HeaderFontSize int32
}

// DefaultTheme returns the default UI theme.
func DefaultTheme() Theme {
	return Theme{
		PanelBg:        rl.Color{R: 12, G: 14, B: 22, A: 210},
		PanelBorder:    rl.Color{R: 70, G: 80, B: 110, A: 255},
		SectionHeader:  rl.SkyBlue,
		LabelColor:     rl.LightGray,
		ValueColor:     rl.LightGray,
		BarBg:          rl.Color{R: 40, G: 40, B: 40, A: 255},
		BarFill:        rl.Color{R: 100, G: 150, B: 200, A: 255},
		BarFillHigh:    rl.Color{R: 200, G: 100, B: 100, A: 255},
		BarFillWarn:    rl.Color{R: 200, G: 180, B: 100, A: 255},
		WarnPct:        20,
		HighPct:        40,
		Padding:        10,
		LineHeight:     16,
		LabelWidth:     90,
		BarHeight:      12,
		SliderHeight:   16,
		FontSize:       12,
		HeaderFontSize: 14,
	}
}
