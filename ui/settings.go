package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/splash/config"
)

// DefaultSliders returns the tunable fluid parameters in display order.
func DefaultSliders() []SliderDescriptor {
	return []SliderDescriptor{
		{
			ID: "curl", Label: "Curl", Format: "%.1f", Min: 0, Max: 50,
			Get: func(c *config.Config) float32 { return c.Fluid.CurlStrength },
			Set: func(c *config.Config, v float32) { c.Fluid.CurlStrength = v },
		},
		{
			ID: "splat_force", Label: "Splat force", Format: "%.0f", Min: 500, Max: 12000,
			Get: func(c *config.Config) float32 { return c.Fluid.SplatForce },
			Set: func(c *config.Config, v float32) { c.Fluid.SplatForce = v },
		},
		{
			ID: "splat_radius", Label: "Splat radius", Format: "%.2f", Min: 0.01, Max: 1,
			Get: func(c *config.Config) float32 { return c.Fluid.SplatRadius },
			Set: func(c *config.Config, v float32) { c.Fluid.SplatRadius = v },
		},
		{
			ID: "density_dissipation", Label: "Dye decay", Format: "%.2f", Min: 0, Max: 4,
			Get: func(c *config.Config) float32 { return c.Fluid.DensityDissipation },
			Set: func(c *config.Config, v float32) { c.Fluid.DensityDissipation = v },
		},
		{
			ID: "velocity_dissipation", Label: "Velocity decay", Format: "%.2f", Min: 0, Max: 4,
			Get: func(c *config.Config) float32 { return c.Fluid.VelocityDissipation },
			Set: func(c *config.Config, v float32) { c.Fluid.VelocityDissipation = v },
		},
		{
			ID: "pressure_decay", Label: "Pressure", Format: "%.2f", Min: 0, Max: 1,
			Get: func(c *config.Config) float32 { return c.Fluid.PressureDecay },
			Set: func(c *config.Config, v float32) { c.Fluid.PressureDecay = v },
		},
		{
			ID: "pressure_iterations", Label: "Iterations", Format: "%.0f", Min: 1, Max: 60,
			Get: func(c *config.Config) float32 { return float32(c.Fluid.PressureIterations) },
			Set: func(c *config.Config, v float32) { c.Fluid.PressureIterations = int(v + 0.5) },
		},
	}
}

// DefaultToggles returns the boolean settings with their hotkeys.
func DefaultToggles() []ToggleDescriptor {
	return []ToggleDescriptor{
		{
			ID: "shading", Label: "Shading", Key: rl.KeyS, KeyLabel: "S",
			Get: func(c *config.Config) bool { return c.Fluid.ShadingEnabled },
			Set: func(c *config.Config, v bool) { c.Fluid.ShadingEnabled = v },
		},
		{
			ID: "transparent", Label: "Transparent", Key: rl.KeyT, KeyLabel: "T",
			Get: func(c *config.Config) bool { return c.Fluid.Transparent },
			Set: func(c *config.Config, v bool) { c.Fluid.Transparent = v },
		},
		{
			ID: "hover", Label: "Hover splats", Key: rl.KeyH, KeyLabel: "H",
			Get: func(c *config.Config) bool { return c.Pointer.HoverSplats },
			Set: func(c *config.Config, v bool) { c.Pointer.HoverSplats = v },
		},
		{
			ID: "rainbow", Label: "Rainbow", Key: rl.KeyR, KeyLabel: "R",
			Get: func(c *config.Config) bool { return c.Pointer.Palette == "rainbow" },
			Set: func(c *config.Config, v bool) {
				c.Pointer.Palette = "theme"
				if v {
					c.Pointer.Palette = "rainbow"
				}
			},
		},
	}
}
