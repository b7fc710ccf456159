// Package config provides configuration loading and access for the fluid engine.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Fluid     FluidConfig     `yaml:"fluid"`
	Pointer   PointerConfig   `yaml:"pointer"`
	Device    DeviceConfig    `yaml:"device"`
	Render    RenderConfig    `yaml:"render"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds window settings.
type ScreenConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	TargetFPS int    `yaml:"target_fps"`
	Title     string `yaml:"title"`
}

// Color is a linear RGB triple in [0, 1].
type Color struct {
	R float32 `yaml:"r"`
	G float32 `yaml:"g"`
	B float32 `yaml:"b"`
}

// FluidConfig is the per-run simulation configuration.
// Resolution fields are applied when the surface size changes; everything
// else is read every frame.
type FluidConfig struct {
	SimResolution       int     `yaml:"sim_resolution"`
	DyeResolution       int     `yaml:"dye_resolution"`
	DensityDissipation  float32 `yaml:"density_dissipation"`
	VelocityDissipation float32 `yaml:"velocity_dissipation"`
	PressureDecay       float32 `yaml:"pressure_decay"`      // Multiplier applied to last tick's pressure
	PressureIterations  int     `yaml:"pressure_iterations"` // Jacobi iterations per tick
	CurlStrength        float32 `yaml:"curl_strength"`
	SplatRadius         float32 `yaml:"splat_radius"` // Percent of the short axis, squared falloff
	SplatForce          float32 `yaml:"splat_force"`
	ShadingEnabled      bool    `yaml:"shading_enabled"`
	ColorUpdateSpeed    float32 `yaml:"color_update_speed"` // Recolors per second (0 = never)
	BackgroundColor     Color   `yaml:"background_color"`
	Transparent         bool    `yaml:"transparent"`

	// Resample the back buffer too when a double buffer is resized.
	// Off keeps the historical behavior of a blank back buffer.
	ResampleBackOnResize bool `yaml:"resample_back_on_resize"`
}

// PointerConfig holds pointer and splat coloring parameters.
type PointerConfig struct {
	QueueSize       int     `yaml:"queue_size"`        // Buffered input events between ticks
	Palette         string  `yaml:"palette"`           // "theme" or "rainbow"
	ThemeColor      Color   `yaml:"theme_color"`       // Base color for the theme palette
	ColorIntensity  float32 `yaml:"color_intensity"`   // Multiplier applied to every generated color
	ClickColorBoost float32 `yaml:"click_color_boost"` // Color multiplier for click splats
	ClickVelocityX  float32 `yaml:"click_velocity_x"`  // Peak-to-peak random X velocity of a click splat
	ClickVelocityY  float32 `yaml:"click_velocity_y"`  // Peak-to-peak random Y velocity of a click splat
	HoverSplats     bool    `yaml:"hover_splats"`      // Moves without a press also push the fluid
}

// DeviceConfig describes the capabilities of the grid backend.
// Turning features off exercises the degraded init paths.
type DeviceConfig struct {
	LinearFiltering bool     `yaml:"linear_filtering"`
	Formats         []string `yaml:"formats"` // Renderable formats: r, rg, rgba
	MaxTextureSize  int      `yaml:"max_texture_size"`
	Workers         int      `yaml:"workers"` // Row workers per blit (0 = GOMAXPROCS)
}

// RenderConfig holds presentation parameters.
type RenderConfig struct {
	Scale float32 `yaml:"scale"` // Frame resolution relative to the surface
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow  int     `yaml:"perf_window"`  // Ticks averaged by the perf collector
	StatsWindow float64 `yaml:"stats_window"` // Seconds between stats records
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	FrameDelay float64 // Seconds between scheduled ticks
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.computeDerived()

	return cfg, nil
}

// Validate checks value ranges the engine cannot recover from.
func (c *Config) Validate() error {
	f := c.Fluid
	switch {
	case f.SimResolution < 1:
		return fmt.Errorf("fluid.sim_resolution must be positive, got %d", f.SimResolution)
	case f.DyeResolution < 1:
		return fmt.Errorf("fluid.dye_resolution must be positive, got %d", f.DyeResolution)
	case f.PressureIterations < 0:
		return fmt.Errorf("fluid.pressure_iterations must not be negative, got %d", f.PressureIterations)
	case f.DensityDissipation < 0 || f.VelocityDissipation < 0:
		return fmt.Errorf("fluid dissipation rates must not be negative")
	case f.SplatRadius <= 0:
		return fmt.Errorf("fluid.splat_radius must be positive, got %v", f.SplatRadius)
	case f.ColorUpdateSpeed < 0:
		return fmt.Errorf("fluid.color_update_speed must not be negative, got %v", f.ColorUpdateSpeed)
	}
	if c.Pointer.QueueSize < 1 {
		return fmt.Errorf("pointer.queue_size must be positive, got %d", c.Pointer.QueueSize)
	}
	switch c.Pointer.Palette {
	case "theme", "rainbow":
	default:
		return fmt.Errorf("pointer.palette: unknown palette %q", c.Pointer.Palette)
	}
	if m := c.Device.MaxTextureSize; m > 0 && max(f.SimResolution, f.DyeResolution) > m {
		return fmt.Errorf("fluid resolutions (%d, %d) exceed device.max_texture_size %d",
			f.SimResolution, f.DyeResolution, m)
	}
	if c.Render.Scale <= 0 || c.Render.Scale > 1 {
		return fmt.Errorf("render.scale must be in (0, 1], got %v", c.Render.Scale)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	fps := c.Screen.TargetFPS
	if fps <= 0 {
		fps = 60
	}
	c.Derived.FrameDelay = 1.0 / float64(fps)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
