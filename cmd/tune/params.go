package main

import (
	"github.com/pthm-cable/splash/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name string  // Config key, also the CSV column
	Min  float64 // Lower bound
	Max  float64 // Upper bound
	Get  func(*config.FluidConfig) float64
	Set  func(*config.FluidConfig, float64)
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable fluid parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{
				Name: "curl_strength", Min: 0, Max: 50,
				Get: func(c *config.FluidConfig) float64 { return float64(c.CurlStrength) },
				Set: func(c *config.FluidConfig, v float64) { c.CurlStrength = float32(v) },
			},
			{
				Name: "density_dissipation", Min: 0.1, Max: 5,
				Get: func(c *config.FluidConfig) float64 { return float64(c.DensityDissipation) },
				Set: func(c *config.FluidConfig, v float64) { c.DensityDissipation = float32(v) },
			},
			{
				Name: "velocity_dissipation", Min: 0, Max: 5,
				Get: func(c *config.FluidConfig) float64 { return float64(c.VelocityDissipation) },
				Set: func(c *config.FluidConfig, v float64) { c.VelocityDissipation = float32(v) },
			},
			{
				Name: "pressure_decay", Min: 0, Max: 1,
				Get: func(c *config.FluidConfig) float64 { return float64(c.PressureDecay) },
				Set: func(c *config.FluidConfig, v float64) { c.PressureDecay = float32(v) },
			},
			{
				Name: "pressure_iterations", Min: 1, Max: 60,
				Get: func(c *config.FluidConfig) float64 { return float64(c.PressureIterations) },
				Set: func(c *config.FluidConfig, v float64) { c.PressureIterations = int(v + 0.5) },
			},
			{
				Name: "splat_radius", Min: 0.05, Max: 1,
				Get: func(c *config.FluidConfig) float64 { return float64(c.SplatRadius) },
				Set: func(c *config.FluidConfig, v float64) { c.SplatRadius = float32(v) },
			},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.FluidConfig, values []float64) {
	for i, v := range pv.Clamp(values) {
		pv.Specs[i].Set(cfg, v)
	}
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.FluidConfig) []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Get(cfg)
	}
	return v
}
