package telemetry

import (
	"log/slog"
	"sort"
)

// WindowStats holds aggregated field statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`
	Ticks           int     `csv:"ticks"`

	// Input during window
	Splats        int   `csv:"splats"`
	ClickSplats   int   `csv:"click_splats"`
	DroppedEvents int64 `csv:"dropped_events"`
	Pointers      int   `csv:"pointers"`
	Resizes       int   `csv:"resizes"`

	// Velocity energy (sum of |v| over the grid), sampled every tick
	VelocityEnergyMean float64 `csv:"velocity_energy_mean"`
	VelocityEnergyP10  float64 `csv:"velocity_energy_p10"`
	VelocityEnergyP50  float64 `csv:"velocity_energy_p50"`
	VelocityEnergyP90  float64 `csv:"velocity_energy_p90"`
	VelocityPeak       float64 `csv:"velocity_peak"` // Largest single component seen

	// Dye energy
	DyeEnergyMean float64 `csv:"dye_energy_mean"`
	DyeEnergyP10  float64 `csv:"dye_energy_p10"`
	DyeEnergyP50  float64 `csv:"dye_energy_p50"`
	DyeEnergyP90  float64 `csv:"dye_energy_p90"`
	DyeEnergyEnd  float64 `csv:"dye_energy_end"`
	DyePeak       float64 `csv:"dye_peak"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeEnergyStats calculates mean and percentiles of per-tick energy samples.
func ComputeEnergyStats(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return mean, Percentile(sorted, 0.10), Percentile(sorted, 0.50), Percentile(sorted, 0.90)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("ticks", s.Ticks),
		slog.Int("splats", s.Splats),
		slog.Int("click_splats", s.ClickSplats),
		slog.Int64("dropped_events", s.DroppedEvents),
		slog.Int("pointers", s.Pointers),
		slog.Float64("velocity_energy_p50", s.VelocityEnergyP50),
		slog.Float64("velocity_peak", s.VelocityPeak),
		slog.Float64("dye_energy_p50", s.DyeEnergyP50),
		slog.Float64("dye_energy_end", s.DyeEnergyEnd),
	)
}

// LogStats logs the window to logger.
func (s WindowStats) LogStats(logger *slog.Logger) {
	logger.Info("fields", "stats", s)
}
