package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports window stats as Prometheus gauges and counters. Each
// flushed window overwrites the gauges and adds to the counters.
type Metrics struct {
	reg *prometheus.Registry

	Ticks          prometheus.Counter
	Splats         prometheus.Counter
	ClickSplats    prometheus.Counter
	Resizes        prometheus.Counter
	DroppedEvents  prometheus.Gauge
	Pointers       prometheus.Gauge
	VelocityEnergy prometheus.Gauge
	VelocityPeak   prometheus.Gauge
	DyeEnergy      prometheus.Gauge
	TickSeconds    prometheus.Gauge
	FPS            prometheus.Gauge
	PhaseSeconds   *prometheus.GaugeVec
}

// NewMetrics registers the engine metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "splash_ticks_total",
			Help: "Ticks run since start",
		}),
		Splats: f.NewCounter(prometheus.CounterOpts{
			Name: "splash_splats_total",
			Help: "Splats applied since start",
		}),
		ClickSplats: f.NewCounter(prometheus.CounterOpts{
			Name: "splash_click_splats_total",
			Help: "Burst splats from clicks since start",
		}),
		Resizes: f.NewCounter(prometheus.CounterOpts{
			Name: "splash_resizes_total",
			Help: "Grid reallocations since start",
		}),
		DroppedEvents: f.NewGauge(prometheus.GaugeOpts{
			Name: "splash_dropped_events",
			Help: "Pointer events dropped by the full input queue",
		}),
		Pointers: f.NewGauge(prometheus.GaugeOpts{
			Name: "splash_pointers",
			Help: "Tracked pointers at the end of the last window",
		}),
		VelocityEnergy: f.NewGauge(prometheus.GaugeOpts{
			Name: "splash_velocity_energy",
			Help: "Mean velocity energy over the last window",
		}),
		VelocityPeak: f.NewGauge(prometheus.GaugeOpts{
			Name: "splash_velocity_peak",
			Help: "Largest velocity component seen in the last window",
		}),
		DyeEnergy: f.NewGauge(prometheus.GaugeOpts{
			Name: "splash_dye_energy",
			Help: "Dye energy at the end of the last window",
		}),
		TickSeconds: f.NewGauge(prometheus.GaugeOpts{
			Name: "splash_tick_seconds",
			Help: "Average tick duration over the perf window",
		}),
		FPS: f.NewGauge(prometheus.GaugeOpts{
			Name: "splash_fps",
			Help: "Frames per second from the last frame interval",
		}),
		PhaseSeconds: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "splash_phase_seconds",
			Help: "Average duration of each tick phase",
		}, []string{"phase"}),
	}
}

// Observe records a flushed stats window and the perf stats taken with it.
func (m *Metrics) Observe(stats WindowStats, perf PerfStats) {
	m.Ticks.Add(float64(stats.Ticks))
	m.Splats.Add(float64(stats.Splats))
	m.ClickSplats.Add(float64(stats.ClickSplats))
	m.Resizes.Add(float64(stats.Resizes))
	m.DroppedEvents.Set(float64(stats.DroppedEvents))
	m.Pointers.Set(float64(stats.Pointers))
	m.VelocityEnergy.Set(stats.VelocityEnergyMean)
	m.VelocityPeak.Set(stats.VelocityPeak)
	m.DyeEnergy.Set(stats.DyeEnergyEnd)
	m.TickSeconds.Set(perf.AvgTickDuration.Seconds())
	m.FPS.Set(perf.FPS)
	for phase, d := range perf.PhaseAvg {
		m.PhaseSeconds.WithLabelValues(phase).Set(d.Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
