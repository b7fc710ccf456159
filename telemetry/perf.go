package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one engine tick.
const (
	PhaseResize     = "resize"
	PhaseInput      = "input"
	PhaseSplat      = "splat"
	PhaseCurl       = "curl"
	PhaseVorticity  = "vorticity"
	PhaseDivergence = "divergence"
	PhasePressure   = "pressure"
	PhaseProjection = "projection"
	PhaseAdvection  = "advection"
	PhaseRender     = "render"
	PhaseTelemetry  = "telemetry"
)

// Phases lists every tick phase in execution order.
var Phases = []string{
	PhaseResize, PhaseInput, PhaseSplat,
	PhaseCurl, PhaseVorticity, PhaseDivergence, PhasePressure, PhaseProjection, PhaseAdvection,
	PhaseRender, PhaseTelemetry,
}

// PerfCollector tracks tick and phase timings over a rolling window of
// ticks. Phases are indexed on first use; per-tick storage is reused so a
// tick allocates nothing once every phase has been seen.
type PerfCollector struct {
	window int
	index  map[string]int
	names  []string

	// ring[i][0] is the tick duration, ring[i][1+p] phase p.
	ring    [][]time.Duration
	next    int
	filled  int
	sums    []time.Duration
	minTick time.Duration
	maxTick time.Duration

	cur        []time.Duration
	tickStart  time.Time
	phaseStart time.Time
	phase      int // -1 outside a phase

	lastFrame time.Time
	frameDur  time.Duration
}

// NewPerfCollector creates a collector averaging over window ticks (60 when
// window < 1). The standard tick phases are registered up front.
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	p := &PerfCollector{
		window: window,
		index:  make(map[string]int, len(Phases)),
		ring:   make([][]time.Duration, window),
		phase:  -1,
	}
	for _, name := range Phases {
		p.register(name)
	}
	return p
}

func (p *PerfCollector) register(name string) int {
	if i, ok := p.index[name]; ok {
		return i
	}
	i := len(p.names)
	p.index[name] = i
	p.names = append(p.names, name)
	p.sums = append(p.sums, 0)
	p.cur = append(p.cur, 0)
	return i
}

// StartTick begins timing a tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	clear(p.cur)
	p.phase = -1
}

// StartPhase closes the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.closePhase(now)
	p.phase = p.register(phase)
	p.phaseStart = now
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase >= 0 {
		p.cur[p.phase] += now.Sub(p.phaseStart)
	}
}

// EndTick closes the running phase and pushes the tick into the window,
// evicting the oldest tick once the window is full.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.phase = -1

	slot := p.ring[p.next]
	if p.filled == p.window {
		for i, d := range slot[1:] {
			p.sums[i] -= d
		}
	} else {
		p.filled++
	}
	if len(slot) != len(p.cur)+1 {
		grown := make([]time.Duration, len(p.cur)+1)
		copy(grown, slot)
		slot = grown
		p.ring[p.next] = slot
	}

	slot[0] = now.Sub(p.tickStart)
	copy(slot[1:], p.cur)
	for i, d := range p.cur {
		p.sums[i] += d
	}
	p.next = (p.next + 1) % p.window
	p.scanExtremes()
}

// scanExtremes recomputes min and max tick durations over the window.
func (p *PerfCollector) scanExtremes() {
	p.minTick, p.maxTick = 0, 0
	for i := 0; i < p.filled; i++ {
		d := p.ring[i][0]
		if i == 0 || d < p.minTick {
			p.minTick = d
		}
		if d > p.maxTick {
			p.maxTick = d
		}
	}
}

// RecordFrame records the host frame interval ending at now.
func (p *PerfCollector) RecordFrame(now time.Time) {
	if !p.lastFrame.IsZero() && now.After(p.lastFrame) {
		p.frameDur = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Per-phase average duration and share of the average tick.
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	TicksPerSecond float64

	// Host frame timing
	FrameDuration time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		PhaseAvg:      make(map[string]time.Duration),
		PhasePct:      make(map[string]float64),
		FrameDuration: p.frameDur,
	}
	if p.frameDur > 0 {
		stats.FPS = float64(time.Second) / float64(p.frameDur)
	}
	if p.filled == 0 {
		return stats
	}

	var total time.Duration
	for i := 0; i < p.filled; i++ {
		total += p.ring[i][0]
	}
	n := time.Duration(p.filled)
	stats.AvgTickDuration = total / n
	stats.MinTickDuration = p.minTick
	stats.MaxTickDuration = p.maxTick
	if stats.AvgTickDuration > 0 {
		stats.TicksPerSecond = float64(time.Second) / float64(stats.AvgTickDuration)
	}

	for i, name := range p.names {
		if p.sums[i] == 0 {
			continue
		}
		avg := p.sums[i] / n
		stats.PhaseAvg[name] = avg
		if stats.AvgTickDuration > 0 {
			stats.PhasePct[name] = float64(avg) / float64(stats.AvgTickDuration) * 100
		}
	}
	return stats
}

// LogStats logs performance statistics to logger.
func (s PerfStats) LogStats(logger *slog.Logger) {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}

	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}

	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}

	logger.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}

	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}

	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Tick          int64   `csv:"tick"`
	AvgTickUS     int64   `csv:"avg_tick_us"`
	MinTickUS     int64   `csv:"min_tick_us"`
	MaxTickUS     int64   `csv:"max_tick_us"`
	TicksPerSec   float64 `csv:"ticks_per_sec"`
	FPS           float64 `csv:"fps"`
	ResizePct     float64 `csv:"resize_pct"`
	InputPct      float64 `csv:"input_pct"`
	SplatPct      float64 `csv:"splat_pct"`
	CurlPct       float64 `csv:"curl_pct"`
	VorticityPct  float64 `csv:"vorticity_pct"`
	DivergencePct float64 `csv:"divergence_pct"`
	PressurePct   float64 `csv:"pressure_pct"`
	ProjectionPct float64 `csv:"projection_pct"`
	AdvectionPct  float64 `csv:"advection_pct"`
	RenderPct     float64 `csv:"render_pct"`
	TelemetryPct  float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(tick int64) PerfStatsCSV {
	return PerfStatsCSV{
		Tick:          tick,
		AvgTickUS:     s.AvgTickDuration.Microseconds(),
		MinTickUS:     s.MinTickDuration.Microseconds(),
		MaxTickUS:     s.MaxTickDuration.Microseconds(),
		TicksPerSec:   s.TicksPerSecond,
		FPS:           s.FPS,
		ResizePct:     s.PhasePct[PhaseResize],
		InputPct:      s.PhasePct[PhaseInput],
		SplatPct:      s.PhasePct[PhaseSplat],
		CurlPct:       s.PhasePct[PhaseCurl],
		VorticityPct:  s.PhasePct[PhaseVorticity],
		DivergencePct: s.PhasePct[PhaseDivergence],
		PressurePct:   s.PhasePct[PhasePressure],
		ProjectionPct: s.PhasePct[PhaseProjection],
		AdvectionPct:  s.PhasePct[PhaseAdvection],
		RenderPct:     s.PhasePct[PhaseRender],
		TelemetryPct:  s.PhasePct[PhaseTelemetry],
	}
}
