package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	// Simulate a few ticks
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseCurl)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhasePressure)
		time.Sleep(200 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	// Verify we got timing data
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration")
	}

	// Verify phases are tracked
	if len(stats.PhaseAvg) == 0 {
		t.Error("expected phase averages to be populated")
	}

	if _, ok := stats.PhaseAvg[PhaseCurl]; !ok {
		t.Error("expected curl phase to be tracked")
	}

	if _, ok := stats.PhaseAvg[PhasePressure]; !ok {
		t.Error("expected pressure phase to be tracked")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5) // Small window

	// Fill window completely
	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseCurl)
		pc.EndTick()
	}

	stats := pc.Stats()

	// Should have data
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration after window filled")
	}

	if stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	// Simulate with uneven phase durations
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase("fast")
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase("slow")
		time.Sleep(100 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	fastPct := stats.PhasePct["fast"]
	slowPct := stats.PhasePct["slow"]

	// Slow phase should take more % than fast
	if slowPct <= fastPct {
		t.Errorf("expected slow phase (%v%%) > fast phase (%v%%)", slowPct, fastPct)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()

	// Empty collector should return zero values without panicking
	if stats.AvgTickDuration != 0 {
		t.Error("expected zero avg tick duration for empty collector")
	}

	if stats.PhaseAvg == nil {
		t.Error("expected non-nil PhaseAvg map")
	}

	if stats.PhasePct == nil {
		t.Error("expected non-nil PhasePct map")
	}
}

func TestPerfCollector_FrameTiming(t *testing.T) {
	pc := NewPerfCollector(10)
	base := time.Unix(1700000000, 0)

	// First call only establishes the baseline
	pc.RecordFrame(base)
	if stats := pc.Stats(); stats.FPS != 0 {
		t.Errorf("expected no FPS after one frame, got %v", stats.FPS)
	}

	pc.RecordFrame(base.Add(20 * time.Millisecond))
	stats := pc.Stats()
	if stats.FrameDuration != 20*time.Millisecond {
		t.Errorf("expected 20ms frame, got %v", stats.FrameDuration)
	}
	if stats.FPS != 50 {
		t.Errorf("expected 50 FPS, got %v", stats.FPS)
	}

	// A clock that does not advance keeps the last interval.
	pc.RecordFrame(base.Add(20 * time.Millisecond))
	if got := pc.Stats().FrameDuration; got != 20*time.Millisecond {
		t.Errorf("expected interval kept, got %v", got)
	}
}

func TestPerfCollector_EvictsOldPhases(t *testing.T) {
	pc := NewPerfCollector(2)

	pc.StartTick()
	pc.StartPhase("early")
	time.Sleep(50 * time.Microsecond)
	pc.EndTick()
	if _, ok := pc.Stats().PhaseAvg["early"]; !ok {
		t.Fatal("expected early phase while in the window")
	}

	for i := 0; i < 2; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseRender)
		time.Sleep(50 * time.Microsecond)
		pc.EndTick()
	}
	stats := pc.Stats()
	if _, ok := stats.PhaseAvg["early"]; ok {
		t.Error("expected early phase evicted with its tick")
	}
	if stats.MinTickDuration <= 0 || stats.MaxTickDuration < stats.MinTickDuration {
		t.Errorf("bad extremes: min %v max %v", stats.MinTickDuration, stats.MaxTickDuration)
	}
}

func TestPerfStats_ToCSV(t *testing.T) {
	stats := PerfStats{
		AvgTickDuration: 2 * time.Millisecond,
		PhasePct:        map[string]float64{PhasePressure: 40, PhaseAdvection: 25},
	}

	row := stats.ToCSV(120)
	if row.Tick != 120 {
		t.Errorf("expected tick 120, got %d", row.Tick)
	}
	if row.AvgTickUS != 2000 {
		t.Errorf("expected 2000us, got %d", row.AvgTickUS)
	}
	if row.PressurePct != 40 || row.AdvectionPct != 25 {
		t.Errorf("phase percentages not carried: %+v", row)
	}
}
