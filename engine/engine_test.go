package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/grid"
	"github.com/pthm-cable/splash/input"
	"github.com/pthm-cable/splash/telemetry"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.t = c.t.Add(d)
	return c.t
}

const frameStep = time.Second / 60

func testConfig(mutate func(*config.Config)) *config.Config {
	cfg := config.Default()
	cfg.Fluid.SimResolution = 16
	cfg.Fluid.DyeResolution = 32
	cfg.Fluid.PressureIterations = 10
	cfg.Device.Workers = 1
	cfg.Render.Scale = 0.5
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func newEngine(t *testing.T, surface Surface, mutate func(*config.Config), opts Options) (*Engine, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	opts.Clock = clk
	if opts.Seed == 0 {
		opts.Seed = 7
	}
	e, err := New(testConfig(mutate), surface, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Stop)
	return e, clk
}

func runFrames(t *testing.T, e *Engine, clk *fakeClock, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := e.Frame(clk.Advance(frameStep)); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
}

func dyeEnergy(e *Engine) float32 {
	return e.Stepper().Dye().Front().Energy()
}

func TestNewWithoutRenderableFormats(t *testing.T) {
	cfg := testConfig(func(c *config.Config) { c.Device.Formats = nil })
	_, err := New(cfg, &StaticSurface{W: 64, H: 64}, Options{})
	if !errors.Is(err, grid.ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}
}

func TestNewDegradesWithoutLinearFiltering(t *testing.T) {
	e, _ := newEngine(t, &StaticSurface{W: 64, H: 64}, func(c *config.Config) {
		c.Device.LinearFiltering = false
		c.Fluid.ShadingEnabled = true
	}, Options{})

	if got := e.Config().Fluid.DyeResolution; got != fallbackDyeResolution {
		t.Errorf("dye resolution = %d, want %d", got, fallbackDyeResolution)
	}
	if e.Config().Fluid.ShadingEnabled {
		t.Error("shading should be disabled")
	}
	if !e.Stepper().ManualFiltering() {
		t.Error("advection should use manual filtering")
	}
}

func TestFrameProducesOutput(t *testing.T) {
	e, clk := newEngine(t, &StaticSurface{W: 64, H: 48}, nil, Options{})
	runFrames(t, e, clk, 1)

	out := e.Output()
	if out == nil {
		t.Fatal("expected a frame")
	}
	if out.W != 32 || out.H != 24 {
		t.Errorf("frame is %dx%d, want 32x24", out.W, out.H)
	}
	if e.Tick() != 1 {
		t.Errorf("tick = %d, want 1", e.Tick())
	}
	if got, want := len(e.Kernels()), e.pipe.Compiled(); got == 0 || got != want {
		t.Errorf("Kernels() returned %d programs, %d compiled", got, want)
	}
}

func TestPressInjectsAndDecays(t *testing.T) {
	e, clk := newEngine(t, &StaticSurface{W: 64, H: 64}, nil, Options{})
	runFrames(t, e, clk, 1)
	if dyeEnergy(e) != 0 {
		t.Fatal("dye should start empty")
	}

	e.Input().Push(input.Event{Type: input.Press, ID: input.MouseID, X: 32, Y: 32})
	e.Input().Push(input.Event{Type: input.Move, ID: input.MouseID, X: 40, Y: 30})
	e.Input().Push(input.Event{Type: input.Release, ID: input.MouseID})
	runFrames(t, e, clk, 1)

	injected := dyeEnergy(e)
	if injected <= 0 {
		t.Fatal("expected dye after press")
	}
	if e.Stepper().Velocity().Front().Energy() <= 0 {
		t.Fatal("expected velocity after press")
	}

	runFrames(t, e, clk, 200)
	if got := dyeEnergy(e); got > injected*0.01 {
		t.Errorf("dye energy %v did not decay from %v", got, injected)
	}
}

func TestHoverMovesDoNotSplat(t *testing.T) {
	e, clk := newEngine(t, &StaticSurface{W: 64, H: 64}, nil, Options{})
	runFrames(t, e, clk, 1)

	for i := 0; i < 10; i++ {
		e.Input().Push(input.Event{Type: input.Move, ID: input.MouseID, X: float32(10 + i*4), Y: 20})
	}
	runFrames(t, e, clk, 1)
	if dyeEnergy(e) != 0 {
		t.Error("moves without a press should not inject dye")
	}
}

func TestDTIsClamped(t *testing.T) {
	e, clk := newEngine(t, &StaticSurface{W: 64, H: 64}, nil, Options{})

	if err := e.Frame(clk.Advance(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if got := e.collector.SimTime(); got > 1.0/60.0+1e-6 {
		t.Errorf("a 5s gap advanced the simulation by %vs", got)
	}

	// A clock that goes backwards steps by zero.
	if err := e.Frame(clk.Advance(-time.Second)); err != nil {
		t.Fatal(err)
	}
	if got := e.collector.SimTime(); got > 1.0/60.0+1e-6 {
		t.Errorf("backwards clock advanced the simulation to %vs", got)
	}
}

func TestZeroSizeSurface(t *testing.T) {
	surface := &StaticSurface{W: 0, H: 0}
	e, clk := newEngine(t, surface, nil, Options{})

	e.Input().Push(input.Event{Type: input.Press, ID: input.MouseID, X: 1, Y: 1})
	runFrames(t, e, clk, 2)
	if e.Stepper().Ready() {
		t.Error("grids should not exist before the surface has an area")
	}
	if e.Output() != nil {
		t.Error("no frame should be rendered on a zero-size surface")
	}
	if e.Input().Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", e.Input().Dropped())
	}

	surface.W, surface.H = 64, 32
	runFrames(t, e, clk, 1)
	if !e.Stepper().Ready() || e.Output() == nil {
		t.Fatal("engine should start once the surface has an area")
	}

	// Shrinking back to nothing keeps the grids and the last frame.
	surface.W = 0
	runFrames(t, e, clk, 1)
	if !e.Stepper().Ready() || e.Output() == nil {
		t.Error("zero-size tick should skip resize, not tear down")
	}
}

func TestResizeFollowsSurface(t *testing.T) {
	surface := &StaticSurface{W: 64, H: 64, Ratio: 2}
	e, clk := newEngine(t, surface, nil, Options{})

	vel := e.Stepper().Velocity()
	if vel.Width() != 16 || vel.Height() != 16 {
		t.Fatalf("velocity is %dx%d, want 16x16", vel.Width(), vel.Height())
	}

	surface.W = 128
	runFrames(t, e, clk, 1)
	if vel.Width() != 32 || vel.Height() != 16 {
		t.Errorf("velocity is %dx%d after resize, want 32x16", vel.Width(), vel.Height())
	}
	// Frame follows physical pixels at half scale.
	if out := e.Output(); out.W != 128 || out.H != 64 {
		t.Errorf("frame is %dx%d, want 128x64", out.W, out.H)
	}
}

func TestSizeTracksSurface(t *testing.T) {
	surface := &StaticSurface{W: 80, H: 40, Ratio: 2}
	e, clk := newEngine(t, surface, nil, Options{})
	if w, h := e.Size(); w != 0 || h != 0 {
		t.Errorf("size before first tick = %dx%d", w, h)
	}
	runFrames(t, e, clk, 1)
	if w, h := e.Size(); w != 80 || h != 40 {
		t.Errorf("size = %dx%d, want logical 80x40", w, h)
	}
}

func TestUpdateConfig(t *testing.T) {
	e, clk := newEngine(t, &StaticSurface{W: 64, H: 64}, nil, Options{})
	runFrames(t, e, clk, 1)

	next := testConfig(func(c *config.Config) {
		c.Fluid.SimResolution = 8
		c.Fluid.CurlStrength = 12
		c.Pointer.QueueSize = 1
	})
	if err := e.UpdateConfig(next); err != nil {
		t.Fatal(err)
	}
	runFrames(t, e, clk, 1)

	if got := e.Config().Fluid.CurlStrength; got != 12 {
		t.Errorf("curl = %v, want 12", got)
	}
	if vel := e.Stepper().Velocity(); vel.Width() != 8 || vel.Height() != 8 {
		t.Errorf("velocity is %dx%d after resolution change, want 8x8", vel.Width(), vel.Height())
	}
	if e.Config().Pointer.QueueSize == 1 {
		t.Error("queue size must not change at runtime")
	}
}

func TestUpdateConfigKeepsDegradedSettings(t *testing.T) {
	e, _ := newEngine(t, &StaticSurface{W: 64, H: 64}, func(c *config.Config) {
		c.Device.LinearFiltering = false
	}, Options{})

	if err := e.UpdateConfig(testConfig(func(c *config.Config) { c.Fluid.ShadingEnabled = true })); err != nil {
		t.Fatal(err)
	}

	if e.Config().Fluid.ShadingEnabled || e.Config().Fluid.DyeResolution != fallbackDyeResolution {
		t.Error("reload re-enabled settings the device cannot support")
	}
}

func TestSurfaceGrowthStaysWithinMaxSize(t *testing.T) {
	surface := &StaticSurface{W: 64, H: 64}
	e, clk := newEngine(t, surface, func(c *config.Config) {
		c.Device.MaxTextureSize = 64
	}, Options{})
	runFrames(t, e, clk, 2)

	surface.W = 256
	runFrames(t, e, clk, 3)
	if e.Tick() != 5 {
		t.Fatalf("tick = %d, want 5", e.Tick())
	}

	s := e.Stepper()
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"velocity", s.Velocity().Width(), s.Velocity().Height(), 64, 16},
		{"dye", s.Dye().Width(), s.Dye().Height(), 64, 16},
		{"curl", s.Curl().Width, s.Curl().Height, 64, 16},
		{"frame", e.Output().W, e.Output().H, 64, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.w != tt.wantW || tt.h != tt.wantH {
				t.Errorf("%s is %dx%d, want %dx%d", tt.name, tt.w, tt.h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestUpdateConfigRejectsOversizedResolution(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int
		mutate  func(*config.Config)
	}{
		{"dye over default max", 0, func(c *config.Config) { c.Fluid.DyeResolution = 5000 }},
		{"sim over small max", 64, func(c *config.Config) { c.Fluid.SimResolution = 128 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, clk := newEngine(t, &StaticSurface{W: 64, H: 64}, func(c *config.Config) {
				if tt.maxSize > 0 {
					c.Device.MaxTextureSize = tt.maxSize
				}
			}, Options{})
			runFrames(t, e, clk, 1)

			next := testConfig(func(c *config.Config) {
				c.Fluid.CurlStrength = 12
				tt.mutate(c)
			})
			if err := e.UpdateConfig(next); err == nil {
				t.Fatal("expected oversized resolution to be rejected")
			}
			runFrames(t, e, clk, 3)

			f := e.Config().Fluid
			if f.SimResolution != 16 || f.DyeResolution != 32 {
				t.Errorf("resolutions = %d/%d, want 16/32 kept", f.SimResolution, f.DyeResolution)
			}
			if f.CurlStrength == 12 {
				t.Error("rejected reload applied other settings")
			}
			if e.Tick() != 4 {
				t.Errorf("tick = %d, want 4", e.Tick())
			}
		})
	}
}

func TestNewFailureDetachesSources(t *testing.T) {
	tracker := input.NewTracker()
	cfg := testConfig(func(c *config.Config) { c.Fluid.SimResolution = 0 })
	if _, err := New(cfg, &StaticSurface{W: 64, H: 64}, Options{Sources: []input.Source{tracker}}); err == nil {
		t.Fatal("expected grid allocation to fail")
	}
	if n := tracker.Subscribers(); n != 0 {
		t.Errorf("tracker has %d subscribers after failed New, want 0", n)
	}
}

func TestStop(t *testing.T) {
	src := &countingSource{}
	e, clk := newEngine(t, &StaticSurface{W: 64, H: 64}, nil, Options{Sources: []input.Source{src}})
	runFrames(t, e, clk, 3)

	e.Stop()
	e.Stop()

	if e.Active() {
		t.Error("engine should be inactive")
	}
	if err := e.Frame(clk.Advance(frameStep)); !errors.Is(err, ErrStopped) {
		t.Errorf("Frame after Stop = %v, want ErrStopped", err)
	}
	if e.Tick() != 3 {
		t.Errorf("tick advanced after stop: %d", e.Tick())
	}
	if src.unsubs != 1 {
		t.Errorf("source unsubscribed %d times, want 1", src.unsubs)
	}
	if e.Stepper().Ready() {
		t.Error("grids should be released")
	}
	if err := e.Run(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Run after Stop = %v, want ErrStopped", err)
	}
}

type countingSource struct{ unsubs int }

func (s *countingSource) Subscribe(func(input.Event)) func() {
	return func() { s.unsubs++ }
}

func TestRunMaxTicks(t *testing.T) {
	e, _ := newEngine(t, &StaticSurface{W: 32, H: 32}, func(c *config.Config) {
		c.Derived.FrameDelay = 0.001
	}, Options{MaxTicks: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if e.Tick() != 5 {
		t.Errorf("tick = %d, want 5", e.Tick())
	}
}

func TestRunStopsOnStop(t *testing.T) {
	e, _ := newEngine(t, &StaticSurface{W: 32, H: 32}, func(c *config.Config) {
		c.Derived.FrameDelay = 0.001
	}, Options{})

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	e.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v after Stop", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRunHonorsContext(t *testing.T) {
	e, _ := newEngine(t, &StaticSurface{W: 32, H: 32}, func(c *config.Config) {
		c.Derived.FrameDelay = 0.001
	}, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want deadline exceeded", err)
	}
	if !e.Active() {
		t.Error("context cancellation should not stop the engine")
	}
}

func TestSnapshotRestore(t *testing.T) {
	e, clk := newEngine(t, &StaticSurface{W: 64, H: 64}, nil, Options{})
	runFrames(t, e, clk, 1)
	e.Input().Push(input.Event{Type: input.Press, ID: input.MouseID, X: 20, Y: 20})
	runFrames(t, e, clk, 2)

	snap := e.Snapshot()
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	want := dyeEnergy(e)

	other, _ := newEngine(t, &StaticSurface{W: 64, H: 64}, nil, Options{})
	if err := other.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := dyeEnergy(other); got != want {
		t.Errorf("restored dye energy %v, want %v", got, want)
	}

	// A differently sized engine resamples the snapshot.
	wide, _ := newEngine(t, &StaticSurface{W: 128, H: 64}, nil, Options{})
	if err := wide.Restore(snap); err != nil {
		t.Fatalf("Restore into wider grids: %v", err)
	}
	if dyeEnergy(wide) <= 0 {
		t.Error("resampled restore lost the dye")
	}
}

func TestTelemetryOutput(t *testing.T) {
	dir := t.TempDir()
	om, err := telemetry.NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	snapDir := filepath.Join(dir, "snapshots")
	metrics := telemetry.NewMetrics()

	e, clk := newEngine(t, &StaticSurface{W: 64, H: 64}, func(c *config.Config) {
		c.Telemetry.StatsWindow = 0.05
	}, Options{Output: om, SnapshotDir: snapDir, Metrics: metrics})

	e.Input().Push(input.Event{Type: input.Press, ID: input.MouseID, X: 32, Y: 32})
	runFrames(t, e, clk, 30)
	e.Stop()

	data, err := os.ReadFile(filepath.Join(dir, "fields.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 3 {
		t.Errorf("expected several field windows, got %d lines", len(lines))
	}
	if _, err := os.Stat(filepath.Join(dir, "perf.csv")); err != nil {
		t.Error(err)
	}
	if ticks := testutil.ToFloat64(metrics.Ticks); ticks <= 0 || ticks > 30 {
		t.Errorf("metrics counted %v ticks", ticks)
	}

	// Stop saves a final snapshot.
	snaps, err := filepath.Glob(filepath.Join(snapDir, "snapshot_30*.json"))
	if err != nil || len(snaps) == 0 {
		t.Fatalf("expected final snapshot, got %v (%v)", snaps, err)
	}
	snap, err := telemetry.LoadSnapshot(snaps[0])
	if err != nil {
		t.Fatal(err)
	}
	if snap.Tick != 30 || snap.RNGSeed != 7 {
		t.Errorf("snapshot tick %d seed %d", snap.Tick, snap.RNGSeed)
	}
	if snap.RunID == "" || snap.RunID != e.RunID() {
		t.Errorf("snapshot run %q, engine run %q", snap.RunID, e.RunID())
	}
}
