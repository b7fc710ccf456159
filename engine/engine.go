// Package engine schedules ticks of the fluid simulation against a host
// surface: resize, input, solver step, render and telemetry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/fluid"
	"github.com/pthm-cable/splash/grid"
	"github.com/pthm-cable/splash/input"
	"github.com/pthm-cable/splash/kernel"
	"github.com/pthm-cable/splash/renderer"
	"github.com/pthm-cable/splash/telemetry"
)

// ErrStopped is returned by Frame once the engine has been stopped.
var ErrStopped = errors.New("engine: stopped")

const (
	// Dye resolution used when the device cannot filter linearly.
	fallbackDyeResolution = 256
	// Windows of history the bookmark detector averages over.
	bookmarkHistory = 12
)

// Surface is the host drawing area.
type Surface interface {
	// Size returns the surface size in logical pixels. Pointer events use
	// the same units.
	Size() (w, h int)
	// PixelRatio returns physical pixels per logical pixel.
	PixelRatio() float32
}

// StaticSurface is a fixed-size Surface for headless runs.
type StaticSurface struct {
	W, H  int
	Ratio float32
}

func (s *StaticSurface) Size() (int, int) { return s.W, s.H }

func (s *StaticSurface) PixelRatio() float32 {
	if s.Ratio <= 0 {
		return 1
	}
	return s.Ratio
}

// Clock supplies wall-clock time to Run.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Options configures an Engine.
type Options struct {
	Logger      *slog.Logger
	Seed        int64 // RNG seed (0 = time-based)
	Sources     []input.Source
	Output      *telemetry.OutputManager // Closed by Stop
	LogStats    bool
	SnapshotDir string // Save a snapshot on every bookmark and on Stop
	Clock       Clock
	MaxTicks    int64              // Run returns after this many ticks (0 = unlimited)
	Metrics     *telemetry.Metrics // Optional; updated on every stats flush
}

// Engine owns every subsystem and runs them once per tick.
type Engine struct {
	cfg     *config.Config
	surface Surface
	opts    Options
	logger  *slog.Logger
	seed    int64
	runID   string

	mgr      *grid.Manager
	pipe     *kernel.Pipeline
	stepper  *fluid.Stepper
	renderer *renderer.Renderer
	adapter  *input.Adapter

	perf      *telemetry.PerfCollector
	collector *telemetry.Collector
	bookmarks *telemetry.BookmarkDetector

	// frameMu serializes ticks against Stop.
	frameMu sync.Mutex
	active  atomic.Bool
	cancel  context.CancelFunc

	// Logical surface size at the last input drain, for other goroutines.
	logicalW, logicalH atomic.Int32

	tick          int64
	last          time.Time
	width, height int // Physical surface size the grids were built for
	frame         *renderer.Frame
}

// New initializes the engine against surface: device capability check,
// kernel compilation, grid allocation and input wiring. The engine is
// active when New returns.
func New(cfg *config.Config, surface Surface, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = wallClock{}
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	runID := uuid.NewString()
	logger = logger.With("run", runID)

	e := &Engine{
		cfg:       cfg,
		surface:   surface,
		opts:      opts,
		logger:    logger,
		seed:      seed,
		runID:     runID,
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		collector: telemetry.NewCollector(cfg.Telemetry.StatsWindow),
		bookmarks: telemetry.NewBookmarkDetector(bookmarkHistory),
	}

	dev := cfg.Device
	caps, err := grid.CapabilitiesFromNames(dev.Formats, dev.LinearFiltering, dev.MaxTextureSize)
	if err != nil {
		return nil, fmt.Errorf("device capabilities: %w", err)
	}
	if e.mgr, err = grid.NewManager(caps, logger); err != nil {
		return nil, fmt.Errorf("grid manager: %w", err)
	}
	if !caps.LinearFiltering {
		cfg.Fluid.DyeResolution = fallbackDyeResolution
		cfg.Fluid.ShadingEnabled = false
		logger.Warn("linear filtering unavailable, degrading",
			"dye_resolution", fallbackDyeResolution,
			"shading", false,
		)
	}

	e.pipe = kernel.NewPipeline(logger, dev.Workers)
	if e.stepper, err = fluid.NewStepper(&cfg.Fluid, e.mgr, e.pipe, logger); err != nil {
		e.pipe.Close()
		return nil, fmt.Errorf("solver kernels: %w", err)
	}
	if e.renderer, err = renderer.New(cfg, e.mgr, e.pipe, logger); err != nil {
		e.pipe.Close()
		return nil, fmt.Errorf("display kernels: %w", err)
	}
	e.stepper.SetPhaseTimer(e.perf)

	e.adapter = input.NewAdapter(cfg, rand.New(rand.NewSource(seed)), logger)
	for _, src := range opts.Sources {
		e.adapter.Attach(src)
	}

	if err := e.resize(); err != nil {
		e.adapter.Close()
		e.release()
		return nil, err
	}

	e.last = opts.Clock.Now()
	e.active.Store(true)
	logger.Info("engine started",
		"seed", seed,
		"kernels", e.pipe.Compiled(),
		"manual_filtering", e.stepper.ManualFiltering(),
		"width", e.width,
		"height", e.height,
	)
	return e, nil
}

// physicalSize returns the surface size in device pixels.
func (e *Engine) physicalSize() (int, int) {
	w, h := e.surface.Size()
	ratio := float64(e.surface.PixelRatio())
	return int(math.Floor(float64(w) * ratio)), int(math.Floor(float64(h) * ratio))
}

// resize rebuilds the grids when the surface size changed. A surface with
// no area leaves the grids as they are.
func (e *Engine) resize() error {
	w, h := e.physicalSize()
	if w <= 0 || h <= 0 {
		return nil
	}
	if w == e.width && h == e.height && e.stepper.Ready() {
		return nil
	}
	if err := e.stepper.Resize(w, h); err != nil {
		return fmt.Errorf("resize to %dx%d: %w", w, h, err)
	}
	e.width, e.height = w, h
	e.collector.RecordResize()
	return nil
}

// Frame runs one tick at wall-clock time now.
func (e *Engine) Frame(now time.Time) error {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	if !e.active.Load() {
		return ErrStopped
	}

	e.perf.StartTick()
	defer e.perf.EndTick()
	e.perf.RecordFrame(now)

	dt := fluid.ClampDT(now.Sub(e.last).Seconds())
	e.last = now

	e.perf.StartPhase(telemetry.PhaseResize)
	if err := e.resize(); err != nil {
		return err
	}
	if !e.stepper.Ready() {
		// Nothing has had an area yet; input still drains so it cannot pile up.
		e.adapter.Drain(0, 0)
		return nil
	}

	e.perf.StartPhase(telemetry.PhaseInput)
	e.adapter.Recolor(dt)
	sw, sh := e.surface.Size()
	e.logicalW.Store(int32(sw))
	e.logicalH.Store(int32(sh))
	splats := e.adapter.Drain(sw, sh)

	e.perf.StartPhase(telemetry.PhaseSplat)
	for _, s := range splats {
		if err := e.stepper.Splat(s.X, s.Y, s.DX, s.DY, s.Color); err != nil {
			return err
		}
		e.collector.RecordSplat(s.Click)
	}

	if err := e.stepper.Step(dt); err != nil {
		return err
	}

	e.perf.StartPhase(telemetry.PhaseRender)
	if pw, ph := e.physicalSize(); pw > 0 && ph > 0 {
		frame, err := e.renderer.Render(e.stepper.Dye().Front(), pw, ph)
		if err != nil {
			return err
		}
		e.frame = frame
	}

	e.perf.StartPhase(telemetry.PhaseTelemetry)
	e.tick++
	e.sampleFields(dt)
	e.flushTelemetry()
	return nil
}

// Run drives Frame from a ticker at the configured frame rate until ctx is
// done, Stop is called, or MaxTicks is reached.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.frameMu.Lock()
	if !e.active.Load() {
		e.frameMu.Unlock()
		return ErrStopped
	}
	e.cancel = cancel
	e.frameMu.Unlock()

	ticker := time.NewTicker(time.Duration(e.cfg.Derived.FrameDelay * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if !e.active.Load() {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := e.Frame(e.opts.Clock.Now()); err != nil {
				if errors.Is(err, ErrStopped) {
					return nil
				}
				return err
			}
			if e.opts.MaxTicks > 0 && e.Tick() >= e.opts.MaxTicks {
				e.logger.Info("max ticks reached", "tick", e.Tick())
				return nil
			}
		}
	}
}

// Stop deactivates the engine: the run loop exits, input sources are
// detached and every grid is released. Calling Stop again does nothing.
func (e *Engine) Stop() {
	if !e.active.CompareAndSwap(true, false) {
		return
	}
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	e.adapter.Close()

	if e.opts.SnapshotDir != "" && e.stepper.Ready() {
		e.saveSnapshot(nil)
	}
	e.release()
	if err := e.opts.Output.Close(); err != nil {
		e.logger.Error("failed to close output", "error", err)
	}
	e.logger.Info("engine stopped", "tick", e.tick)
}

func (e *Engine) release() {
	e.stepper.Release()
	e.renderer.Release()
	e.pipe.Close()
}

// Active reports whether the engine is still running.
func (e *Engine) Active() bool { return e.active.Load() }

// Output returns the last rendered frame, or nil before the first render.
func (e *Engine) Output() *renderer.Frame { return e.frame }

// Input returns the pointer adapter.
func (e *Engine) Input() *input.Adapter { return e.adapter }

// Stepper returns the solver.
func (e *Engine) Stepper() *fluid.Stepper { return e.stepper }

// Renderer returns the renderer.
func (e *Engine) Renderer() *renderer.Renderer { return e.renderer }

// Kernels returns every compiled kernel variant.
func (e *Engine) Kernels() []*kernel.Program { return e.pipe.Programs() }

// Stats returns timing statistics over the perf window.
func (e *Engine) Stats() telemetry.PerfStats { return e.perf.Stats() }

// Config returns the live configuration. Changes apply from the next tick.
func (e *Engine) Config() *config.Config { return e.cfg }

// UpdateConfig applies the live settings of next between ticks. A changed
// grid resolution rebuilds the grids right away, resampling the current
// fields. Resolutions above the device max size are rejected and nothing is
// applied. If the rebuild fails the previous resolutions are restored.
func (e *Engine) UpdateConfig(next *config.Config) error {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	if m := e.mgr.Capabilities().MaxSize; m > 0 {
		if res := max(next.Fluid.SimResolution, next.Fluid.DyeResolution); res > m {
			return fmt.Errorf("resolution %d exceeds device max size %d", res, m)
		}
	}

	prev := e.cfg.Fluid
	e.cfg.ApplyLive(next)
	if !e.mgr.Capabilities().LinearFiltering {
		e.cfg.Fluid.DyeResolution = fallbackDyeResolution
		e.cfg.Fluid.ShadingEnabled = false
	}

	f := e.cfg.Fluid
	if f.SimResolution != prev.SimResolution || f.DyeResolution != prev.DyeResolution {
		// Forces resize() to rebuild at the new resolution.
		e.width, e.height = 0, 0
		if e.active.Load() && e.stepper.Ready() {
			if err := e.resize(); err != nil {
				e.cfg.Fluid.SimResolution = prev.SimResolution
				e.cfg.Fluid.DyeResolution = prev.DyeResolution
				e.width, e.height = 0, 0
				if rerr := e.resize(); rerr != nil {
					e.logger.Error("restoring previous resolution failed", "error", rerr)
				}
				e.logger.Warn("resolution change failed, keeping previous",
					"error", err,
					"sim_resolution", prev.SimResolution,
					"dye_resolution", prev.DyeResolution,
				)
				return err
			}
		}
	}
	e.logger.Info("config updated",
		"sim_resolution", f.SimResolution,
		"dye_resolution", f.DyeResolution,
	)
	return nil
}

// Tick returns the number of completed ticks.
func (e *Engine) Tick() int64 {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	return e.tick
}

// Seed returns the RNG seed in use.
func (e *Engine) Seed() int64 { return e.seed }

// Size returns the logical surface size seen by the most recent tick. It is
// safe to call from any goroutine.
func (e *Engine) Size() (int, int) {
	return int(e.logicalW.Load()), int(e.logicalH.Load())
}

// RunID returns the session id stamped on logs and snapshots.
func (e *Engine) RunID() string { return e.runID }
