// Package fluid implements the stable-fluid solver over grid buffers.
package fluid

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/grid"
	"github.com/pthm-cable/splash/kernel"
	"github.com/pthm-cable/splash/telemetry"
)

// MaxDT bounds the solver time step regardless of elapsed wall time.
const MaxDT = float32(1.0 / 60.0)

// ClampDT converts elapsed seconds into a solver time step.
func ClampDT(elapsed float64) float32 {
	if elapsed <= 0 {
		return 0
	}
	return min(float32(elapsed), MaxDT)
}

// PhaseTimer receives solver phase boundaries.
type PhaseTimer interface {
	StartPhase(phase string)
}

type nopTimer struct{}

func (nopTimer) StartPhase(string) {}

type programs struct {
	copy, clear, splat, advection         *kernel.Program
	divergence, curl, vorticity, pressure *kernel.Program
	gradientSubtract                      *kernel.Program
}

// Stepper owns the simulation grids and runs the solver passes.
// The solver state lives entirely in the grids.
type Stepper struct {
	cfg    *config.FluidConfig
	mgr    *grid.Manager
	pipe   *kernel.Pipeline
	logger *slog.Logger
	timer  PhaseTimer

	prog   programs
	manual bool // no hardware linear filtering
	filter grid.Filter

	dyeFormat, velFormat, scalarFormat grid.Format

	velocity   *grid.Double
	dye        *grid.Double
	pressure   *grid.Double
	divergence *grid.Buffer
	curl       *grid.Buffer

	surfaceW, surfaceH int
}

// NewStepper compiles the solver kernels. Grids are allocated by the first
// call to Resize.
func NewStepper(cfg *config.FluidConfig, mgr *grid.Manager, pipe *kernel.Pipeline, logger *slog.Logger) (*Stepper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stepper{
		cfg:    cfg,
		mgr:    mgr,
		pipe:   pipe,
		logger: logger,
		timer:  nopTimer{},
		manual: !mgr.Capabilities().LinearFiltering,
		filter: grid.FilterLinear,
	}

	var err error
	if s.dyeFormat, err = mgr.SupportedFormat(grid.FormatRGBA); err != nil {
		return nil, err
	}
	if s.velFormat, err = mgr.SupportedFormat(grid.FormatRG); err != nil {
		return nil, err
	}
	if s.scalarFormat, err = mgr.SupportedFormat(grid.FormatR); err != nil {
		return nil, err
	}

	var advFlags kernel.Flags
	if s.manual {
		advFlags = kernel.ManualFiltering
	}
	compile := []struct {
		dst   **kernel.Program
		kind  kernel.Kind
		src   kernel.Source
		flags kernel.Flags
	}{
		{&s.prog.copy, kernel.KindCopy, copySource, 0},
		{&s.prog.clear, kernel.KindClear, clearSource, 0},
		{&s.prog.splat, kernel.KindSplat, splatSource, 0},
		{&s.prog.advection, kernel.KindAdvection, advectionSource, advFlags},
		{&s.prog.divergence, kernel.KindDivergence, divergenceSource, 0},
		{&s.prog.curl, kernel.KindCurl, curlSource, 0},
		{&s.prog.vorticity, kernel.KindVorticity, vorticitySource, 0},
		{&s.prog.pressure, kernel.KindPressure, pressureSource, 0},
		{&s.prog.gradientSubtract, kernel.KindGradientSubtract, gradientSubtractSource, 0},
	}
	for _, c := range compile {
		p, err := pipe.Compile(c.kind, c.src, c.flags)
		if err != nil {
			return nil, err
		}
		*c.dst = p
	}
	return s, nil
}

// SetPhaseTimer routes phase boundaries to t.
func (s *Stepper) SetPhaseTimer(t PhaseTimer) {
	if t == nil {
		t = nopTimer{}
	}
	s.timer = t
}

// ManualFiltering reports whether advection uses the 4-tap fallback.
func (s *Stepper) ManualFiltering() bool { return s.manual }

// Ready reports whether the grids have been allocated.
func (s *Stepper) Ready() bool { return s.velocity != nil }

// Velocity returns the velocity double buffer.
func (s *Stepper) Velocity() *grid.Double { return s.velocity }

// Dye returns the dye double buffer.
func (s *Stepper) Dye() *grid.Double { return s.dye }

// Pressure returns the pressure double buffer.
func (s *Stepper) Pressure() *grid.Double { return s.pressure }

// Divergence returns the divergence scratch grid.
func (s *Stepper) Divergence() *grid.Buffer { return s.divergence }

// Curl returns the curl scratch grid.
func (s *Stepper) Curl() *grid.Buffer { return s.curl }

// Aspect returns the surface width over height.
func (s *Stepper) Aspect() float32 {
	if s.surfaceH == 0 {
		return 1
	}
	return float32(s.surfaceW) / float32(s.surfaceH)
}

// Resize fits the grids to a surface of w x h pixels, scaled down to the
// device's max size when the surface is too wide. Velocity and dye keep
// their content through the copy kernel; scratch grids come back blank.
func (s *Stepper) Resize(w, h int) error {
	maxSize := s.mgr.Capabilities().MaxSize
	simW, simH, err := grid.FitResolution(s.cfg.SimResolution, w, h, maxSize)
	if err != nil {
		return err
	}
	dyeW, dyeH, err := grid.FitResolution(s.cfg.DyeResolution, w, h, maxSize)
	if err != nil {
		return err
	}

	if s.velocity == nil {
		if s.velocity, err = s.mgr.CreateDouble(simW, simH, s.velFormat, s.filter); err != nil {
			return fmt.Errorf("creating velocity: %w", err)
		}
		if s.dye, err = s.mgr.CreateDouble(dyeW, dyeH, s.dyeFormat, s.filter); err != nil {
			return fmt.Errorf("creating dye: %w", err)
		}
	} else {
		back := s.cfg.ResampleBackOnResize
		if err := s.mgr.ResizeDouble(s.velocity, simW, simH, s, back); err != nil {
			return fmt.Errorf("resizing velocity: %w", err)
		}
		if err := s.mgr.ResizeDouble(s.dye, dyeW, dyeH, s, back); err != nil {
			return fmt.Errorf("resizing dye: %w", err)
		}
	}

	s.mgr.ReleaseDouble(s.pressure)
	s.mgr.Release(s.divergence)
	s.mgr.Release(s.curl)
	if s.divergence, err = s.mgr.Create(simW, simH, s.scalarFormat, grid.FilterNearest); err != nil {
		return fmt.Errorf("creating divergence: %w", err)
	}
	if s.curl, err = s.mgr.Create(simW, simH, s.scalarFormat, grid.FilterNearest); err != nil {
		return fmt.Errorf("creating curl: %w", err)
	}
	if s.pressure, err = s.mgr.CreateDouble(simW, simH, s.scalarFormat, grid.FilterNearest); err != nil {
		return fmt.Errorf("creating pressure: %w", err)
	}

	s.surfaceW, s.surfaceH = w, h
	s.logger.Info("grids resized",
		"surface_w", w, "surface_h", h,
		"sim_w", simW, "sim_h", simH,
		"dye_w", dyeW, "dye_h", dyeH,
	)
	return nil
}

// Resample copies src into dst through the copy kernel.
func (s *Stepper) Resample(src, dst *grid.Buffer) error {
	p := s.prog.copy
	p.Bind()
	p.Set1i(p.Uniform("uTexture"), s.pipe.Attach(0, src))
	return s.pipe.Blit(dst)
}

// Release frees every grid the stepper owns.
func (s *Stepper) Release() {
	s.mgr.ReleaseDouble(s.velocity)
	s.mgr.ReleaseDouble(s.dye)
	s.mgr.ReleaseDouble(s.pressure)
	s.mgr.Release(s.divergence)
	s.mgr.Release(s.curl)
	s.velocity, s.dye, s.pressure, s.divergence, s.curl = nil, nil, nil, nil, nil
	s.pipe.Detach()
}

// blitSwap runs the bound program into d's back buffer and swaps.
func (s *Stepper) blitSwap(d *grid.Double) error {
	if err := s.pipe.Blit(d.Back()); err != nil {
		return err
	}
	d.Swap()
	return nil
}

// Splat adds a Gaussian impulse at texture coordinate (x, y): (dx, dy) into
// velocity and color into dye.
func (s *Stepper) Splat(x, y, dx, dy float32, color [3]float32) error {
	aspect := s.Aspect()
	p := s.prog.splat
	p.Bind()
	p.Set1i(p.Uniform("uTarget"), s.pipe.Attach(0, s.velocity.Front()))
	p.Set1f(p.Uniform("aspectRatio"), aspect)
	p.Set2f(p.Uniform("point"), x, y)
	p.Set3f(p.Uniform("color"), dx, dy, 0)
	p.Set1f(p.Uniform("radius"), CorrectRadius(s.cfg.SplatRadius/100, aspect))
	if err := s.blitSwap(s.velocity); err != nil {
		return fmt.Errorf("velocity splat: %w", err)
	}

	p.Set1i(p.Uniform("uTarget"), s.pipe.Attach(0, s.dye.Front()))
	p.Set3f(p.Uniform("color"), color[0], color[1], color[2])
	if err := s.blitSwap(s.dye); err != nil {
		return fmt.Errorf("dye splat: %w", err)
	}
	return nil
}

// CorrectRadius widens the splat radius on landscape surfaces so the
// footprint keeps the same size relative to the short axis.
func CorrectRadius(radius, aspect float32) float32 {
	if aspect > 1 {
		radius *= aspect
	}
	return radius
}

// Step advances the simulation by dt seconds.
func (s *Stepper) Step(dt float32) error {
	if !s.Ready() {
		return fmt.Errorf("fluid: step before grids were allocated")
	}
	tx, ty := s.velocity.TexelSize()

	s.timer.StartPhase(telemetry.PhaseCurl)
	p := s.prog.curl
	p.Bind()
	p.Set2f(p.Uniform("texelSize"), tx, ty)
	p.Set1i(p.Uniform("uVelocity"), s.pipe.Attach(0, s.velocity.Front()))
	if err := s.pipe.Blit(s.curl); err != nil {
		return fmt.Errorf("curl: %w", err)
	}

	s.timer.StartPhase(telemetry.PhaseVorticity)
	p = s.prog.vorticity
	p.Bind()
	p.Set2f(p.Uniform("texelSize"), tx, ty)
	p.Set1i(p.Uniform("uVelocity"), s.pipe.Attach(0, s.velocity.Front()))
	p.Set1i(p.Uniform("uCurl"), s.pipe.Attach(1, s.curl))
	p.Set1f(p.Uniform("curl"), s.cfg.CurlStrength)
	p.Set1f(p.Uniform("dt"), dt)
	if err := s.blitSwap(s.velocity); err != nil {
		return fmt.Errorf("vorticity: %w", err)
	}

	s.timer.StartPhase(telemetry.PhaseDivergence)
	p = s.prog.divergence
	p.Bind()
	p.Set2f(p.Uniform("texelSize"), tx, ty)
	p.Set1i(p.Uniform("uVelocity"), s.pipe.Attach(0, s.velocity.Front()))
	if err := s.pipe.Blit(s.divergence); err != nil {
		return fmt.Errorf("divergence: %w", err)
	}

	s.timer.StartPhase(telemetry.PhasePressure)
	p = s.prog.clear
	p.Bind()
	p.Set1i(p.Uniform("uTexture"), s.pipe.Attach(0, s.pressure.Front()))
	p.Set1f(p.Uniform("value"), s.cfg.PressureDecay)
	if err := s.blitSwap(s.pressure); err != nil {
		return fmt.Errorf("pressure decay: %w", err)
	}
	if err := s.SolvePressure(s.cfg.PressureIterations); err != nil {
		return err
	}

	s.timer.StartPhase(telemetry.PhaseProjection)
	p = s.prog.gradientSubtract
	p.Bind()
	p.Set2f(p.Uniform("texelSize"), tx, ty)
	p.Set1i(p.Uniform("uPressure"), s.pipe.Attach(0, s.pressure.Front()))
	p.Set1i(p.Uniform("uVelocity"), s.pipe.Attach(1, s.velocity.Front()))
	if err := s.blitSwap(s.velocity); err != nil {
		return fmt.Errorf("gradient subtract: %w", err)
	}

	s.timer.StartPhase(telemetry.PhaseAdvection)
	p = s.prog.advection
	p.Bind()
	p.Set2f(p.Uniform("texelSize"), tx, ty)
	p.Set2f(p.Uniform("dyeTexelSize"), tx, ty)
	velocityUnit := s.pipe.Attach(0, s.velocity.Front())
	p.Set1i(p.Uniform("uVelocity"), velocityUnit)
	p.Set1i(p.Uniform("uSource"), velocityUnit)
	p.Set1f(p.Uniform("dt"), dt)
	p.Set1f(p.Uniform("dissipation"), s.cfg.VelocityDissipation)
	if err := s.blitSwap(s.velocity); err != nil {
		return fmt.Errorf("velocity advection: %w", err)
	}

	dx, dy := s.dye.TexelSize()
	p.Set2f(p.Uniform("dyeTexelSize"), dx, dy)
	p.Set1i(p.Uniform("uVelocity"), s.pipe.Attach(0, s.velocity.Front()))
	p.Set1i(p.Uniform("uSource"), s.pipe.Attach(1, s.dye.Front()))
	p.Set1f(p.Uniform("dissipation"), s.cfg.DensityDissipation)
	if err := s.blitSwap(s.dye); err != nil {
		return fmt.Errorf("dye advection: %w", err)
	}
	return nil
}

// SolvePressure runs n Jacobi iterations of the pressure Poisson equation
// against the current divergence grid.
func (s *Stepper) SolvePressure(n int) error {
	tx, ty := s.velocity.TexelSize()
	p := s.prog.pressure
	p.Bind()
	p.Set2f(p.Uniform("texelSize"), tx, ty)
	p.Set1i(p.Uniform("uDivergence"), s.pipe.Attach(0, s.divergence))
	for i := 0; i < n; i++ {
		p.Set1i(p.Uniform("uPressure"), s.pipe.Attach(1, s.pressure.Front()))
		if err := s.blitSwap(s.pressure); err != nil {
			return fmt.Errorf("pressure iteration %d: %w", i, err)
		}
	}
	return nil
}
