package main

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/engine"
	"github.com/pthm-cable/splash/input"
)

// Velocity magnitude at which vorticity confinement clamps.
const velocityClamp = 1000

// Fitness component weights.
const (
	weightHalfLife   = 1.0
	weightSaturation = 0.5
	weightIterations = 0.002
)

// stepClock advances by exactly one frame delay per tick.
type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time { return c.t }

// FitnessEvaluator runs headless drags and scores how the dye fades.
type FitnessEvaluator struct {
	params     *ParamVector
	baseConfig *config.Config
	seeds      []int64
	dragTicks  int
	settleTick int
	target     float64 // Desired dye half-life in seconds
	width      int
	height     int
	logger     *slog.Logger

	mu          sync.Mutex
	lastHalf    float64
	lastQuality float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, baseCfg *config.Config, seeds []int64, target float64) *FitnessEvaluator {
	fps := 1 / baseCfg.Derived.FrameDelay
	return &FitnessEvaluator{
		params:     params,
		baseConfig: baseCfg,
		seeds:      seeds,
		dragTicks:  int(fps),
		settleTick: int(4 * fps),
		target:     target,
		width:      128,
		height:     128,
		logger:     slog.New(slog.DiscardHandler),
	}
}

// Last returns the half-life and quality from the most recent evaluation.
func (fe *FitnessEvaluator) Last() (halfLife, quality float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastHalf, fe.lastQuality
}

// runResult holds the measurements from a single run.
type runResult struct {
	dyeEnergy []float64 // From the release tick on
	ticks     int
	saturated int // Ticks with velocity at the clamp
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
// All seeds run in parallel.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]*runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	dt := fe.baseConfig.Derived.FrameDelay
	var totalFitness, totalHalf, totalQuality float64
	for _, r := range results {
		half := float64(halfLifeTicks(r.dyeEnergy)) * dt
		quality := 0.0
		if r.ticks > 0 {
			quality = 1 - float64(r.saturated)/float64(r.ticks)
		}
		totalFitness += fe.computeFitness(x, half, quality)
		totalHalf += half
		totalQuality += quality
	}

	n := float64(len(results))
	fe.mu.Lock()
	fe.lastHalf = totalHalf / n
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return totalFitness / n
}

// computeFitness is the squared relative half-life error plus penalties for
// saturated velocity and solver cost.
func (fe *FitnessEvaluator) computeFitness(x []float64, half, quality float64) float64 {
	rel := (half - fe.target) / fe.target
	cfg := fe.baseConfig.Fluid
	fe.params.ApplyToConfig(&cfg, x)
	return weightHalfLife*rel*rel +
		weightSaturation*(1-quality) +
		weightIterations*float64(cfg.PressureIterations)
}

// runSimulation drags a pointer for dragTicks, releases it, and records dye
// energy while the fluid settles.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(&cfg.Fluid, x)

	clock := &stepClock{t: time.Unix(0, 0)}
	tracker := input.NewTracker()
	eng, err := engine.New(cfg, &engine.StaticSurface{W: fe.width, H: fe.height, Ratio: 1}, engine.Options{
		Logger:  fe.logger,
		Seed:    seed,
		Sources: []input.Source{tracker},
		Clock:   clock,
	})
	if err != nil {
		slog.Error("engine failed to start", "seed", seed, "error", err)
		return &runResult{}
	}
	defer eng.Stop()

	step := time.Duration(cfg.Derived.FrameDelay * float64(time.Second))
	orbit := input.Orbit{W: fe.width, H: fe.height, Radius: 0.3, Period: 1}
	result := &runResult{dyeEnergy: make([]float64, 0, fe.settleTick)}

	for i := 0; i < fe.dragTicks+fe.settleTick; i++ {
		clock.t = clock.t.Add(step)
		if i < fe.dragTicks {
			tracker.Update([]input.Contact{orbit.At(float64(i) * cfg.Derived.FrameDelay)})
		} else {
			tracker.Update(nil)
		}
		if err := eng.Frame(clock.t); err != nil {
			slog.Error("tick failed", "seed", seed, "tick", i, "error", err)
			break
		}

		st := eng.Stepper()
		result.ticks++
		if st.Velocity().Front().MaxAbs() >= velocityClamp*0.999 {
			result.saturated++
		}
		if i >= fe.dragTicks {
			result.dyeEnergy = append(result.dyeEnergy, float64(st.Dye().Front().Energy()))
		}
	}
	return result
}

// copyConfig returns a copy of the base config the run may modify.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	// Seeds already run in parallel.
	cfg.Device.Workers = 1
	return &cfg
}

// halfLifeTicks returns the number of ticks until energy falls to half its
// first sample, or len(energy) if it never does.
func halfLifeTicks(energy []float64) int {
	if len(energy) == 0 || energy[0] <= 0 {
		return 0
	}
	half := energy[0] / 2
	for i, e := range energy {
		if e <= half {
			return i
		}
	}
	return len(energy)
}
