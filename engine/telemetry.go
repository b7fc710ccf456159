package engine

import (
	"fmt"

	"github.com/pthm-cable/splash/grid"
	"github.com/pthm-cable/splash/telemetry"
)

func fieldSample(b *grid.Buffer) telemetry.FieldSample {
	return telemetry.FieldSample{Energy: b.Energy(), Peak: b.MaxAbs()}
}

// sampleFields records this tick's velocity and dye state.
func (e *Engine) sampleFields(dt float32) {
	e.collector.Sample(dt,
		fieldSample(e.stepper.Velocity().Front()),
		fieldSample(e.stepper.Dye().Front()),
	)
	e.collector.RecordDropped(e.adapter.Dropped())
}

// flushTelemetry closes the stats window when it is due and routes the
// result to logs, CSV output and bookmarks.
func (e *Engine) flushTelemetry() {
	if !e.collector.ShouldFlush() {
		return
	}

	stats := e.collector.Flush(e.tick, len(e.adapter.Pointers()))
	perfStats := e.perf.Stats()

	if e.opts.LogStats {
		stats.LogStats(e.logger)
		perfStats.LogStats(e.logger)
	}

	if e.opts.Metrics != nil {
		e.opts.Metrics.Observe(stats, perfStats)
	}

	if err := e.opts.Output.WriteFields(stats); err != nil {
		e.logger.Error("failed to write fields", "error", err)
	}
	if err := e.opts.Output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		e.logger.Error("failed to write perf", "error", err)
	}

	for _, bm := range e.bookmarks.Check(stats) {
		if e.opts.LogStats {
			bm.LogBookmark(e.logger)
		}
		if err := e.opts.Output.WriteBookmark(bm); err != nil {
			e.logger.Error("failed to write bookmark", "error", err)
		}
		if e.opts.SnapshotDir != "" {
			e.saveSnapshot(&bm)
		}
	}
}

// Snapshot captures the current velocity and dye fields.
func (e *Engine) Snapshot() *telemetry.Snapshot {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	return e.snapshot(nil)
}

func (e *Engine) snapshot(bm *telemetry.Bookmark) *telemetry.Snapshot {
	if !e.stepper.Ready() {
		return nil
	}
	return &telemetry.Snapshot{
		Version:       telemetry.SnapshotVersion,
		RunID:         e.runID,
		RNGSeed:       e.seed,
		Tick:          e.tick,
		SurfaceWidth:  e.width,
		SurfaceHeight: e.height,
		Velocity:      telemetry.CaptureGrid(e.stepper.Velocity().Front()),
		Dye:           telemetry.CaptureGrid(e.stepper.Dye().Front()),
		Bookmark:      bm,
	}
}

func (e *Engine) saveSnapshot(bm *telemetry.Bookmark) {
	snap := e.snapshot(bm)
	if snap == nil {
		return
	}
	path, err := telemetry.SaveSnapshot(snap, e.opts.SnapshotDir)
	if err != nil {
		e.logger.Error("failed to save snapshot", "error", err)
		return
	}
	e.logger.Info("snapshot saved", "path", path, "tick", e.tick)
}

// Restore loads a snapshot's fields into the live grids. Grids of a
// different size are resampled through the copy kernel.
func (e *Engine) Restore(snap *telemetry.Snapshot) error {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	if !e.active.Load() {
		return ErrStopped
	}
	if !e.stepper.Ready() {
		return fmt.Errorf("restore: grids not allocated")
	}

	fields := []struct {
		name  string
		state telemetry.GridState
		dst   *grid.Double
	}{
		{"velocity", snap.Velocity, e.stepper.Velocity()},
		{"dye", snap.Dye, e.stepper.Dye()},
	}
	for _, f := range fields {
		if err := e.restoreGrid(f.state, f.dst); err != nil {
			return fmt.Errorf("restore %s: %w", f.name, err)
		}
	}
	e.logger.Info("snapshot restored", "tick", snap.Tick, "seed", snap.RNGSeed)
	return nil
}

func (e *Engine) restoreGrid(state telemetry.GridState, dst *grid.Double) error {
	front := dst.Front()
	if state.Width == front.Width && state.Height == front.Height {
		return state.RestoreInto(front)
	}

	tmp, err := e.mgr.Create(state.Width, state.Height, front.Format, grid.FilterLinear)
	if err != nil {
		return err
	}
	defer e.mgr.Release(tmp)
	if err := state.RestoreInto(tmp); err != nil {
		return err
	}
	return e.stepper.Resample(tmp, front)
}
