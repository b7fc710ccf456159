// Frame dump tool - runs the engine against a scripted drag and writes the
// final frame to a PNG file for inspection.
//
// Usage: go run ./cmd/framedump -ticks 120 -out frame.png
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/engine"
	"github.com/pthm-cable/splash/input"
	"github.com/pthm-cable/splash/telemetry"
)

// stepClock advances by exactly one frame delay per tick, so dumps do not
// depend on how fast the host runs.
type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time { return c.t }

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outPath := flag.String("out", "frame.png", "Output PNG path")
	width := flag.Int("width", 512, "Surface width")
	height := flag.Int("height", 512, "Surface height")
	ticks := flag.Int("ticks", 90, "Ticks with the pointer held down")
	settle := flag.Int("settle", 30, "Ticks after the pointer is released")
	seed := flag.Int64("seed", 1, "RNG seed (0 = snapshot seed or time-based)")
	snapshotPath := flag.String("snapshot", "", "Restore this snapshot before the drag")
	snapshotDir := flag.String("snapshot-dir", "", "Save a snapshot of the final state here")
	kernels := flag.Bool("kernels", false, "Print every compiled kernel listing")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("load config: %v", err)
	}

	var snap *telemetry.Snapshot
	if *snapshotPath != "" {
		if snap, err = telemetry.LoadSnapshot(*snapshotPath); err != nil {
			fail("load snapshot: %v", err)
		}
		if *seed == 0 {
			*seed = snap.RNGSeed
		}
	}

	clock := &stepClock{t: time.Unix(0, 0)}
	tracker := input.NewTracker()
	eng, err := engine.New(cfg, &engine.StaticSurface{W: *width, H: *height, Ratio: 1}, engine.Options{
		Logger:      logger,
		Seed:        *seed,
		Sources:     []input.Source{tracker},
		SnapshotDir: *snapshotDir,
		Clock:       clock,
	})
	if err != nil {
		fail("start engine: %v", err)
	}
	defer eng.Stop()

	if snap != nil {
		if err := eng.Restore(snap); err != nil {
			fail("restore snapshot: %v", err)
		}
	}

	if *kernels {
		for _, prog := range eng.Kernels() {
			fmt.Printf("// %s %s\n%s\n\n", prog.Kind(), prog.Flags(), prog.Listing())
		}
	}

	step := time.Duration(cfg.Derived.FrameDelay * float64(time.Second))
	orbit := input.Orbit{W: *width, H: *height, Radius: 0.3, Period: 2}
	for i := 0; i < *ticks+*settle; i++ {
		clock.t = clock.t.Add(step)
		if i < *ticks {
			tracker.Update([]input.Contact{orbit.At(float64(i) * cfg.Derived.FrameDelay)})
		} else {
			tracker.Update(nil)
		}
		if err := eng.Frame(clock.t); err != nil {
			fail("tick %d: %v", i, err)
		}
	}

	frame := eng.Output()
	if frame == nil {
		fail("no frame rendered")
	}
	img := rl.NewImageFromImage(frame.RGBA())
	success := rl.ExportImage(*img, *outPath)
	rl.UnloadImage(img)

	if !success {
		fail("failed to export image")
	}
	fmt.Printf("Frame written to: %s (%dx%d, tick %d)\n", *outPath, frame.W, frame.H, eng.Tick())
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
