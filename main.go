package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/engine"
	"github.com/pthm-cable/splash/input"
	"github.com/pthm-cable/splash/remote"
	"github.com/pthm-cable/splash/telemetry"
	"github.com/pthm-cable/splash/ui"
	"github.com/pthm-cable/splash/window"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without a window")
	drag := flag.Bool("drag", true, "Headless only: drive a scripted circular drag")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	httpAddr := flag.String("http-addr", "", "Serve /metrics and the /pointer WebSocket on this address (empty = off)")
	watch := flag.Bool("watch", true, "Reload -config when the file changes")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Use config stats window if not overridden by CLI
	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}

	output, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
	}

	opts := engine.Options{
		Logger:      logger,
		Seed:        *seed,
		Output:      output,
		LogStats:    *logStats,
		SnapshotDir: *snapshotDir,
		MaxTicks:    *maxTicks,
	}

	var mux *http.ServeMux
	if *httpAddr != "" {
		opts.Metrics = telemetry.NewMetrics()
		mux = http.NewServeMux()
		mux.Handle("/metrics", opts.Metrics.Handler())
		srv := &http.Server{
			Addr:         *httpAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server failed", "error", err)
			}
		}()
		defer srv.Close()
		slog.Info("serving http", "addr", *httpAddr)
	}

	var watcher *config.Watcher
	if *watch && *configPath != "" {
		watcher, err = config.NewWatcher(*configPath, logger)
		if err != nil {
			slog.Warn("config reload disabled", "error", err)
		}
	}

	if *headless {
		err = runHeadless(cfg, opts, mux, watcher, *drag)
	} else {
		err = runWindow(cfg, opts, mux, watcher)
	}
	if err != nil {
		slog.Error("engine failed", "error", err)
		os.Exit(1)
	}
}

// runHeadless ticks the engine on its own scheduler against a fixed-size
// surface until interrupted or max ticks.
func runHeadless(cfg *config.Config, opts engine.Options, mux *http.ServeMux, watcher *config.Watcher, drag bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	surface := &engine.StaticSurface{W: cfg.Screen.Width, H: cfg.Screen.Height, Ratio: 1}
	tracker := input.NewTracker()
	opts.Sources = append(opts.Sources, tracker)

	eng, err := engine.New(cfg, surface, opts)
	if err != nil {
		return err
	}
	defer eng.Stop()
	if mux != nil {
		defer attachRemote(mux, eng).Close()
	}

	slog.Info("starting headless simulation",
		"seed", eng.Seed(),
		"width", surface.W,
		"height", surface.H,
		"max_ticks", opts.MaxTicks,
		"drag", drag,
	)

	if drag {
		go driveOrbit(ctx, tracker, surface, cfg.Derived.FrameDelay)
	}
	if watcher != nil {
		go watchConfig(ctx, watcher, eng)
	}

	err = eng.Run(ctx)
	if ctx.Err() != nil {
		// Interrupted; a clean shutdown.
		return nil
	}
	return err
}

// driveOrbit feeds the tracker a circling drag at the frame rate.
func driveOrbit(ctx context.Context, tracker *input.Tracker, surface *engine.StaticSurface, delay float64) {
	orbit := input.Orbit{W: surface.W, H: surface.H, Radius: 0.3, Period: 4}
	ticker := time.NewTicker(time.Duration(delay * float64(time.Second)))
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			tracker.Update([]input.Contact{orbit.At(now.Sub(start).Seconds())})
		}
	}
}

// attachRemote serves remote pointers on mux/pointer and feeds them to eng.
func attachRemote(mux *http.ServeMux, eng *engine.Engine) *remote.Server {
	srv := remote.NewServer(eng, slog.Default())
	eng.Input().Attach(srv)
	mux.Handle("/pointer", srv)
	return srv
}

// watchConfig runs watcher and applies each reload until ctx ends.
func watchConfig(ctx context.Context, watcher *config.Watcher, eng *engine.Engine) {
	defer watcher.Close()
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("config watcher stopped", "error", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-watcher.Updates():
			if err := eng.UpdateConfig(next); err != nil {
				slog.Warn("config reload rejected", "error", err)
			}
		}
	}
}

// runWindow hosts the engine in a raylib window, ticking once per refresh.
func runWindow(cfg *config.Config, opts engine.Options, mux *http.ServeMux, watcher *config.Watcher) error {
	window.Open(cfg.Screen)
	defer window.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if watcher != nil {
		defer watcher.Close()
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
	}

	poller := window.NewPoller()
	opts.Sources = append(opts.Sources, poller)

	eng, err := engine.New(cfg, window.Surface{}, opts)
	if err != nil {
		return err
	}
	defer eng.Stop()
	if mux != nil {
		defer attachRemote(mux, eng).Close()
	}

	presenter := window.NewPresenter()
	defer presenter.Unload()

	hud := ui.NewHUD()
	controls := ui.NewControlsPanel(cfg, 10, 80, 260)
	perfPanel := ui.NewPerfPanel(0, 80, 300)
	showPerf := false

	for !window.ShouldClose() {
		if rl.IsKeyPressed(rl.KeyF11) {
			rl.ToggleFullscreen()
		}
		if rl.IsKeyPressed(rl.KeyTab) {
			controls.Toggle()
		}
		if rl.IsKeyPressed(rl.KeyP) {
			showPerf = !showPerf
		}
		for _, id := range controls.HandleKeys() {
			slog.Info("setting toggled", "setting", id)
		}

		if watcher != nil {
			select {
			case next := <-watcher.Updates():
				if err := eng.UpdateConfig(next); err != nil {
					slog.Warn("config reload rejected", "error", err)
				}
			default:
			}
		}

		// Clicks on the panel drive the sliders, not the fluid.
		if !controls.Contains(rl.GetMousePosition()) {
			poller.Poll()
		}

		if err := eng.Frame(time.Now()); err != nil {
			return err
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.Black)
		presenter.Draw(eng.Output())

		data := ui.HUDData{
			Title:    cfg.Screen.Title,
			Tick:     eng.Tick(),
			FPS:      rl.GetFPS(),
			Pointers: len(eng.Input().Pointers()),
			Dropped:  eng.Input().Dropped(),
		}
		if stepper := eng.Stepper(); stepper.Ready() {
			data.GridW, data.GridH = stepper.Velocity().Width(), stepper.Velocity().Height()
			data.Manual = stepper.ManualFiltering()
		}
		hud.Draw(data)
		controls.Draw()
		if showPerf {
			perfPanel.SetPosition(int32(rl.GetScreenWidth())-310, 80)
			perfPanel.Draw(eng.Stats())
		}
		hud.DrawControls(int32(rl.GetScreenHeight()), "[Tab] settings  [P] perf  [S] shading  [T] transparent  [H] hover  [R] rainbow  [F11] fullscreen")
		rl.EndDrawing()

		if opts.MaxTicks > 0 && eng.Tick() >= opts.MaxTicks {
			slog.Info("max ticks reached", "tick", eng.Tick())
			break
		}
	}
	return nil
}
