package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/ecosim/config"
	"github.com/pthm-cable/ecosim/game"
	"github.com/pthm-cable/ecosim/telemetry"
	"github.com/pthm-cable/ecosim/viewer"
)

// cliFlags holds the parsed command line.
type cliFlags struct {
	configPath     string
	preset         string
	headless       bool
	term           bool
	logStats       bool
	statsWindow    int
	snapshotDir    string
	outputDir      string
	resume         string
	seed           int64
	maxTicks       int64
	stepsPerUpdate int
	metricsAddr    string
	streamAddr     string
}

func main() {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	flag.StringVar(&f.preset, "preset", "", fmt.Sprintf("Named preset layered under -config %v", config.Presets()))
	flag.BoolVar(&f.headless, "headless", false, "Run without graphics")
	flag.BoolVar(&f.term, "tui", false, "Render a density view in the terminal")
	flag.BoolVar(&f.logStats, "log-stats", false, "Output stats via slog")
	flag.IntVar(&f.statsWindow, "stats-window", 0, "Stats window size in ticks (0 = use config)")
	flag.StringVar(&f.snapshotDir, "snapshot-dir", "", "Directory for snapshot files")
	flag.StringVar(&f.outputDir, "output-dir", "", "Output directory for CSV logs and config snapshot")
	flag.StringVar(&f.resume, "resume", "", "Snapshot file to resume from")
	flag.Int64Var(&f.seed, "seed", 0, "RNG seed (0 = config seed)")
	flag.Int64Var(&f.maxTicks, "max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	flag.IntVar(&f.stepsPerUpdate, "steps-per-update", 1, "Simulation ticks per update call (higher = faster headless runs)")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.StringVar(&f.streamAddr, "stream-addr", "", "Serve the websocket frame stream on this address")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	os.Exit(run(f))
}

// run returns the process exit code once every deferred shutdown has run.
func run(f cliFlags) int {
	cfg, err := config.LoadWithPreset(f.preset, f.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if f.statsWindow > 0 {
		cfg.Telemetry.StatsWindowTicks = f.statsWindow
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = f.metricsAddr
	}
	if f.streamAddr != "" {
		cfg.Stream.Enabled = true
		cfg.Stream.Addr = f.streamAddr
	}

	rngSeed := f.seed
	if rngSeed == 0 {
		rngSeed = cfg.Simulation.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		slog.Error("failed to init tracing", "error", err)
		return 1
	}
	defer telemetry.ShutdownWithTimeout(context.Background(), shutdownTracing)

	opts := game.Options{
		Seed:           rngSeed,
		Preset:         f.preset,
		LogStats:       f.logStats,
		SnapshotDir:    f.snapshotDir,
		OutputDir:      f.outputDir,
		ResumePath:     f.resume,
		StepsPerUpdate: f.stepsPerUpdate,
	}

	switch {
	case f.headless:
		err = runHeadless(ctx, cfg, opts, f.maxTicks)
	case f.term:
		err = runTerminal(ctx, cfg, opts, f.maxTicks)
	default:
		err = runGraphical(ctx, cfg, opts, f.maxTicks)
	}
	if err != nil {
		slog.Error("run failed", "error", err)
		return 1
	}
	return 0
}

// runHeadless is pure CPU simulation; no raylib or terminal needed.
func runHeadless(ctx context.Context, cfg *config.Config, opts game.Options, maxTicks int64) error {
	g, err := game.NewGameWithOptions(cfg, opts)
	if err != nil {
		return err
	}
	defer g.Unload()

	slog.Info("starting headless simulation",
		"seed", opts.Seed,
		"preset", opts.Preset,
		"workers", g.Scheduler().Workers(),
		"max_ticks", maxTicks,
		"steps_per_update", opts.StepsPerUpdate,
	)

	for ctx.Err() == nil {
		g.UpdateHeadless(ctx)

		if maxTicks > 0 && g.Tick() >= maxTicks {
			slog.Info("max ticks reached", "tick", g.Tick())
			return nil
		}
	}
	slog.Info("interrupted", "tick", g.Tick())
	return nil
}

func runGraphical(ctx context.Context, cfg *config.Config, opts game.Options, maxTicks int64) error {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "ecosim")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	g, err := game.NewGameWithOptions(cfg, opts)
	if err != nil {
		return err
	}
	defer g.Unload()

	viewer.New(g).Run(ctx, maxTicks)
	return nil
}
