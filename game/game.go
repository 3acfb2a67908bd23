// Package game wires the scheduler to its collaborators: emitters from the
// config, telemetry, bookmarks and snapshots, metrics and the frame stream.
// It has no rendering dependencies; front ends drive it through Update.
package game

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm-cable/ecosim/components"
	"github.com/pthm-cable/ecosim/config"
	"github.com/pthm-cable/ecosim/sim"
	"github.com/pthm-cable/ecosim/stream"
	"github.com/pthm-cable/ecosim/telemetry"
)

// Options are run settings that do not belong in the config file.
type Options struct {
	Seed           int64
	Preset         string
	LogStats       bool
	OutputDir      string
	SnapshotDir    string // empty = OutputDir/snapshots when OutputDir is set
	ResumePath     string
	StepsPerUpdate int

	// Registry receives the Prometheus collectors. nil skips metrics unless
	// the config enables the endpoint, in which case a fresh registry is used.
	Registry prometheus.Registerer
}

// Game holds one running simulation and everything observing it.
type Game struct {
	cfg   *config.Config
	sched *sim.Scheduler

	rngSeed int64
	preset  string

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	outputManager    *telemetry.OutputManager
	bookmarkDetector *telemetry.BookmarkDetector
	metrics          *telemetry.Metrics
	snapshotDir      string
	logStats         bool
	statsCallback    func(telemetry.WindowStats)
	lastRejected     int64
	lastStats        telemetry.WindowStats

	// Serving
	hub      *stream.Hub
	servers  []*server
	pushEach int64

	// State
	tick           int64
	resumedFrom    int64
	paused         bool
	stepsPerUpdate int
	frame          []components.Particle
}

// NewGameWithOptions builds a game from cfg.
func NewGameWithOptions(cfg *config.Config, opts Options) (*Game, error) {
	sched, err := sim.New(cfg.SimOptions(), cfg.Ecosystem())
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	g := &Game{
		cfg:              cfg,
		sched:            sched,
		rngSeed:          opts.Seed,
		preset:           opts.Preset,
		collector:        telemetry.NewCollector(int64(cfg.Telemetry.StatsWindowTicks), cfg.Derived.DT32),
		perfCollector:    telemetry.NewPerfCollector(cfg.Telemetry.PerfWindowTicks),
		bookmarkDetector: telemetry.NewBookmarkDetector(10),
		logStats:         opts.LogStats || cfg.Telemetry.LogStats,
		stepsPerUpdate:   max(opts.StepsPerUpdate, 1),
		snapshotDir:      opts.SnapshotDir,
	}

	sched.SetKillPolicy(cfg.KillPolicy())
	sched.SetPerf(g.perfCollector)

	if err := g.seedEmitters(opts.ResumePath); err != nil {
		sched.Close()
		return nil, err
	}

	if err := g.initOutput(opts.OutputDir); err != nil {
		sched.Close()
		return nil, err
	}

	if err := g.initServing(opts.Registry); err != nil {
		g.Unload()
		return nil, err
	}

	return g, nil
}

// seedEmitters registers the config emitters, replacing the initial burst
// with the snapshot contents when resuming.
func (g *Game) seedEmitters(resumePath string) error {
	cfg := g.cfg
	if resumePath == "" {
		for _, e := range cfg.Emitters(g.rngSeed) {
			g.sched.AddEmitter(e)
		}
		return nil
	}

	snap, err := telemetry.LoadSnapshot(resumePath)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	g.sched.AddEmitter(sim.Fixed(snap.ToParticles()))

	streamOnly := *cfg
	streamOnly.Emitter.Initial = 0
	for _, e := range streamOnly.Emitters(g.rngSeed) {
		g.sched.AddEmitter(e)
	}
	g.resumedFrom = snap.Tick

	slog.Info("resuming snapshot",
		"path", resumePath,
		"tick", snap.Tick,
		"particles", len(snap.Particles),
		"preset", snap.Preset,
	)
	return nil
}

func (g *Game) initOutput(dir string) error {
	om, err := telemetry.NewOutputManager(dir)
	if err != nil {
		return err
	}
	g.outputManager = om
	if om == nil {
		return nil
	}
	if err := om.WriteConfig(g.cfg); err != nil {
		om.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if g.snapshotDir == "" {
		g.snapshotDir = om.SnapshotDir()
	}
	return nil
}

// SetStatsCallback registers fn to receive every flushed stats window.
func (g *Game) SetStatsCallback(fn func(telemetry.WindowStats)) { g.statsCallback = fn }

// Tick returns the number of completed ticks.
func (g *Game) Tick() int64 { return g.tick }

// ResumedFrom returns the snapshot tick the run started from.
func (g *Game) ResumedFrom() int64 { return g.resumedFrom }

// Scheduler exposes the scheduler.
func (g *Game) Scheduler() *sim.Scheduler { return g.sched }

// Config returns the run configuration.
func (g *Game) Config() *config.Config { return g.cfg }

// Preset returns the preset name the config was built from.
func (g *Game) Preset() string { return g.preset }

// Seed returns the RNG seed.
func (g *Game) Seed() int64 { return g.rngSeed }

// Paused reports whether Update is a no-op.
func (g *Game) Paused() bool { return g.paused }

// TogglePause flips the pause state.
func (g *Game) TogglePause() { g.paused = !g.paused }

// StepsPerUpdate returns ticks run per Update call.
func (g *Game) StepsPerUpdate() int { return g.stepsPerUpdate }

// SetStepsPerUpdate clamps n to [1, 32].
func (g *Game) SetStepsPerUpdate(n int) { g.stepsPerUpdate = min(max(n, 1), 32) }

// LastStats returns the most recent stats window.
func (g *Game) LastStats() telemetry.WindowStats { return g.lastStats }

// Perf returns the rolling stage timings.
func (g *Game) Perf() telemetry.PerfStats { return g.perfCollector.Stats() }

// RecordFrame marks a rendered frame for the perf panel.
func (g *Game) RecordFrame() { g.perfCollector.RecordFrame() }

// Metrics returns the Prometheus metrics, or nil when disabled.
func (g *Game) Metrics() *telemetry.Metrics { return g.metrics }

// StreamClients returns the connected viewer count.
func (g *Game) StreamClients() int {
	if g.hub == nil {
		return 0
	}
	return g.hub.Clients()
}

// Frame copies the last published frame into the game's buffer and returns
// it. The slice is reused by the next call.
func (g *Game) Frame() ([]components.Particle, int64) {
	var tick int64
	g.frame, tick = g.sched.Snapshot(g.frame)
	return g.frame, tick
}
