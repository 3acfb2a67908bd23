package game

import (
	"log/slog"

	"github.com/pthm-cable/ecosim/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	frame, _ := g.Frame()
	stats := g.collector.Flush(g.tick, frame, len(g.cfg.Species))
	perfStats := g.perfCollector.Stats()
	g.lastStats = stats

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if g.outputManager != nil {
		if err := g.outputManager.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	for _, bm := range g.bookmarkDetector.Check(stats) {
		if g.logStats {
			bm.LogBookmark()
		}

		if g.outputManager != nil {
			if err := g.outputManager.WriteBookmark(bm); err != nil {
				slog.Error("failed to write bookmark", "error", err)
			}
		}

		if g.snapshotDir != "" {
			g.saveSnapshot(&bm)
		}
	}
}

// SaveSnapshot writes the current frame to the snapshot directory.
func (g *Game) SaveSnapshot() (string, error) {
	return telemetry.SaveSnapshot(g.createSnapshot(nil), g.snapshotDirOrDefault())
}

func (g *Game) snapshotDirOrDefault() string {
	if g.snapshotDir != "" {
		return g.snapshotDir
	}
	return "snapshots"
}

// saveSnapshot creates and saves a snapshot to disk.
func (g *Game) saveSnapshot(bookmark *telemetry.Bookmark) {
	path, err := telemetry.SaveSnapshot(g.createSnapshot(bookmark), g.snapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}

	slog.Info("snapshot saved", "path", path, "tick", g.tick)
}

// createSnapshot builds a snapshot from the last published frame.
func (g *Game) createSnapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	frame, tick := g.Frame()
	snap := telemetry.NewSnapshot(g.resumedFrom+tick, g.rngSeed, g.preset, frame)
	snap.Bookmark = bookmark
	return snap
}
