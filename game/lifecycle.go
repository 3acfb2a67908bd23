package game

import "log/slog"

// Unload stops servers and workers and closes output files. It writes a
// final snapshot when a snapshot directory is configured.
func (g *Game) Unload() {
	if g.snapshotDir != "" && g.tick > 0 {
		g.saveSnapshot(nil)
	}

	g.stopServing()
	g.sched.Close()

	if err := g.outputManager.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
}
