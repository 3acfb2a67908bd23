package game

import "context"

// Update runs StepsPerUpdate ticks unless paused.
func (g *Game) Update(ctx context.Context) {
	if g.paused {
		return
	}
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.Step(ctx)
	}
}

// UpdateHeadless runs StepsPerUpdate ticks regardless of pause state.
func (g *Game) UpdateHeadless(ctx context.Context) {
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.Step(ctx)
	}
}

// Step runs exactly one tick and feeds its results to telemetry.
func (g *Game) Step(ctx context.Context) {
	g.sched.Step(ctx)
	g.tick = g.sched.Tick()

	st := g.sched.Stats()
	g.collector.RecordEmitted(st.TickEmitted)
	g.collector.RecordKilled(st.TickKilled)
	g.collector.RecordRejected(int(st.Rejected - g.lastRejected))
	g.lastRejected = st.Rejected

	g.pushFrame()
	g.flushTelemetry()
}

// RunTicks steps until n ticks have completed or ctx is cancelled.
func (g *Game) RunTicks(ctx context.Context, n int64) error {
	for g.tick < n {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.Step(ctx)
	}
	return nil
}
