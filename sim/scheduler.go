package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pthm-cable/ecosim/components"
	"github.com/pthm-cable/ecosim/parallel"
	"github.com/pthm-cable/ecosim/particles"
	"github.com/pthm-cable/ecosim/systems"
	"github.com/pthm-cable/ecosim/telemetry"
)

// Stats are cumulative scheduler counters.
type Stats struct {
	Tick     int64
	Alive    int
	Pending  int
	Emitted  int64
	Rejected int64
	Killed   int64

	// Last tick only.
	TickEmitted int
	TickKilled  int
}

// Frame is the published result of one tick.
type Frame struct {
	Tick      int64
	Particles []components.Particle
}

// Scheduler runs the per-tick pipeline. Step, SetEcosystem and the Set*
// methods belong to the simulation goroutine; TryEmit, Published and
// Snapshot may be called from any goroutine.
type Scheduler struct {
	opts   Options
	eco    *systems.Ecosystem
	store  *particles.Store
	runner parallel.Runner
	pool   *parallel.Pool

	index         systems.Index
	collisionGrid *systems.HashedGrid
	ranges        [][]systems.ChunkLocation // per worker neighbor scratch

	kill     KillPolicy
	emitters []Emitter

	stage Stage
	tick  int64
	stats Stats

	rejected atomic.Int64

	pubMu     sync.RWMutex
	published Frame

	perf      *telemetry.PerfCollector
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	stageHook func(Stage)
}

// New validates opts against eco and builds a scheduler. A cell size that
// cannot cover the ecosystem's social range is rejected here rather than
// under-sampling neighbors at runtime.
func New(opts Options, eco *systems.Ecosystem) (*Scheduler, error) {
	if eco == nil {
		return nil, fmt.Errorf("nil ecosystem")
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if err := eco.Validate(); err != nil {
		return nil, fmt.Errorf("ecosystem: %w", err)
	}
	if err := opts.checkCoverage(eco); err != nil {
		return nil, err
	}

	s := &Scheduler{
		opts:   opts,
		eco:    eco,
		store:  particles.NewStore(opts.Capacity),
		runner: parallel.Serial{},
		kill:   Never{},
		tracer: otel.Tracer(telemetry.TracerName),
	}

	if opts.Parallel {
		s.pool = parallel.NewPool(opts.Workers)
		s.runner = s.pool
	}

	s.ranges = make([][]systems.ChunkLocation, s.runner.NumWorkers())
	for w := range s.ranges {
		s.ranges[w] = make([]systems.ChunkLocation, 0, systems.MaxNeighborChunks)
	}

	switch opts.Strategy {
	case StrategyDense:
		s.index = systems.NewDenseGrid(opts.GridSide, opts.CellSize)
	case StrategyHashed:
		s.index = systems.NewHashedGrid(opts.CellSize)
		if opts.CollisionMode == CollisionChunked && opts.collisionCell() != opts.CellSize {
			s.collisionGrid = systems.NewHashedGrid(opts.collisionCell())
		}
	}

	return s, nil
}

// Close stops the worker pool.
func (s *Scheduler) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Options returns the normalized options.
func (s *Scheduler) Options() Options { return s.opts }

// Ecosystem returns the active model.
func (s *Scheduler) Ecosystem() *systems.Ecosystem { return s.eco }

// Store exposes the particle store.
func (s *Scheduler) Store() *particles.Store { return s.store }

// Stage returns the stage in progress, or StageIdle between ticks.
func (s *Scheduler) Stage() Stage { return s.stage }

// Tick returns the number of completed ticks.
func (s *Scheduler) Tick() int64 { return s.tick }

// Workers returns how many goroutines a stage is split across.
func (s *Scheduler) Workers() int { return s.runner.NumWorkers() }

// SetEcosystem swaps the model between ticks.
func (s *Scheduler) SetEcosystem(eco *systems.Ecosystem) error {
	if s.stage != StageIdle {
		return fmt.Errorf("ecosystem swap during %s", s.stage)
	}
	if err := eco.Validate(); err != nil {
		return fmt.Errorf("ecosystem: %w", err)
	}
	if err := s.opts.checkCoverage(eco); err != nil {
		return err
	}
	s.eco = eco
	return nil
}

// CheckCoverage reports whether the running index could serve eco.
func (s *Scheduler) CheckCoverage(eco *systems.Ecosystem) error {
	return s.opts.checkCoverage(eco)
}

// SetKillPolicy replaces the kill policy; nil keeps every particle.
func (s *Scheduler) SetKillPolicy(k KillPolicy) {
	if k == nil {
		k = Never{}
	}
	s.kill = k
}

// AddEmitter registers an emitter polled at the start of each Emit stage.
func (s *Scheduler) AddEmitter(e Emitter) {
	s.emitters = append(s.emitters, e)
}

// SetPerf attaches a phase timer.
func (s *Scheduler) SetPerf(p *telemetry.PerfCollector) { s.perf = p }

// SetMetrics attaches Prometheus metrics and counts pool dispatches.
func (s *Scheduler) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
	if s.pool != nil {
		s.pool.Dispatcher().SetOnComplete(m.IncDispatch)
	}
}

// SetTracer overrides the tracer taken from the global provider.
func (s *Scheduler) SetTracer(t trace.Tracer) { s.tracer = t }

// SetStageHook registers fn to be called as each stage begins.
func (s *Scheduler) SetStageHook(fn func(Stage)) { s.stageHook = fn }

// TryEmit queues p for the next Emit stage. It returns false when the store
// is full; the rejection is counted.
func (s *Scheduler) TryEmit(p components.Particle) bool {
	if s.store.TryEmit(p) {
		return true
	}
	s.rejected.Add(1)
	s.metrics.IncRejected()
	return false
}

// Stats returns cumulative counters.
func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Tick = s.tick
	st.Alive = s.store.Alive()
	st.Pending = s.store.Pending()
	st.Rejected = s.rejected.Load()
	return st
}

// Step runs one full tick, driving the stage machine from Kill to Publish.
func (s *Scheduler) Step(ctx context.Context) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "tick", trace.WithAttributes(
		attribute.Int64("tick", s.tick),
	))
	defer span.End()

	if s.perf != nil {
		s.perf.StartTick()
	}

	indexed := s.index != nil
	for st := next(StageIdle, indexed); st != StageIdle; st = next(st, indexed) {
		s.stage = st
		s.runStage(ctx, st)
	}
	s.stage = StageIdle
	s.tick++

	if s.perf != nil {
		s.perf.EndTick()
	}
	s.metrics.ObserveTick(time.Since(start))
	s.metrics.SetPopulation(s.store.Alive(), s.store.Pending())
	span.SetAttributes(attribute.Int("alive", s.store.Alive()))
}

func (s *Scheduler) runStage(ctx context.Context, st Stage) {
	if s.stageHook != nil {
		s.stageHook(st)
	}
	if s.perf != nil {
		s.perf.StartPhase(st.String())
	}
	_, span := s.tracer.Start(ctx, st.String())
	start := time.Now()

	switch st {
	case StageKill:
		s.killStage()
	case StageEmit:
		s.emitStage()
	case StageIntegrate:
		s.integrateStage()
	case StageRebuildIndex:
		s.rebuildStage()
	case StageResolveCollisions:
		s.collisionStage()
	case StageApplySocialForces:
		s.socialStage()
	case StageApplyGlobalForces:
		s.globalStage()
	case StagePublish:
		s.publishStage()
	}

	s.metrics.ObserveStage(st.String(), time.Since(start))
	span.End()
}

func (s *Scheduler) killStage() {
	n := s.store.CompactRemove(s.kill.ShouldKill)
	s.stats.TickKilled = n
	s.stats.Killed += int64(n)
	s.metrics.AddKilled(n)
}

func (s *Scheduler) emitStage() {
	for _, e := range s.emitters {
		e.Emit(s.tick, s.TryEmit)
	}
	n := s.store.DrainEmissions()
	s.stats.TickEmitted = n
	s.stats.Emitted += int64(n)
	s.metrics.AddEmitted(n)
}

func (s *Scheduler) integrateStage() {
	front := s.store.Front()
	dt := s.opts.DT
	s.runner.Run(len(front), func(_, start, end int) {
		for i := start; i < end; i++ {
			systems.Integrate(&front[i], dt)
		}
	})
}

// rebuildStage sorts front into back by chunk and promotes the sorted copy.
func (s *Scheduler) rebuildStage() {
	layout := s.index.Build(s.runner, s.store.Front(), s.store.Back())
	s.store.SwapBuffers()
	layout.Promote()
}

// collisionIndex returns the index collisions query, or nil for brute force.
func (s *Scheduler) collisionIndex() systems.Index {
	if s.opts.CollisionMode == CollisionBrute || s.index == nil {
		return nil
	}
	if s.collisionGrid != nil {
		s.collisionGrid.Build(s.runner, s.store.Front(), nil)
		return s.collisionGrid
	}
	return s.index
}

// layoutSource maps chunk-sorted slots back to front indices.
func layoutSource(idx systems.Index) []int32 {
	if idx == nil {
		return nil
	}
	return idx.Layout().Source
}

// collisionStage reads front and writes each particle's own slot of back.
// Neighbors are always read from front by index, never written.
func (s *Scheduler) collisionStage() {
	eco := s.eco
	if eco.MaxCollisionDiameter() == 0 {
		return
	}
	front, back := s.store.Front(), s.store.Back()
	dt := s.opts.DT
	idx := s.collisionIndex()
	source := layoutSource(idx)

	s.runner.Run(len(front), func(w, start, end int) {
		ranges := s.ranges[w]
		for i := start; i < end; i++ {
			p := front[i]
			var dv components.Vec3
			if idx != nil {
				ranges = idx.NeighborRanges(p.Position, ranges[:0])
				for _, loc := range ranges {
					for slot := loc.Start; slot < loc.End; slot++ {
						if j := int(source[slot]); j != i {
							o := &front[j]
							dv = dv.Add(eco.ResolveCollision(p.Position, p.Species, o.Position, o.Species, dt))
						}
					}
				}
			} else {
				for j := range front {
					if j != i {
						o := &front[j]
						dv = dv.Add(eco.ResolveCollision(p.Position, p.Species, o.Position, o.Species, dt))
					}
				}
			}
			p.Velocity = p.Velocity.Add(dv)
			back[i] = p
		}
		s.ranges[w] = ranges
	})
	s.store.SwapBuffers()
}

// socialStage averages every in-range contribution before applying it.
func (s *Scheduler) socialStage() {
	eco := s.eco
	front, back := s.store.Front(), s.store.Back()
	dt := s.opts.DT
	idx := s.index
	source := layoutSource(idx)

	s.runner.Run(len(front), func(w, start, end int) {
		ranges := s.ranges[w]
		for i := start; i < end; i++ {
			p := front[i]
			var sum components.Vec3
			count := 0
			if idx != nil {
				ranges = idx.NeighborRanges(p.Position, ranges[:0])
				for _, loc := range ranges {
					for slot := loc.Start; slot < loc.End; slot++ {
						j := int(source[slot])
						if j == i {
							continue
						}
						o := &front[j]
						if f, ok := eco.AccumulateSocial(p.Position, p.Species, o.Position, o.Species); ok {
							sum = sum.Add(f)
							count++
						}
					}
				}
			} else {
				for j := range front {
					if j == i {
						continue
					}
					o := &front[j]
					if f, ok := eco.AccumulateSocial(p.Position, p.Species, o.Position, o.Species); ok {
						sum = sum.Add(f)
						count++
					}
				}
			}
			if count > 0 {
				p.Velocity = p.Velocity.Add(sum.Scale(dt / float32(count)))
			}
			back[i] = p
		}
		s.ranges[w] = ranges
	})
	s.store.SwapBuffers()
}

func (s *Scheduler) globalStage() {
	eco := s.eco
	front := s.store.Front()
	dt := s.opts.DT
	s.runner.Run(len(front), func(_, start, end int) {
		for i := start; i < end; i++ {
			eco.ApplyGlobal(&front[i], dt)
		}
	})
}

func (s *Scheduler) publishStage() {
	front := s.store.Front()
	s.pubMu.Lock()
	s.published.Particles = append(s.published.Particles[:0], front...)
	s.published.Tick = s.tick + 1
	s.pubMu.Unlock()
}

// Published calls fn with the last published frame under a read lock. fn
// must not retain the slice.
func (s *Scheduler) Published(fn func(Frame)) {
	s.pubMu.RLock()
	defer s.pubMu.RUnlock()
	fn(s.published)
}

// Snapshot copies the last published frame into dst and returns it with the
// tick it was published on.
func (s *Scheduler) Snapshot(dst []components.Particle) ([]components.Particle, int64) {
	s.pubMu.RLock()
	defer s.pubMu.RUnlock()
	dst = append(dst[:0], s.published.Particles...)
	return dst, s.published.Tick
}
