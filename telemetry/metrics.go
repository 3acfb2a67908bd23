package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes scheduler counters and gauges to Prometheus.
// All methods are safe on a nil receiver.
type Metrics struct {
	gatherer prometheus.Gatherer

	Alive        prometheus.Gauge
	Pending      prometheus.Gauge
	Emitted      prometheus.Counter
	Rejected     prometheus.Counter
	Killed       prometheus.Counter
	Dispatches   prometheus.Counter
	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	StageSeconds *prometheus.HistogramVec
}

// NewMetrics registers the simulation metrics against reg
// (prometheus.DefaultRegisterer when nil). Registering twice reuses the
// existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{gatherer: gatherer}
	var err error

	if m.Alive, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ecosim_particles_alive",
		Help: "Live particles in the front buffer after the last tick.",
	}), "ecosim_particles_alive"); err != nil {
		return nil, err
	}
	if m.Pending, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ecosim_emissions_pending",
		Help: "Queued emissions waiting for the next tick.",
	}), "ecosim_emissions_pending"); err != nil {
		return nil, err
	}
	if m.Emitted, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecosim_particles_emitted_total",
		Help: "Particles moved from the emission queue into the simulation.",
	}), "ecosim_particles_emitted_total"); err != nil {
		return nil, err
	}
	if m.Rejected, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecosim_emissions_rejected_total",
		Help: "Emission requests rejected because the store was full.",
	}), "ecosim_emissions_rejected_total"); err != nil {
		return nil, err
	}
	if m.Killed, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecosim_particles_killed_total",
		Help: "Particles removed by the kill policy.",
	}), "ecosim_particles_killed_total"); err != nil {
		return nil, err
	}
	if m.Dispatches, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecosim_dispatches_total",
		Help: "Completed worker pool dispatches.",
	}), "ecosim_dispatches_total"); err != nil {
		return nil, err
	}
	if m.Ticks, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecosim_ticks_total",
		Help: "Completed simulation ticks.",
	}), "ecosim_ticks_total"); err != nil {
		return nil, err
	}
	if m.TickDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecosim_tick_duration_seconds",
		Help:    "Wall time of one simulation tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.05, 0.1, 0.25},
	}), "ecosim_tick_duration_seconds"); err != nil {
		return nil, err
	}

	stages := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ecosim_stage_duration_seconds",
		Help:    "Wall time of each pipeline stage.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"stage"})
	if err := reg.Register(stages); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("collector ecosim_stage_duration_seconds already registered with incompatible type")
		}
		stages = existing
	}
	m.StageSeconds = stages

	return m, nil
}

// Gatherer returns the gatherer the metrics were registered with.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetPopulation updates the alive and pending gauges.
func (m *Metrics) SetPopulation(alive, pending int) {
	if m == nil {
		return
	}
	m.Alive.Set(float64(alive))
	m.Pending.Set(float64(pending))
}

// AddEmitted counts drained emissions.
func (m *Metrics) AddEmitted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Emitted.Add(float64(n))
}

// IncRejected counts one rejected emission.
func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}

// AddKilled counts removed particles.
func (m *Metrics) AddKilled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Killed.Add(float64(n))
}

// IncDispatch counts one completed dispatch.
func (m *Metrics) IncDispatch() {
	if m == nil {
		return
	}
	m.Dispatches.Inc()
}

// ObserveTick records a finished tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.TickDuration.Observe(d.Seconds())
}

// ObserveStage records the duration of one stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
