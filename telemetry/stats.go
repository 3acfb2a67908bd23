package telemetry

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTime         float64 `csv:"sim_time"`

	// Population at window end
	Alive int `csv:"alive"`

	// Events during window
	Emitted  int `csv:"emitted"`
	Rejected int `csv:"rejected"`
	Killed   int `csv:"killed"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`

	// Shape of the population
	CenterX    float64 `csv:"com_x"`
	CenterY    float64 `csv:"com_y"`
	CenterZ    float64 `csv:"com_z"`
	Spread     float64 `csv:"spread"`   // mean distance from the centre of mass
	Momentum   float64 `csv:"momentum"` // magnitude of the mean velocity
	PerSpecies string  `csv:"species_counts"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution returns the population mean, standard deviation and
// percentiles of values. values is sorted in place.
func ComputeDistribution(values []float64) (mean, std, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, std = stat.PopMeanStdDev(values, nil)

	sort.Float64s(values)
	p10 = Percentile(values, 0.10)
	p50 = Percentile(values, 0.50)
	p90 = Percentile(values, 0.90)

	return mean, std, p10, p50, p90
}

func formatCounts(counts []int) string {
	var b strings.Builder
	for i, c := range counts {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(c))
	}
	return b.String()
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTime),
		slog.Int("alive", s.Alive),
		slog.Int("emitted", s.Emitted),
		slog.Int("rejected", s.Rejected),
		slog.Int("killed", s.Killed),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("com_x", s.CenterX),
		slog.Float64("com_y", s.CenterY),
		slog.Float64("com_z", s.CenterZ),
		slog.Float64("spread", s.Spread),
		slog.Float64("momentum", s.Momentum),
		slog.String("species_counts", s.PerSpecies),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTime,
		"alive", s.Alive,
		"emitted", s.Emitted,
		"rejected", s.Rejected,
		"killed", s.Killed,
		"speed_mean", s.SpeedMean,
		"speed_p50", s.SpeedP50,
		"speed_p90", s.SpeedP90,
		"spread", s.Spread,
		"momentum", s.Momentum,
		"species_counts", s.PerSpecies,
	)
}
