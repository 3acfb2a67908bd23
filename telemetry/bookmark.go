package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkSpeedSpike      BookmarkType = "speed_spike"
	BookmarkSaturated       BookmarkType = "saturated"
	BookmarkPopulationCrash BookmarkType = "population_crash"
	BookmarkCollapse        BookmarkType = "collapse"
	BookmarkSteadyState     BookmarkType = "steady_state"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        int64        `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	peakAlive     int
	saturated     bool
	steadyWindows int
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for steady state detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		for _, check := range []func(WindowStats) *Bookmark{
			bd.checkSpeedSpike,
			bd.checkSaturated,
			bd.checkPopulationCrash,
			bd.checkCollapse,
			bd.checkSteadyState,
		} {
			if b := check(stats); b != nil {
				bookmarks = append(bookmarks, *b)
			}
		}
	}

	bd.addToHistory(stats)

	if stats.Alive > bd.peakAlive {
		bd.peakAlive = stats.Alive
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// checkSpeedSpike fires when mean speed exceeds twice the rolling average.
func (bd *BookmarkDetector) checkSpeedSpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.SpeedMean
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.SpeedMean > avg*2.0 {
		return &Bookmark{
			Type:        BookmarkSpeedSpike,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Mean speed %.4f is %.1fx average (%.4f)", stats.SpeedMean, stats.SpeedMean/avg, avg),
		}
	}
	return nil
}

// checkSaturated fires once when emissions start being rejected.
func (bd *BookmarkDetector) checkSaturated(stats WindowStats) *Bookmark {
	if stats.Rejected == 0 {
		bd.saturated = false
		return nil
	}
	if bd.saturated {
		return nil
	}
	bd.saturated = true
	return &Bookmark{
		Type:        BookmarkSaturated,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Store full at %d particles, %d emissions rejected", stats.Alive, stats.Rejected),
	}
}

// checkPopulationCrash fires when the population drops >30% from its peak.
func (bd *BookmarkDetector) checkPopulationCrash(stats WindowStats) *Bookmark {
	if bd.peakAlive == 0 {
		return nil
	}

	drop := 1.0 - float64(stats.Alive)/float64(bd.peakAlive)
	if drop > 0.30 && stats.Alive < bd.peakAlive-10 {
		oldPeak := bd.peakAlive
		bd.peakAlive = stats.Alive

		return &Bookmark{
			Type:        BookmarkPopulationCrash,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Population dropped %.0f%% from peak %d to %d", drop*100, oldPeak, stats.Alive),
		}
	}
	return nil
}

// checkCollapse fires when the spread shrinks below half the rolling average.
func (bd *BookmarkDetector) checkCollapse(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 || stats.Alive < 2 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.Spread
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.Spread < avg*0.5 {
		return &Bookmark{
			Type:        BookmarkCollapse,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Spread %.3f fell below half the average (%.3f)", stats.Spread, avg),
		}
	}
	return nil
}

// checkSteadyState fires once after five windows of low variance in both
// population and mean speed.
func (bd *BookmarkDetector) checkSteadyState(stats WindowStats) *Bookmark {
	if stats.Alive < 10 {
		bd.steadyWindows = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	recent := history[len(history)-4:]
	alive := make([]float64, len(recent))
	speed := make([]float64, len(recent))
	for i, h := range recent {
		alive[i] = float64(h.Alive)
		speed[i] = h.SpeedMean
	}

	if lowVariation(alive) && lowVariation(speed) {
		bd.steadyWindows++
	} else {
		bd.steadyWindows = 0
	}

	if bd.steadyWindows == 5 {
		return &Bookmark{
			Type:        BookmarkSteadyState,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Steady state with %d particles over 5+ windows", stats.Alive),
		}
	}
	return nil
}

// lowVariation reports a coefficient of variation below 20%.
func lowVariation(xs []float64) bool {
	mean, std := stat.PopMeanStdDev(xs, nil)
	if mean == 0 {
		return std == 0
	}
	cv := std / mean
	return cv < 0.2
}
