package telemetry

import "testing"

func hasBookmark(bms []Bookmark, typ BookmarkType) bool {
	for _, bm := range bms {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_SpeedSpike(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: int64(i * 600), Alive: 100, SpeedMean: 0.01, Spread: 1})
	}

	bms := bd.Check(WindowStats{WindowEndTick: 3000, Alive: 100, SpeedMean: 0.05, Spread: 1})
	if !hasBookmark(bms, BookmarkSpeedSpike) {
		t.Errorf("expected speed_spike bookmark, got %v", bms)
	}
}

func TestBookmarkDetector_PopulationCrash(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: int64(i * 600), Alive: 100, Spread: 1})
	}

	bms := bd.Check(WindowStats{WindowEndTick: 3000, Alive: 50, Spread: 1})
	if !hasBookmark(bms, BookmarkPopulationCrash) {
		t.Errorf("expected population_crash bookmark, got %v", bms)
	}

	// peak resets after triggering
	bms = bd.Check(WindowStats{WindowEndTick: 3600, Alive: 48, Spread: 1})
	if hasBookmark(bms, BookmarkPopulationCrash) {
		t.Error("population_crash fired twice for one drop")
	}
}

func TestBookmarkDetector_SaturatedOnce(t *testing.T) {
	bd := NewBookmarkDetector(10)
	bd.Check(WindowStats{Alive: 10})

	if bms := bd.Check(WindowStats{WindowEndTick: 600, Alive: 10, Rejected: 3}); !hasBookmark(bms, BookmarkSaturated) {
		t.Errorf("expected saturated bookmark, got %v", bms)
	}
	if bms := bd.Check(WindowStats{WindowEndTick: 1200, Alive: 10, Rejected: 5}); hasBookmark(bms, BookmarkSaturated) {
		t.Error("saturated fired while still saturated")
	}
	bd.Check(WindowStats{WindowEndTick: 1800, Alive: 10})
	if bms := bd.Check(WindowStats{WindowEndTick: 2400, Alive: 10, Rejected: 1}); !hasBookmark(bms, BookmarkSaturated) {
		t.Error("saturated did not re-arm")
	}
}

func TestBookmarkDetector_Collapse(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 0; i < 4; i++ {
		bd.Check(WindowStats{WindowEndTick: int64(i * 600), Alive: 50, Spread: 2})
	}
	bms := bd.Check(WindowStats{WindowEndTick: 2400, Alive: 50, Spread: 0.5})
	if !hasBookmark(bms, BookmarkCollapse) {
		t.Errorf("expected collapse bookmark, got %v", bms)
	}
}

func TestBookmarkDetector_SteadyState(t *testing.T) {
	bd := NewBookmarkDetector(10)

	fired := 0
	for i := 0; i < 12; i++ {
		bms := bd.Check(WindowStats{WindowEndTick: int64(i * 600), Alive: 100, SpeedMean: 0.02, Spread: 1})
		if hasBookmark(bms, BookmarkSteadyState) {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("steady_state fired %d times, want 1", fired)
	}
}
