// Package sim drives one simulation tick as an explicit state machine over
// the particle store, spatial index and ecosystem model.
package sim

// Stage is one state of the per-tick pipeline.
type Stage uint8

const (
	StageIdle Stage = iota
	StageKill
	StageEmit
	StageIntegrate
	StageRebuildIndex
	StageResolveCollisions
	StageApplySocialForces
	StageApplyGlobalForces
	StagePublish
)

var stageNames = [...]string{
	StageIdle:              "idle",
	StageKill:              "kill",
	StageEmit:              "emit",
	StageIntegrate:         "integrate",
	StageRebuildIndex:      "rebuild_index",
	StageResolveCollisions: "collisions",
	StageApplySocialForces: "social",
	StageApplyGlobalForces: "global",
	StagePublish:           "publish",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// next returns the stage that follows s. RebuildIndex is skipped when the
// scheduler has no spatial index. Publish returns to Idle.
func next(s Stage, indexed bool) Stage {
	switch s {
	case StageIdle:
		return StageKill
	case StageKill:
		return StageEmit
	case StageEmit:
		return StageIntegrate
	case StageIntegrate:
		if indexed {
			return StageRebuildIndex
		}
		return StageResolveCollisions
	case StageRebuildIndex:
		return StageResolveCollisions
	case StageResolveCollisions:
		return StageApplySocialForces
	case StageApplySocialForces:
		return StageApplyGlobalForces
	case StageApplyGlobalForces:
		return StagePublish
	}
	return StageIdle
}
