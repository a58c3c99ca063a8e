package frooties

import "fmt"

// Stage is a mint phase. Stages are ordered chronologically.
type Stage uint8

const (
	StageInactive Stage = iota
	StageWhitelist
	StagePublic
	StageReserve
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageInactive:
		return "inactive"
	case StageWhitelist:
		return "whitelist"
	case StagePublic:
		return "public"
	case StageReserve:
		return "reserve"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s <= StageReserve
}

// StageMode selects how phases are gated.
type StageMode int

const (
	// ModeSchedule opens each phase once the block timestamp reaches its start time.
	ModeSchedule StageMode = iota

	// ModeManual opens exactly the phase stored by setMintStage.
	ModeManual
)

// String returns the string representation of the mode.
func (m StageMode) String() string {
	switch m {
	case ModeSchedule:
		return "schedule"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseStageMode parses a string into a StageMode.
func ParseStageMode(s string) (StageMode, error) {
	switch s {
	case "", "schedule":
		return ModeSchedule, nil
	case "manual":
		return ModeManual, nil
	default:
		return ModeSchedule, fmt.Errorf("unknown stage mode %q", s)
	}
}

// Schedule holds the start timestamps of the timed phases.
type Schedule struct {
	Whitelist uint64 `json:"whitelist" yaml:"whitelist"`
	Public    uint64 `json:"public" yaml:"public"`
	Reserve   uint64 `json:"reserve" yaml:"reserve"`
}

// Start returns the start time of a phase.
func (s Schedule) Start(stage Stage) (uint64, bool) {
	switch stage {
	case StageWhitelist:
		return s.Whitelist, true
	case StagePublic:
		return s.Public, true
	case StageReserve:
		return s.Reserve, true
	default:
		return 0, false
	}
}

// Started reports whether the phase is open at timestamp ts.
func (s Schedule) Started(stage Stage, ts uint64) bool {
	start, ok := s.Start(stage)
	return ok && ts >= start
}

// StageAt returns the latest phase open at ts.
func (s Schedule) StageAt(ts uint64) Stage {
	for _, stage := range []Stage{StageReserve, StagePublic, StageWhitelist} {
		if s.Started(stage, ts) {
			return stage
		}
	}
	return StageInactive
}

// Ordered reports whether the phases start in chronological order.
func (s Schedule) Ordered() bool {
	return s.Whitelist <= s.Public && s.Public <= s.Reserve
}
