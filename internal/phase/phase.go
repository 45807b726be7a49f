package phase

// Phase represents one stage of a file's classification lifecycle.
type Phase string

const (
	Idle      Phase = "idle"
	Analyzing Phase = "analyzing"
	Building  Phase = "building"
	Metadata  Phase = "metadata"
	Tagging   Phase = "tagging"
	Completed Phase = "completed"
	Error     Phase = "error"
	Paused    Phase = "paused"
)

// Liveness and escalation thresholds shared by the pipeline and progress
// aggregator. A long-running phase must emit a heartbeat at least every
// HeartbeatInterval; a working thread with no update for StaleThreshold is
// considered stale at read time.
const (
	HeartbeatIntervalSeconds = 3
	StaleThresholdSeconds    = 30
	StallThresholdSeconds    = 60
	NoAudioEscalationStreak  = 3
)

var allPhases = []Phase{Idle, Analyzing, Building, Metadata, Tagging, Completed, Error, Paused}

var phaseSet = func() map[Phase]struct{} {
	set := make(map[Phase]struct{}, len(allPhases))
	for _, p := range allPhases {
		set[p] = struct{}{}
	}
	return set
}()

// transitions is the closed allowed-transition table. Every phase may move to
// paused; paused may resume into any working phase.
var transitions = map[Phase][]Phase{
	Idle:      {Analyzing, Paused},
	Analyzing: {Building, Error, Paused},
	Building:  {Metadata, Error, Paused},
	Metadata:  {Tagging, Completed, Error, Paused},
	Tagging:   {Completed, Error, Paused},
	Completed: {Idle, Analyzing, Paused},
	Error:     {Idle, Analyzing, Paused},
	Paused:    {Idle, Analyzing, Building, Metadata, Tagging},
}

// Known reports whether p is a member of the closed phase enum.
func Known(p Phase) bool {
	_, ok := phaseSet[p]
	return ok
}

// CanTransition reports whether moving from one phase to another is allowed.
// Self-transitions are permitted (repeated progress updates within a phase).
func CanTransition(from, to Phase) bool {
	if !Known(from) || !Known(to) {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Working reports whether the phase describes active per-file processing.
func Working(p Phase) bool {
	switch p {
	case Analyzing, Building, Metadata, Tagging:
		return true
	default:
		return false
	}
}

// Terminal reports whether the phase ends a file's lifecycle.
func Terminal(p Phase) bool {
	return p == Completed || p == Error
}
