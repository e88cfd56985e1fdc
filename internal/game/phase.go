package game

import "fmt"

// Phase defines one state of the round state machine.
type Phase string

const (
	PhaseLobby          Phase = "LOBBY"
	PhaseWritingPrompts Phase = "WRITING_PROMPTS"
	PhaseCreatingLies   Phase = "CREATING_LIES"
	PhaseVoting         Phase = "VOTING"
	PhaseScoring        Phase = "SCORING"
	PhaseFinished       Phase = "FINISHED"

	// PhaseWaiting is never written to the shared snapshot. It is the
	// per-participant phase between a submission and the next global
	// transition, shown in the roster as "done".
	PhaseWaiting Phase = "WAITING"
)

// validTransitions holds every transition the host is allowed to drive.
// Scoring fans out: next generation, next round, or the end of the game.
var validTransitions = map[Phase][]Phase{
	PhaseLobby:          {PhaseWritingPrompts},
	PhaseWritingPrompts: {PhaseCreatingLies, PhaseFinished},
	PhaseCreatingLies:   {PhaseVoting},
	PhaseVoting:         {PhaseScoring},
	PhaseScoring:        {PhaseCreatingLies, PhaseWritingPrompts, PhaseFinished},
}

// ValidTransition reports whether the host may move from one phase to another.
func ValidTransition(from, to Phase) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Timed reports whether a phase runs under the countdown timer.
func (p Phase) Timed() bool {
	switch p {
	case PhaseWritingPrompts, PhaseCreatingLies, PhaseVoting:
		return true
	}
	return false
}

// Terminal reports whether the state machine has finished.
func (p Phase) Terminal() bool {
	return p == PhaseFinished
}

// Valid reports whether p is a phase the snapshot may carry.
func (p Phase) Valid() bool {
	switch p {
	case PhaseLobby, PhaseWritingPrompts, PhaseCreatingLies, PhaseVoting, PhaseScoring, PhaseFinished, PhaseWaiting:
		return true
	}
	return false
}

func (p Phase) String() string {
	return string(p)
}

// ParsePhase converts a wire string into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}
