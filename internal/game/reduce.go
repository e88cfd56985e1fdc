package game

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// Outcome reports what a reduction did. The dispatcher performs all side
// effects (snapshot broadcast, timer arming, roster phase label) afterwards;
// reducers themselves only compute the next snapshot.
type Outcome struct {
	// Applied is false when the message was dropped: wrong phase, duplicate
	// submission, or the current generation's author captioning or voting on
	// their own work.
	Applied bool

	// Transition is set when the reduction moved the state machine.
	Transition *Phase
}

func transitioned(to Phase) Outcome {
	return Outcome{Applied: true, Transition: &to}
}

// ReduceMessage applies one client message to the snapshot and decides
// whether a quorum transition fires. playerCount is the roster size the host
// currently believes in; quorum conditions are counts, not identity sets.
//
// Duplicate submissions from the same sender in the same phase are dropped so
// at-least-once delivery from the channel cannot inflate a quorum. The author
// of the generation on deck is likewise barred from captioning or voting it.
func ReduceMessage(s Snapshot, m Message, playerCount int, rng *rand.Rand) (Snapshot, Outcome) {
	s = s.Clone()

	switch m.Type {
	case MessageTypeGeneration:
		if s.Phase != PhaseWritingPrompts || m.Generation == nil {
			return s, Outcome{}
		}
		for _, g := range s.Generations {
			if g.Author == m.Generation.Author {
				return s, Outcome{}
			}
		}
		s.Generations = append(s.Generations, *m.Generation)
		if len(s.Generations) >= playerCount {
			// Shuffle so submission order does not leak authorship.
			s.Generations = Shuffle(rng, s.Generations)
			s.Phase = PhaseCreatingLies
			return s, transitioned(PhaseCreatingLies)
		}
		return s, Outcome{Applied: true}

	case MessageTypeCaption:
		cur, ok := s.CurrentGeneration()
		if s.Phase != PhaseCreatingLies || m.Caption == nil || !ok {
			return s, Outcome{}
		}
		if m.Sender == cur.Author {
			return s, Outcome{}
		}
		for _, c := range s.Captions {
			if c.Author == m.Sender {
				return s, Outcome{}
			}
		}
		s.Captions = append(s.Captions, Caption{Author: m.Sender, Text: m.Caption.Text})
		if len(s.Captions) >= playerCount-1 {
			s = openVoting(s, rng)
			return s, transitioned(PhaseVoting)
		}
		return s, Outcome{Applied: true}

	case MessageTypeVote:
		cur, ok := s.CurrentGeneration()
		if s.Phase != PhaseVoting || m.Vote == nil || !ok {
			return s, Outcome{}
		}
		if m.Sender == cur.Author {
			return s, Outcome{}
		}
		for _, v := range s.Votes {
			if v.Voter == m.Sender {
				return s, Outcome{}
			}
		}
		s.Votes = append(s.Votes, Vote{Voter: m.Sender, Accused: m.Vote.Accused})
		if len(s.Votes) >= playerCount-1 {
			applyScores(&s)
			s.Phase = PhaseScoring
			return s, transitioned(PhaseScoring)
		}
		return s, Outcome{Applied: true}
	}

	return s, Outcome{}
}

// StartGame moves the lobby into the first writing phase and seeds one score
// record per known participant.
func StartGame(s Snapshot, players []uuid.UUID) (Snapshot, Outcome, error) {
	if s.Phase != PhaseLobby {
		return s, Outcome{}, fmt.Errorf("cannot start game from phase %s", s.Phase)
	}
	s = s.Clone()
	s.Scores = make(map[uuid.UUID]Score, len(players))
	for _, id := range players {
		s.Scores[id] = Score{}
	}
	s.Phase = PhaseWritingPrompts
	return s, transitioned(PhaseWritingPrompts), nil
}

// Continue settles SCORING: the scored generation is popped off the queue,
// captions and votes are cleared, and the machine moves to the next
// generation, the next round, or the end of the game.
func Continue(s Snapshot, settings Settings) (Snapshot, Outcome, error) {
	if s.Phase != PhaseScoring {
		return s, Outcome{}, fmt.Errorf("cannot continue from phase %s", s.Phase)
	}
	s = s.Clone()
	if len(s.Generations) > 0 {
		s.Generations = s.Generations[1:]
	}
	s.Captions = nil
	s.Votes = nil

	switch {
	case len(s.Generations) == 0 && s.Round >= settings.Rounds:
		s.Phase = PhaseFinished
		return s, transitioned(PhaseFinished), nil
	case len(s.Generations) == 0:
		s.Round++
		s.Phase = PhaseWritingPrompts
		return s, transitioned(PhaseWritingPrompts), nil
	default:
		s.Phase = PhaseCreatingLies
		return s, transitioned(PhaseCreatingLies), nil
	}
}

// Timeout forces the transition out of an expired timed phase. It is
// idempotent against a late or duplicate timer fire: the armed phase must
// still be the current phase, otherwise the quorum already moved the machine
// and the fire is ignored.
func Timeout(s Snapshot, armed Phase, rng *rand.Rand) (Snapshot, Outcome) {
	if s.Phase != armed {
		return s, Outcome{}
	}
	s = s.Clone()

	switch s.Phase {
	case PhaseWritingPrompts:
		if len(s.Generations) == 0 {
			// Nobody submitted anything; there is nothing left to play.
			s.Phase = PhaseFinished
			return s, transitioned(PhaseFinished)
		}
		s.Generations = Shuffle(rng, s.Generations)
		s.Phase = PhaseCreatingLies
		return s, transitioned(PhaseCreatingLies)

	case PhaseCreatingLies:
		s = openVoting(s, rng)
		return s, transitioned(PhaseVoting)

	case PhaseVoting:
		applyScores(&s)
		s.Phase = PhaseScoring
		return s, transitioned(PhaseScoring)
	}

	return s, Outcome{}
}

// openVoting mixes the true prompt into the caption set and shuffles, so the
// truth is present exactly once and cannot be spotted by position.
func openVoting(s Snapshot, rng *rand.Rand) Snapshot {
	if cur, ok := s.CurrentGeneration(); ok {
		s.Captions = append(s.Captions, Caption{Author: cur.Author, Text: cur.Prompt})
	}
	s.Captions = Shuffle(rng, s.Captions)
	s.Phase = PhaseVoting
	return s
}
