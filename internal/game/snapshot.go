package game

import (
	"time"

	"github.com/google/uuid"
)

// GenerationKind defines the kind of content a variant produces.
type GenerationKind string

const (
	GenerationKindText  GenerationKind = "TEXT"
	GenerationKindImage GenerationKind = "IMAGE"
	GenerationKindList  GenerationKind = "LIST"
)

// Generation is one piece of prompt-seeded content submitted during
// WRITING_PROMPTS. The first element of the snapshot queue is always the
// generation currently being captioned and voted on.
type Generation struct {
	Author     uuid.UUID      `json:"author"`
	Kind       GenerationKind `json:"kind"`
	Prompt     string         `json:"prompt"`
	Text       string         `json:"text,omitempty"`
	URL        string         `json:"url,omitempty"`
	ListPrefix string         `json:"list_prefix,omitempty"`
}

// Caption is a lie submitted for the current generation, or the true prompt
// once it has been mixed into the voting set.
type Caption struct {
	Author uuid.UUID `json:"author"`
	Text   string    `json:"text"`
}

// Vote accuses an author of having written the caption the voter picked.
type Vote struct {
	Voter   uuid.UUID `json:"voter"`
	Accused uuid.UUID `json:"accused"`
}

// Score tracks one participant's points. Previous is snapshotted from Current
// immediately before each point mutation so clients can render deltas; it is
// never read by game logic. The four counters feed end-of-game achievements.
type Score struct {
	Current       int `json:"current"`
	Previous      int `json:"previous"`
	MyLiesVoted   int `json:"my_lies_voted"`
	MyTruthsVoted int `json:"my_truths_voted"`
	IVoteLies     int `json:"i_vote_lies"`
	IVoteTruth    int `json:"i_vote_truth"`
}

// Snapshot is the complete authoritative game state. The host is its only
// writer; after every accepted message the whole snapshot is broadcast with a
// freshly incremented Seq. Clients overwrite their copy wholesale.
type Snapshot struct {
	Phase       Phase               `json:"phase"`
	Round       int                 `json:"round"`
	Generations []Generation        `json:"generations"`
	Captions    []Caption           `json:"captions"`
	Votes       []Vote              `json:"votes"`
	Scores      map[uuid.UUID]Score `json:"scores"`
	Timer       TimerSerial         `json:"timer"`
	Seq         uint64              `json:"seq"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewSnapshot returns the initial snapshot for a fresh room.
func NewSnapshot() Snapshot {
	return Snapshot{
		Phase:  PhaseLobby,
		Round:  1,
		Scores: make(map[uuid.UUID]Score),
	}
}

// Clone returns a deep copy so reducers can stay pure.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Generations = append([]Generation(nil), s.Generations...)
	out.Captions = append([]Caption(nil), s.Captions...)
	out.Votes = append([]Vote(nil), s.Votes...)
	out.Scores = make(map[uuid.UUID]Score, len(s.Scores))
	for id, sc := range s.Scores {
		out.Scores[id] = sc
	}
	return out
}

// CurrentGeneration returns the generation being captioned or voted on.
func (s Snapshot) CurrentGeneration() (Generation, bool) {
	if len(s.Generations) == 0 {
		return Generation{}, false
	}
	return s.Generations[0], true
}

// Settings holds the host-side knobs for a session.
type Settings struct {
	Rounds          int           `json:"rounds" yaml:"rounds"`
	WritingDuration time.Duration `json:"writing_duration" yaml:"writing_duration"`
	LyingDuration   time.Duration `json:"lying_duration" yaml:"lying_duration"`
	VotingDuration  time.Duration `json:"voting_duration" yaml:"voting_duration"`
	TimerEnabled    bool          `json:"timer_enabled" yaml:"timer_enabled"`
	TimerGrace      time.Duration `json:"timer_grace" yaml:"timer_grace"`

	// AutoContinue advances out of SCORING after ContinueDelay without an
	// explicit host action.
	AutoContinue  bool          `json:"auto_continue" yaml:"auto_continue"`
	ContinueDelay time.Duration `json:"continue_delay" yaml:"continue_delay"`
}

// DefaultSettings mirrors the stock three-round game.
func DefaultSettings() Settings {
	return Settings{
		Rounds:          3,
		WritingDuration: 40 * time.Second,
		LyingDuration:   35 * time.Second,
		VotingDuration:  35 * time.Second,
		TimerEnabled:    true,
		TimerGrace:      3 * time.Second,
		AutoContinue:    false,
		ContinueDelay:   8 * time.Second,
	}
}

// PhaseDuration returns the countdown length for a timed phase.
func (s Settings) PhaseDuration(p Phase) time.Duration {
	switch p {
	case PhaseWritingPrompts:
		return s.WritingDuration
	case PhaseCreatingLies:
		return s.LyingDuration
	case PhaseVoting:
		return s.VotingDuration
	}
	return 0
}
