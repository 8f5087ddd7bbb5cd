package domain

import (
	"time"

	"github.com/victornm/facematch/internal/errors"
)

// Mode controls which name attribute is shown to the player.
type Mode string

const (
	ModeEasy Mode = "easy"
	ModeHard Mode = "hard"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeEasy, ModeHard}

// ParseMode validates s as a game mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeEasy, ModeHard:
		return m, nil
	default:
		return "", errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown mode: %q", s))
	}
}

func (m Mode) String() string { return string(m) }

// Candidate is one guessable person in the game universe.
type Candidate struct {
	ID        string `json:"id" yaml:"id" validate:"required"`
	FirstName string `json:"firstName" yaml:"firstName" validate:"required"`
	LastName  string `json:"lastName" yaml:"lastName" validate:"required"`
	Image     string `json:"image" yaml:"image" validate:"required"`
	Gender    string `json:"gender" yaml:"gender" validate:"required"`
}

// Pair is the unit offered to the player in a round.
type Pair struct {
	Target       Candidate
	Decoy        Candidate
	IsTopCorrect bool

	// TopLabel and BottomLabel are the names displayed in each slot for the mode in effect
	// when the pair was built.
	TopLabel    string
	BottomLabel string

	// Fallback is set when no candidate shared the target's gender.
	Fallback bool
}

// Correct reports whether choosing the top slot answers the pair correctly.
func (p Pair) Correct(top bool) bool {
	return top == p.IsTopCorrect
}

// Phase is the state of a game's score engine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// EndReason tells why a game finished.
type EndReason string

const (
	EndReasonTimeout   EndReason = "timeout"
	EndReasonComplete  EndReason = "complete"
	EndReasonAbandoned EndReason = "abandoned"
)

// Game is a point-in-time view of a game session.
type Game struct {
	GameID    string
	Mode      Mode
	Phase     Phase
	Score     int
	HighScore int
	Remaining int
	Total     int
	EndReason EndReason
	// Qualifies is set after game over when the final score may enter the leaderboard.
	Qualifies bool
	Named     bool
	StartTime time.Time
	EndTime   time.Time
}

// Leaderboard is a per-mode table sorted by score desc, then date desc.
type Leaderboard struct {
	Mode    Mode
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	Name  string
	Score int
	Date  time.Time
}
