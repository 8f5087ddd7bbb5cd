package domain

const (
	EventNameScoreChanged       = "score.changed"
	EventNameGameOver           = "game.over"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventScoreChanged is published after every applied score mutation.
type EventScoreChanged struct {
	GameID    string
	Seq       uint64
	Score     int
	HighScore int
	Delta     int
}

func (EventScoreChanged) Name() string { return EventNameScoreChanged }

// EventGameOver is published once per game when it finishes.
type EventGameOver struct {
	Game Game
}

func (EventGameOver) Name() string { return EventNameGameOver }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
