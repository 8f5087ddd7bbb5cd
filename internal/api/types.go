package api

import (
	"time"

	"github.com/victornm/facematch/internal/domain"
	"github.com/victornm/facematch/internal/game"
)

// Wire types shared by the HTTP and gRPC transports.
type (
	Game struct {
		GameID    string     `json:"gameId"`
		Mode      string     `json:"mode"`
		Phase     string     `json:"phase"`
		Score     int        `json:"score"`
		HighScore int        `json:"highScore"`
		Remaining int        `json:"remaining"`
		Total     int        `json:"total"`
		EndReason string     `json:"endReason,omitempty"`
		Qualifies bool       `json:"qualifies"`
		Named     bool       `json:"named"`
		StartTime time.Time  `json:"startTime"`
		EndTime   *time.Time `json:"endTime,omitempty"`
	}

	// Round hides which slot is correct.
	Round struct {
		Image       string `json:"image"`
		TopLabel    string `json:"topLabel"`
		BottomLabel string `json:"bottomLabel"`
	}

	Leaderboard struct {
		Mode    string             `json:"mode"`
		Entries []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Name  string    `json:"name"`
		Score int       `json:"score"`
		Date  time.Time `json:"date"`
	}

	ScoreChanged struct {
		GameID    string `json:"gameId"`
		Seq       uint64 `json:"seq"`
		Score     int    `json:"score"`
		HighScore int    `json:"highScore"`
		Delta     int    `json:"delta"`
	}
)

type (
	CreateGameRequest struct {
		Mode string `json:"mode" binding:"required,oneof=easy hard"`
	}

	CreateGameResponse struct {
		Game Game `json:"game"`
	}

	NextRoundRequest struct {
		GameID string `json:"gameId"`
	}

	NextRoundResponse struct {
		// Round is nil once the game is over.
		Round *Round `json:"round"`
		Game  Game   `json:"game"`
	}

	SubmitAnswerRequest struct {
		GameID string `json:"gameId"`
		Choice string `json:"choice" binding:"required,oneof=top bottom"`
	}

	SubmitAnswerResponse struct {
		Correct bool `json:"correct"`
		Delta   int  `json:"delta"`
		// Answer is the full name of the person shown.
		Answer string `json:"answer"`
		Game   Game   `json:"game"`
	}

	SubmitNameRequest struct {
		GameID string `json:"gameId"`
		Name   string `json:"name"`
	}

	SubmitNameResponse struct {
		Leaderboard Leaderboard `json:"leaderboard"`
	}

	GetLeaderboardRequest struct {
		Mode string `json:"mode"`
	}

	GetLeaderboardResponse struct {
		Leaderboard Leaderboard `json:"leaderboard"`
	}
)

func toGame(g domain.Game) Game {
	out := Game{
		GameID:    g.GameID,
		Mode:      string(g.Mode),
		Phase:     g.Phase.String(),
		Score:     g.Score,
		HighScore: g.HighScore,
		Remaining: g.Remaining,
		Total:     g.Total,
		EndReason: string(g.EndReason),
		Qualifies: g.Qualifies,
		Named:     g.Named,
		StartTime: g.StartTime,
	}

	if !g.EndTime.IsZero() {
		t := g.EndTime
		out.EndTime = &t
	}

	return out
}

func toRound(r *game.Round) *Round {
	if r.Pair == nil {
		return nil
	}

	return &Round{
		Image:       r.Pair.Target.Image,
		TopLabel:    r.Pair.TopLabel,
		BottomLabel: r.Pair.BottomLabel,
	}
}

func toAnswer(res *game.AnswerResult) *SubmitAnswerResponse {
	return &SubmitAnswerResponse{
		Correct: res.Correct,
		Delta:   res.Delta,
		Answer:  res.Target.FirstName + " " + res.Target.LastName,
		Game:    toGame(res.Game),
	}
}

func toLeaderboard(l *domain.Leaderboard) Leaderboard {
	out := Leaderboard{
		Mode:    string(l.Mode),
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, e := range l.Entries {
		out.Entries = append(out.Entries, LeaderboardEntry{
			Name:  e.Name,
			Score: e.Score,
			Date:  e.Date,
		})
	}

	return out
}

func toScoreChanged(e domain.EventScoreChanged) ScoreChanged {
	return ScoreChanged{
		GameID:    e.GameID,
		Seq:       e.Seq,
		Score:     e.Score,
		HighScore: e.HighScore,
		Delta:     e.Delta,
	}
}
