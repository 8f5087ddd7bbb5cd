package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/facematch/internal/domain"
	"github.com/victornm/facematch/internal/errors"
	"github.com/victornm/facematch/internal/leaderboard"
)

func (a *API) registerRoutes(r gin.IRouter) {
	v1 := r.Group("/api/v1", renderError())

	games := v1.Group("/games")
	games.POST("", a.handleCreateGame)
	games.GET("/:id", a.handleGetGame)
	games.DELETE("/:id", a.handleAbandonGame)
	games.GET("/:id/round", a.handleNextRound)
	games.POST("/:id/answer", a.handleSubmitAnswer)
	games.POST("/:id/name", a.handleSubmitName)
	games.GET("/:id/events", a.handleStreamEvents)

	leaderboards := v1.Group("/leaderboards")
	leaderboards.GET("/:mode", a.handleGetLeaderboard)
}

// renderError writes the last error a handler attached as {"error": {"code", "message"}}.
func renderError() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		e := errors.Convert(c.Errors.Last().Err)
		if e.Code == errors.CodeInternal || e.Code == errors.CodeDataLoss {
			slog.ErrorContext(c.Request.Context(), "http: request failed",
				"path", c.FullPath(),
				"error", c.Errors.Last().Err,
			)
		}

		c.JSON(e.HTTPStatusCode(), gin.H{"error": e})
	}
}

func badRequest(err error) error {
	return errors.New(errors.CodeInvalidArgument,
		errors.WithMessage(err.Error()),
		errors.WithCause(err),
	)
}

func (a *API) handleCreateGame(c *gin.Context) {
	var req CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequest(err))
		return
	}

	_, g, err := a.createGame(c.Request.Context(), req.Mode)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, CreateGameResponse{Game: toGame(*g)})
}

func (a *API) handleGetGame(c *gin.Context) {
	s, err := a.games.Get(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	g, err := s.Snapshot(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toGame(*g))
}

func (a *API) handleAbandonGame(c *gin.Context) {
	g, err := a.games.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toGame(*g))
}

func (a *API) handleNextRound(c *gin.Context) {
	resp, err := a.nextRound(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) handleSubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequest(err))
		return
	}

	resp, err := a.submitAnswer(c.Request.Context(), c.Param("id"), req.Choice)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) handleSubmitName(c *gin.Context) {
	var req SubmitNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequest(err))
		return
	}

	l, err := a.submitName(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, SubmitNameResponse{Leaderboard: toLeaderboard(l)})
}

func (a *API) handleGetLeaderboard(c *gin.Context) {
	l, err := a.ls.GetScores(c.Request.Context(), leaderboard.GetScoresRequest{
		Mode: domain.Mode(c.Param("mode")),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, GetLeaderboardResponse{Leaderboard: toLeaderboard(l)})
}
