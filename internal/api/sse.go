package api

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/victornm/facematch/internal/domain"
)

const eventSnapshot = "snapshot"

// handleStreamEvents streams the events of one game as Server-Sent Events, in the order the
// game produced them. The stream starts with a snapshot and ends after game over or when the
// server closes the game.
func (a *API) handleStreamEvents(c *gin.Context) {
	ctx := c.Request.Context()

	s, err := a.games.Get(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	w, err := s.Watch(ctx, a.streamBuffer)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer w.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(eventSnapshot, toGame(w.Game))
	c.Writer.Flush()
	if w.Game.Phase == domain.PhaseGameOver {
		return
	}

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e, ok := <-w.Events:
			if !ok {
				return false
			}

			switch e := e.(type) {
			case domain.EventScoreChanged:
				c.SSEvent(e.Name(), toScoreChanged(e))
				return true
			case domain.EventGameOver:
				c.SSEvent(e.Name(), toGame(e.Game))
				return false
			default:
				return true
			}
		}
	})
}
