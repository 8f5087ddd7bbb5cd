// Package api exposes games and leaderboards over HTTP (JSON and Server-Sent Events) and
// gRPC, and forwards leaderboard changes to Redis pubsub.
package api

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/facematch/internal/domain"
	"github.com/victornm/facematch/internal/errors"
	"github.com/victornm/facematch/internal/event"
	"github.com/victornm/facematch/internal/game"
	"github.com/victornm/facematch/internal/leaderboard"
)

const defaultStreamBuffer = 64

type Config struct {
	// GRPC and Router are optional; each transport is registered when set.
	GRPC   grpc.ServiceRegistrar
	Router gin.IRouter

	EventBus    *event.Bus
	Games       *game.Manager
	Leaderboard *leaderboard.Service

	// Redis receives leaderboard notifications when set.
	Redis        Redis
	PubsubPrefix string

	// StreamBuffer is the number of events an SSE client may lag behind before events are
	// dropped for it.
	StreamBuffer int
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	games *game.Manager
	ls    *leaderboard.Service
	eb    *event.Bus

	redis  Redis
	prefix string

	streamBuffer int
	unsubscribe  []func()
}

func New(c Config) *API {
	a := &API{
		games:        c.Games,
		ls:           c.Leaderboard,
		eb:           c.EventBus,
		redis:        c.Redis,
		prefix:       c.PubsubPrefix,
		streamBuffer: c.StreamBuffer,
	}

	if a.streamBuffer <= 0 {
		a.streamBuffer = defaultStreamBuffer
	}

	// gRPC APIs
	if c.GRPC != nil {
		RegisterGameServiceServer(c.GRPC, a)
	}

	// HTTP APIs
	if c.Router != nil {
		a.registerRoutes(c.Router)
	}

	// Register event handlers
	if a.redis != nil {
		a.unsubscribe = append(a.unsubscribe,
			a.eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
			}),
		)
	}

	return a
}

// Close removes the event handlers registered by New.
func (a *API) Close() {
	for _, unsubscribe := range a.unsubscribe {
		unsubscribe()
	}
	a.unsubscribe = nil
}

func parseChoice(s string) (top bool, err error) {
	switch strings.ToLower(s) {
	case "top":
		return true, nil
	case "bottom":
		return false, nil
	default:
		return false, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown choice: %q", s))
	}
}

func (a *API) createGame(ctx context.Context, mode string) (*game.Session, *domain.Game, error) {
	s, err := a.games.CreateGame(ctx, game.CreateGameRequest{Mode: domain.Mode(mode)})
	if err != nil {
		return nil, nil, err
	}

	g, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	return s, g, nil
}

func (a *API) nextRound(ctx context.Context, gameID string) (*NextRoundResponse, error) {
	s, err := a.games.Get(gameID)
	if err != nil {
		return nil, err
	}

	r, err := s.Round(ctx)
	if err != nil {
		return nil, err
	}

	return &NextRoundResponse{
		Round: toRound(r),
		Game:  toGame(r.Game),
	}, nil
}

func (a *API) submitAnswer(ctx context.Context, gameID, choice string) (*SubmitAnswerResponse, error) {
	top, err := parseChoice(choice)
	if err != nil {
		return nil, err
	}

	s, err := a.games.Get(gameID)
	if err != nil {
		return nil, err
	}

	res, err := s.Answer(ctx, top)
	if err != nil {
		return nil, err
	}

	return toAnswer(res), nil
}

func (a *API) submitName(ctx context.Context, gameID, name string) (*domain.Leaderboard, error) {
	s, err := a.games.Get(gameID)
	if err != nil {
		return nil, err
	}

	return s.SubmitName(ctx, name)
}
