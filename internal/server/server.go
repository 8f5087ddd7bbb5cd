package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/facematch/internal/api"
	"github.com/victornm/facematch/internal/candidate"
	"github.com/victornm/facematch/internal/event"
	"github.com/victornm/facematch/internal/game"
	"github.com/victornm/facematch/internal/leaderboard"
	"github.com/victornm/facematch/internal/storage"
	"github.com/victornm/facematch/internal/telemetry"
)

type Server struct {
	c Config

	eb       *event.Bus
	registry *prometheus.Registry
	metrics  *telemetry.Metrics

	infra struct {
		store  storage.Store
		pubsub redis.UniversalClient
	}

	service struct {
		leaderboard *leaderboard.Service
		games       *game.Manager
	}

	api  *api.API
	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	if err := s.initTelemetry(); err != nil {
		return nil, fmt.Errorf("server: init telemetry: %w", err)
	}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initTelemetry() error {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := telemetry.NewMetrics(s.registry)
	if err != nil {
		return err
	}

	s.metrics = m
	return nil
}

func (s *Server) initInfra() error {
	var err error
	s.infra.store, err = OpenStorage(context.Background(), s.c.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if len(s.c.Pubsub.Redis.Addrs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	s.infra.pubsub, err = connectRedis(ctx, s.c.Pubsub.Redis)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initService() error {
	candidates, err := candidate.LoadFile(s.c.Game.Candidates)
	if err != nil {
		return err
	}

	for gender, n := range candidate.Genders(candidates) {
		if n == 1 {
			slog.Warn("server: a single candidate has this gender, its rounds will use any decoy",
				"gender", gender,
			)
		}
	}

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Storage:  s.infra.store,
		Prefix:   s.c.Storage.Prefix,
	})

	s.service.games, err = game.NewManager(game.Config{
		Candidates:    candidates,
		Leaderboard:   s.service.leaderboard,
		EventBus:      s.eb,
		Observer:      s.metrics,
		DecayInterval: s.c.Game.DecayInterval,
		InitialScore:  s.c.Game.InitialScore,
		CorrectPoints: s.c.Game.CorrectPoints,
		WrongPenalty:  s.c.Game.WrongPenalty,
		SessionTTL:    s.c.Game.SessionTTL,
	})
	if err != nil {
		return err
	}

	slog.Info("server: candidates loaded",
		"file", s.c.Game.Candidates,
		"count", len(candidates),
	)
	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery(), telemetry.GinLogger(), s.metrics.GinMiddleware())
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"games":  s.service.games.Len(),
		})
	})
	pprof.Register(e, "/debug/pprof")

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	c := api.Config{
		GRPC:        s.grpc,
		Router:      e,
		EventBus:    s.eb,
		Games:       s.service.games,
		Leaderboard: s.service.leaderboard,
	}
	if s.infra.pubsub != nil {
		c.Redis = s.infra.pubsub
		c.PubsubPrefix = s.c.Pubsub.Prefix
	}
	s.api = api.New(c)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Handler is the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Start() error {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		return err
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}

	return err
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ending the games first lets open event streams finish.
	s.service.games.Close()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.api.Close()
	s.eb.Stop()
	s.closeInfra()

	slog.InfoContext(ctx, "server: shutdown completed")
}

func (s *Server) closeInfra() {
	if s.infra.store != nil {
		if err := s.infra.store.Close(); err != nil {
			slog.Error("server: close storage failed", "error", err)
		}
	}

	if s.infra.pubsub != nil {
		if err := s.infra.pubsub.Close(); err != nil {
			slog.Error("server: close pubsub failed", "error", err)
		}
	}
}
