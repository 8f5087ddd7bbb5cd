// Package game runs Face-Match games. A Session owns the deck and the score engine of one
// game; the Manager creates sessions, finds them by ID and reaps the idle ones.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/facematch/internal/deck"
	"github.com/victornm/facematch/internal/domain"
	"github.com/victornm/facematch/internal/errors"
	"github.com/victornm/facematch/internal/event"
	"github.com/victornm/facematch/internal/leaderboard"
	"github.com/victornm/facematch/internal/score"
)

const (
	DefaultCorrectPoints = 2
	DefaultWrongPenalty  = 1
	DefaultSessionTTL    = 30 * time.Minute
)

// Observer receives game counters. Telemetry implements it with Prometheus.
type Observer interface {
	GameStarted(mode domain.Mode)
	RoundAnswered(mode domain.Mode, correct bool)
	GameFinished(mode domain.Mode, reason domain.EndReason)
	DecoyFallback(mode domain.Mode)
}

type Config struct {
	Candidates  []domain.Candidate
	Leaderboard *leaderboard.Service
	EventBus    *event.Bus
	Observer    Observer

	DecayInterval time.Duration
	InitialScore  int
	CorrectPoints int
	WrongPenalty  int
	// SessionTTL is how long a session may stay untouched before it is reaped.
	SessionTTL time.Duration

	// NewRand returns the random source of a new session. Defaults to a randomly seeded one.
	NewRand       func() *rand.Rand
	NewTickerFunc func(d time.Duration) score.Ticker
	Now           func() time.Time
}

type Manager struct {
	c Config

	mu       sync.RWMutex
	sessions map[string]*Session

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager validates the candidate set and starts the reaper. It returns a data error when
// the candidates cannot make a game.
func NewManager(c Config) (*Manager, error) {
	if err := deck.New(deck.Config{}).Initialize(c.Candidates); err != nil {
		return nil, err
	}

	if c.Leaderboard == nil {
		return nil, fmt.Errorf("game: leaderboard is required")
	}

	if c.DecayInterval <= 0 {
		c.DecayInterval = score.DefaultDecayInterval
	}

	if c.CorrectPoints <= 0 {
		c.CorrectPoints = DefaultCorrectPoints
	}

	if c.WrongPenalty <= 0 {
		c.WrongPenalty = DefaultWrongPenalty
	}

	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}

	if c.Observer == nil {
		c.Observer = nopObserver{}
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	m := &Manager{
		c:        c,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}

	m.wg.Add(1)
	go m.reap()

	return m, nil
}

type CreateGameRequest struct {
	Mode domain.Mode
}

// CreateGame starts a new game in the requested mode.
func (m *Manager) CreateGame(ctx context.Context, req CreateGameRequest) (*Session, error) {
	mode, err := domain.ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate game ID: %w", err)
	}

	var rnd *rand.Rand
	if m.c.NewRand != nil {
		rnd = m.c.NewRand()
	}

	s, err := newSession(sessionConfig{
		id:         id.String(),
		mode:       mode,
		candidates: m.c.Candidates,
		rnd:        rnd,
		c:          &m.c,
	})
	if err != nil {
		return nil, err
	}

	if err := s.start(ctx); err != nil {
		s.close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.c.Observer.GameStarted(mode)
	return s, nil
}

// Get returns the session of a game.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("game %s not found", id))
	}

	return s, nil
}

// Remove abandons a game and releases its session.
func (m *Manager) Remove(ctx context.Context, id string) (*domain.Game, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("game %s not found", id))
	}

	g, err := s.Abandon(ctx)
	s.close()

	return g, err
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// Close stops the reaper, abandons every running game and closes its session, which ends
// every feed attached to it.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.release(context.Background(), sessions)
}

func (m *Manager) reap() {
	defer m.wg.Done()

	t := time.NewTicker(max(m.c.SessionTTL/2, time.Second))
	defer t.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.reapIdle(context.Background())
		}
	}
}

func (m *Manager) reapIdle(ctx context.Context) int {
	deadline := m.c.Now().Add(-m.c.SessionTTL)

	idle := make(map[string]*Session)
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(deadline) {
			idle[id] = s
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	m.release(ctx, idle)

	if len(idle) > 0 {
		slog.InfoContext(ctx, "game: reaped idle sessions", "count", len(idle))
	}

	return len(idle)
}

func (m *Manager) release(ctx context.Context, sessions map[string]*Session) {
	for _, s := range sessions {
		if _, err := s.Abandon(ctx); err != nil {
			slog.ErrorContext(ctx, "game: abandon session failed",
				"game_id", s.ID(),
				"error", err,
			)
		}
		s.close()
	}
}

type nopObserver struct{}

func (nopObserver) GameStarted(domain.Mode)                    {}
func (nopObserver) RoundAnswered(domain.Mode, bool)            {}
func (nopObserver) GameFinished(domain.Mode, domain.EndReason) {}
func (nopObserver) DecoyFallback(domain.Mode)                  {}
