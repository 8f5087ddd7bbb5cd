package game

import (
	"context"
	stderrors "errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/victornm/facematch/internal/deck"
	"github.com/victornm/facematch/internal/domain"
	"github.com/victornm/facematch/internal/errors"
	"github.com/victornm/facematch/internal/event"
	"github.com/victornm/facematch/internal/leaderboard"
	"github.com/victornm/facematch/internal/loop"
	"github.com/victornm/facematch/internal/score"
)

const persistTimeout = 5 * time.Second

// Session is one game: a deck and a score engine driven by a single loop. Every exported
// method is safe for concurrent use; the work itself runs on the loop in arrival order.
type Session struct {
	id   string
	mode domain.Mode

	lb       *leaderboard.Service
	eb       *event.Bus
	observer Observer
	now      func() time.Time

	interval      time.Duration
	correctPoints int
	wrongPenalty  int

	loop   *loop.Loop
	deck   *deck.Deck
	engine *score.Engine

	// Owned by the loop.
	round     *domain.Pair
	seq       uint64
	reason    domain.EndReason
	qualifies bool
	named     bool
	startTime time.Time
	endTime   time.Time
	watchers  map[chan event.Event]struct{}

	lastActive atomic.Int64
}

type sessionConfig struct {
	id         string
	mode       domain.Mode
	candidates []domain.Candidate
	rnd        *rand.Rand
	c          *Config
}

func newSession(sc sessionConfig) (*Session, error) {
	c := sc.c

	s := &Session{
		id:            sc.id,
		mode:          sc.mode,
		lb:            c.Leaderboard,
		eb:            c.EventBus,
		observer:      c.Observer,
		now:           c.Now,
		interval:      c.DecayInterval,
		correctPoints: c.CorrectPoints,
		wrongPenalty:  c.WrongPenalty,
		loop:          loop.New(0),
		watchers:      make(map[chan event.Event]struct{}),
	}

	s.deck = deck.New(deck.Config{
		Rand: sc.rnd,
		OnDecoyFallback: func(domain.Candidate) {
			s.observer.DecoyFallback(s.mode)
		},
	})

	if err := s.deck.Initialize(sc.candidates); err != nil {
		return nil, err
	}

	if err := s.deck.SetMode(sc.mode); err != nil {
		return nil, err
	}

	s.engine = score.NewEngine(score.Config{
		Mode:          sc.mode,
		InitialScore:  c.InitialScore,
		HighScores:    c.Leaderboard,
		Scheduler:     s.loop,
		NewTickerFunc: c.NewTickerFunc,
		OnChange:      s.scoreChanged,
	})

	s.touch()
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Mode() domain.Mode { return s.mode }

// start deals a fresh deck, resets the score and starts the decay timer.
func (s *Session) start(ctx context.Context) error {
	s.loop.Start()

	return s.do(ctx, func() error {
		s.deck.Reset()
		s.engine.Reset(ctx)
		s.round = nil
		s.reason = ""
		s.qualifies = false
		s.named = false
		s.startTime = s.now()
		s.endTime = time.Time{}

		s.engine.StartTimer(s.interval, s.ticked)

		slog.InfoContext(ctx, "game: started",
			"game_id", s.id,
			"mode", s.mode,
			"candidates", s.deck.Total(),
		)
		return nil
	})
}

// Round is the pair open for an answer, or nil once the game is over.
type Round struct {
	Pair *domain.Pair
	Game domain.Game
}

// Round returns the open pair, dealing a new one if none is open. It returns the same pair
// until it is answered.
func (s *Session) Round(ctx context.Context) (*Round, error) {
	var r Round
	err := s.do(ctx, func() error {
		if s.engine.Phase() != domain.PhaseRunning {
			r.Game = s.snapshot()
			return nil
		}

		if s.round == nil {
			p, err := s.deck.NextPair()
			if stderrors.Is(err, domain.ErrDeckExhausted) {
				s.finish(ctx, domain.EndReasonComplete)
				r.Game = s.snapshot()
				return nil
			}

			if err != nil {
				return err
			}

			s.round = &p
		}

		p := *s.round
		r.Pair = &p
		r.Game = s.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// AnswerResult is the outcome of an answer.
type AnswerResult struct {
	Correct bool
	Delta   int
	// Target is the candidate the open pair was about.
	Target domain.Candidate
	Game   domain.Game
}

// Answer resolves the open pair with the slot the player picked. A correct answer on the
// last candidate completes the game; an answer that drops the score to zero ends it.
func (s *Session) Answer(ctx context.Context, top bool) (*AnswerResult, error) {
	var res AnswerResult
	err := s.do(ctx, func() error {
		if s.engine.Phase() != domain.PhaseRunning {
			return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("game %s is over", s.id))
		}

		if s.round == nil {
			return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("game %s has no open round", s.id))
		}

		p := *s.round
		s.round = nil

		res.Correct = s.deck.Resolve(top, p)
		res.Target = p.Target
		res.Delta = -s.wrongPenalty
		if res.Correct {
			res.Delta = s.correctPoints
		}

		s.engine.Mutate(ctx, res.Delta)
		s.observer.RoundAnswered(s.mode, res.Correct)

		switch {
		case s.deck.Remaining() == 0:
			s.finish(ctx, domain.EndReasonComplete)
		case s.engine.Score() == 0:
			s.finish(ctx, domain.EndReasonTimeout)
		}

		res.Game = s.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}

// SubmitName enters the final score into the leaderboard under name. It is accepted once,
// after game over, when the score qualified. The saved final score is only deleted once the
// entry is stored, so a failed attempt can be retried.
func (s *Session) SubmitName(ctx context.Context, name string) (*domain.Leaderboard, error) {
	var l *domain.Leaderboard
	err := s.do(ctx, func() error {
		switch {
		case s.engine.Phase() != domain.PhaseGameOver:
			return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("game %s is still running", s.id))
		case s.named:
			return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("game %s is already on the leaderboard", s.id))
		case !s.qualifies:
			return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("game %s did not reach the leaderboard", s.id))
		}

		final, err := s.lb.LastGameScore(ctx, s.id)
		if err != nil {
			return err
		}

		l, err = s.lb.AddScore(ctx, leaderboard.AddScoreRequest{
			Mode:  s.mode,
			Name:  name,
			Score: final,
		})
		if err != nil {
			return err
		}

		s.named = true
		if err := s.lb.DeleteLastGameScore(ctx, s.id); err != nil {
			slog.ErrorContext(ctx, "game: delete final score failed",
				"game_id", s.id,
				"error", err,
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return l, nil
}

// Snapshot returns the current state of the game.
func (s *Session) Snapshot(ctx context.Context) (*domain.Game, error) {
	var g domain.Game
	err := s.do(ctx, func() error {
		g = s.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &g, nil
}

// Abandon ends a running game. It has no effect on a finished one.
func (s *Session) Abandon(ctx context.Context) (*domain.Game, error) {
	var g domain.Game
	err := s.do(ctx, func() error {
		if s.engine.Phase() == domain.PhaseRunning {
			s.finish(ctx, domain.EndReasonAbandoned)
		}

		g = s.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &g, nil
}

// Watch is an ordered feed of the events of one game.
type Watch struct {
	// Events carries EventScoreChanged and EventGameOver in the order they happened after
	// Game was taken. It is closed when the session closes.
	Events <-chan event.Event
	// Game is the state the feed starts from.
	Game domain.Game

	stop func()
}

// Close detaches the feed from the session.
func (w *Watch) Close() {
	w.stop()
}

// Watch attaches a feed to the game. Events are dropped for a feed that lags more than buffer
// events behind.
func (s *Session) Watch(ctx context.Context, buffer int) (*Watch, error) {
	ch := make(chan event.Event, max(buffer, 1))

	var g domain.Game
	err := s.do(ctx, func() error {
		s.watchers[ch] = struct{}{}
		g = s.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()

			// A closed session already released its feeds.
			_ = s.loop.Do(ctx, func() error {
				delete(s.watchers, ch)
				return nil
			})
		})
	}

	return &Watch{Events: ch, Game: g, stop: stop}, nil
}

// close stops the timer and the loop and closes every feed. The session rejects every call
// afterwards.
func (s *Session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	_ = s.loop.Do(ctx, func() error {
		s.engine.StopTimer()
		for ch := range s.watchers {
			close(ch)
		}
		clear(s.watchers)
		return nil
	})

	s.loop.Stop()
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(s.now().UnixNano())
}

func (s *Session) do(ctx context.Context, f func() error) error {
	s.touch()

	err := s.loop.Do(ctx, f)
	if stderrors.Is(err, loop.ErrStopped) {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("game %s is closed", s.id),
			errors.WithCause(err),
		)
	}

	return err
}

// ticked runs on the loop after every applied decay tick.
func (s *Session) ticked(u score.Update) {
	if u.GameOver {
		s.finish(context.Background(), domain.EndReasonTimeout)
	}
}

func (s *Session) scoreChanged(u score.Update) {
	s.seq++

	s.publish(context.Background(), domain.EventScoreChanged{
		GameID:    s.id,
		Seq:       s.seq,
		Score:     u.Score,
		HighScore: u.HighScore,
		Delta:     u.Delta,
	})
}

// publish hands e to the feeds in loop order, then to the event bus.
func (s *Session) publish(ctx context.Context, e event.Event) {
	for ch := range s.watchers {
		select {
		case ch <- e:
		default:
			slog.WarnContext(ctx, "game: watcher is lagging, dropping event",
				"game_id", s.id,
				"event", e.Name(),
			)
		}
	}

	if s.eb != nil {
		s.eb.Publish(ctx, e)
	}
}

// finish moves the game to game over exactly once and hands the final score to the
// leaderboard.
func (s *Session) finish(ctx context.Context, reason domain.EndReason) {
	if s.reason != "" {
		return
	}

	final := s.engine.EndGame(ctx)
	s.reason = reason
	s.round = nil
	s.endTime = s.now()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if reason != domain.EndReasonAbandoned {
		s.qualifies = s.handOff(ctx, final)
	}

	s.observer.GameFinished(s.mode, reason)

	slog.InfoContext(ctx, "game: over",
		"game_id", s.id,
		"mode", s.mode,
		"reason", reason,
		"score", final,
		"qualifies", s.qualifies,
	)

	s.publish(ctx, domain.EventGameOver{Game: s.snapshot()})
}

func (s *Session) handOff(ctx context.Context, final int) bool {
	if err := s.lb.SaveLastGameScore(ctx, s.id, final); err != nil {
		slog.ErrorContext(ctx, "game: save final score failed",
			"game_id", s.id,
			"error", err,
		)
		return false
	}

	ok, err := s.lb.IsHighScore(ctx, leaderboard.IsHighScoreRequest{
		Mode:  s.mode,
		Score: final,
	})
	if err != nil {
		slog.ErrorContext(ctx, "game: check high score failed",
			"game_id", s.id,
			"error", err,
		)
		return false
	}

	return ok
}

func (s *Session) snapshot() domain.Game {
	return domain.Game{
		GameID:    s.id,
		Mode:      s.mode,
		Phase:     s.engine.Phase(),
		Score:     s.engine.Score(),
		HighScore: s.engine.HighScore(),
		Remaining: s.deck.Remaining(),
		Total:     s.deck.Total(),
		EndReason: s.reason,
		Qualifies: s.qualifies,
		Named:     s.named,
		StartTime: s.startTime,
		EndTime:   s.endTime,
	}
}
