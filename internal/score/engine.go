// Package score implements the score engine of a game: the live score, the per-mode high
// score and the decay timer that ends the game when the score reaches zero.
//
// An Engine is owned by a single goroutine (the game loop). The decay timer never touches the
// engine directly: it posts each tick to the loop through the Scheduler.
package score

import (
	"context"
	"log/slog"
	"time"

	"github.com/victornm/facematch/internal/domain"
)

const (
	DefaultInitialScore  = 10
	DefaultDecayInterval = 2 * time.Second

	persistTimeout = 5 * time.Second
)

// HighScores persists the best score per mode.
type HighScores interface {
	HighScore(ctx context.Context, mode domain.Mode) (int, error)
	RaiseHighScore(ctx context.Context, mode domain.Mode, score int) (int, error)
}

// Scheduler runs f on the goroutine that owns the engine. It returns false when f will never run.
type Scheduler interface {
	Post(f func()) bool
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Update describes the engine after a change.
type Update struct {
	Score     int
	HighScore int
	Delta     int
	GameOver  bool
}

type Config struct {
	Mode          domain.Mode
	InitialScore  int
	HighScores    HighScores
	Scheduler     Scheduler
	NewTickerFunc func(d time.Duration) Ticker
	// OnChange is called after every applied mutation.
	OnChange func(Update)
}

type Engine struct {
	mode         domain.Mode
	initialScore int
	highScores   HighScores
	sched        Scheduler
	newTicker    func(d time.Duration) Ticker
	onChange     func(Update)

	phase     domain.Phase
	score     int
	highScore int

	timer *timer
	// gen identifies the active timer; ticks carrying an older generation are dropped.
	gen uint64
}

type timer struct {
	t    Ticker
	stop chan struct{}
}

func NewEngine(c Config) *Engine {
	e := &Engine{
		mode:         c.Mode,
		initialScore: c.InitialScore,
		highScores:   c.HighScores,
		sched:        c.Scheduler,
		newTicker:    c.NewTickerFunc,
		onChange:     c.OnChange,
		phase:        domain.PhaseIdle,
	}

	if e.initialScore <= 0 {
		e.initialScore = DefaultInitialScore
	}

	if e.newTicker == nil {
		e.newTicker = NewTicker
	}

	return e
}

// Reset starts a new game: it cancels the timer, restores the initial score and reloads the
// high score of the current mode.
func (e *Engine) Reset(ctx context.Context) {
	e.StopTimer()

	e.score = e.initialScore
	e.phase = domain.PhaseRunning
	e.highScore = e.loadHighScore(ctx)
}

// SetMode switches the mode whose high score is tracked.
func (e *Engine) SetMode(ctx context.Context, mode domain.Mode) {
	e.mode = mode
	e.highScore = e.loadHighScore(ctx)
}

// StartTimer starts the decay timer, replacing any timer already running. onTick is invoked
// on the loop after each tick that was applied.
func (e *Engine) StartTimer(interval time.Duration, onTick func(Update)) {
	e.StopTimer()

	if interval <= 0 {
		interval = DefaultDecayInterval
	}

	gen := e.gen
	t := &timer{
		t:    e.newTicker(interval),
		stop: make(chan struct{}),
	}
	e.timer = t

	go func() {
		for {
			select {
			case <-t.stop:
				return
			case <-t.t.C():
				if !e.sched.Post(func() { e.tick(gen, onTick) }) {
					return
				}
			}
		}
	}()
}

// StopTimer cancels the decay timer. It is a no-op when no timer is running.
func (e *Engine) StopTimer() {
	// Invalidate ticks that are already queued on the loop.
	e.gen++

	if e.timer == nil {
		return
	}

	close(e.timer.stop)
	e.timer.t.Stop()
	e.timer = nil
}

func (e *Engine) tick(gen uint64, onTick func(Update)) {
	if gen != e.gen || e.phase != domain.PhaseRunning {
		return
	}

	e.Mutate(context.Background(), -1)

	u := Update{Score: e.score, HighScore: e.highScore, Delta: -1}
	if e.score == 0 {
		e.EndGame(context.Background())
		u.GameOver = true
	}

	if onTick != nil {
		onTick(u)
	}
}

// Mutate adds delta to the score, clamping at zero. It only applies while the game is
// running and reports whether it did.
func (e *Engine) Mutate(ctx context.Context, delta int) bool {
	if e.phase != domain.PhaseRunning {
		return false
	}

	e.score = max(0, e.score+delta)
	if e.score > e.highScore {
		e.raiseHighScore(ctx)
	}

	if e.onChange != nil {
		e.onChange(Update{Score: e.score, HighScore: e.highScore, Delta: delta})
	}

	return true
}

// EndGame stops the timer and freezes the score. Calling it again has no effect.
func (e *Engine) EndGame(ctx context.Context) int {
	if e.phase == domain.PhaseGameOver {
		return e.score
	}

	e.StopTimer()
	e.phase = domain.PhaseGameOver

	if e.score > e.highScore {
		e.raiseHighScore(ctx)
	}

	return e.score
}

func (e *Engine) Phase() domain.Phase { return e.phase }

func (e *Engine) Score() int { return e.score }

func (e *Engine) HighScore() int { return e.highScore }

func (e *Engine) Mode() domain.Mode { return e.mode }

func (e *Engine) loadHighScore(ctx context.Context) int {
	if e.highScores == nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	hs, err := e.highScores.HighScore(ctx, e.mode)
	if err != nil {
		slog.ErrorContext(ctx, "score: load high score failed",
			"mode", e.mode,
			"error", err,
		)
		return 0
	}

	return hs
}

func (e *Engine) raiseHighScore(ctx context.Context) {
	e.highScore = e.score

	if e.highScores == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	stored, err := e.highScores.RaiseHighScore(ctx, e.mode, e.score)
	if err != nil {
		slog.ErrorContext(ctx, "score: persist high score failed",
			"mode", e.mode,
			"score", e.score,
			"error", err,
		)
		return
	}

	// Another game may have pushed the stored value higher.
	e.highScore = max(e.highScore, stored)
}

type stdTicker struct {
	t *time.Ticker
}

// NewTicker wraps time.Ticker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

func (t stdTicker) C() <-chan time.Time { return t.t.C }

func (t stdTicker) Stop() { t.t.Stop() }
