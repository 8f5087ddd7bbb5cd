package leaderboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/victornm/facematch/internal/domain"
	"github.com/victornm/facematch/internal/errors"
	"github.com/victornm/facematch/internal/event"
	"github.com/victornm/facematch/internal/storage"
)

const (
	defaultSize   = 10
	anonymousName = "Anonymous"
	maxNameLength = 20
)

type Config struct {
	EventBus *event.Bus
	Storage  storage.Store
	// Prefix is prepended to every key as "<prefix>:" when not empty.
	Prefix string
	// Size is the number of entries kept per mode. Defaults to 10.
	Size int
	Now  func() time.Time
}

// Service keeps one ranked table per mode, the per-mode high score and the score handoff
// between game over and name entry.
type Service struct {
	eb     *event.Bus
	store  storage.Store
	prefix string
	size   int
	now    func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		store:  c.Storage,
		prefix: c.Prefix,
		size:   c.Size,
		now:    c.Now,
	}

	if s.size <= 0 {
		s.size = defaultSize
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type GetScoresRequest struct {
	Mode domain.Mode
}

// GetScores returns the ranked table for a mode. A mode nobody played yet has no entries.
func (s *Service) GetScores(ctx context.Context, req GetScoresRequest) (*domain.Leaderboard, error) {
	if _, err := domain.ParseMode(string(req.Mode)); err != nil {
		return nil, err
	}

	entries, err := s.load(ctx, req.Mode)
	if err != nil {
		return nil, err
	}

	return &domain.Leaderboard{
		Mode:    req.Mode,
		Entries: entries,
	}, nil
}

type IsHighScoreRequest struct {
	Mode  domain.Mode
	Score int
}

// IsHighScore reports whether score would enter the table: either the table has a free slot,
// or score is strictly greater than the lowest entry.
func (s *Service) IsHighScore(ctx context.Context, req IsHighScoreRequest) (bool, error) {
	l, err := s.GetScores(ctx, GetScoresRequest{Mode: req.Mode})
	if err != nil {
		return false, err
	}

	if len(l.Entries) < s.size {
		return true, nil
	}

	return req.Score > l.Entries[len(l.Entries)-1].Score, nil
}

type AddScoreRequest struct {
	Mode  domain.Mode
	Name  string
	Score int
}

// AddScore inserts an entry stamped with the current time, re-ranks and truncates the table.
// It does not check IsHighScore: an entry that ranks below the cut is simply dropped.
func (s *Service) AddScore(ctx context.Context, req AddScoreRequest) (*domain.Leaderboard, error) {
	if _, err := domain.ParseMode(string(req.Mode)); err != nil {
		return nil, err
	}

	if req.Score < 0 {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("negative score: %d", req.Score))
	}

	entry := domain.LeaderboardEntry{
		Name:  normalizeName(req.Name),
		Score: req.Score,
		Date:  s.now().UTC(),
	}

	var entries []domain.LeaderboardEntry
	err := s.store.Update(ctx, s.leaderboardKey(req.Mode), func(cur []byte) ([]byte, error) {
		old, err := decodeTable(cur, s.size)
		if err != nil {
			return nil, err
		}

		// The newest entry goes first so it wins ties on identical timestamps.
		entries = append([]domain.LeaderboardEntry{entry}, old...)
		rank(entries)
		if len(entries) > s.size {
			entries = entries[:s.size]
		}

		return encodeTable(entries)
	})
	if err != nil {
		return nil, fmt.Errorf("leaderboard: add score: %w", err)
	}

	l := &domain.Leaderboard{Mode: req.Mode, Entries: entries}
	s.publish(ctx, l)

	slog.InfoContext(ctx, "leaderboard: score added",
		"mode", req.Mode,
		"name", entry.Name,
		"score", entry.Score,
	)

	return l, nil
}

type ClearScoresRequest struct {
	Mode domain.Mode
}

// ClearScores persists an empty table for the mode.
func (s *Service) ClearScores(ctx context.Context, req ClearScoresRequest) error {
	if _, err := domain.ParseMode(string(req.Mode)); err != nil {
		return err
	}

	b, err := encodeTable(nil)
	if err != nil {
		return err
	}

	if err := s.store.Set(ctx, s.leaderboardKey(req.Mode), b); err != nil {
		return fmt.Errorf("leaderboard: clear scores: %w", err)
	}

	s.publish(ctx, &domain.Leaderboard{Mode: req.Mode})
	return nil
}

// HighScore returns the best score ever reached in a mode. Unreadable values count as zero.
func (s *Service) HighScore(ctx context.Context, mode domain.Mode) (int, error) {
	b, err := s.store.Get(ctx, s.highScoreKey(mode))
	if stderrors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("leaderboard: get high score: %w", err)
	}

	n, err := decodeInt(b)
	if err != nil {
		slog.WarnContext(ctx, "leaderboard: ignoring malformed high score",
			"mode", mode,
			"error", err,
		)
		return 0, nil
	}

	return n, nil
}

// RaiseHighScore stores score as the mode's high score unless a higher one is already stored,
// and returns the stored value.
func (s *Service) RaiseHighScore(ctx context.Context, mode domain.Mode, score int) (int, error) {
	best := score
	err := s.store.Update(ctx, s.highScoreKey(mode), func(cur []byte) ([]byte, error) {
		best = score
		if cur != nil {
			if n, err := decodeInt(cur); err == nil && n > best {
				best = n
			}
		}
		return encodeInt(best), nil
	})
	if err != nil {
		return 0, fmt.Errorf("leaderboard: raise high score: %w", err)
	}

	return best, nil
}

// SaveLastGameScore records the final score of a game for the name-entry step.
func (s *Service) SaveLastGameScore(ctx context.Context, gameID string, score int) error {
	if err := s.store.Set(ctx, s.lastGameScoreKey(gameID), encodeInt(score)); err != nil {
		return fmt.Errorf("leaderboard: save last game score: %w", err)
	}

	return nil
}

// LastGameScore returns the score saved for a game. It stays saved until DeleteLastGameScore.
func (s *Service) LastGameScore(ctx context.Context, gameID string) (int, error) {
	b, err := s.store.Get(ctx, s.lastGameScoreKey(gameID))
	if stderrors.Is(err, storage.ErrNotFound) {
		return 0, errors.New(errors.CodeNotFound, errors.WithMessagef("no final score for game %s", gameID))
	}

	if err != nil {
		return 0, fmt.Errorf("leaderboard: get last game score: %w", err)
	}

	return decodeInt(b)
}

// DeleteLastGameScore removes the score saved for a game once it reached the table.
func (s *Service) DeleteLastGameScore(ctx context.Context, gameID string) error {
	if err := s.store.Delete(ctx, s.lastGameScoreKey(gameID)); err != nil {
		return fmt.Errorf("leaderboard: delete last game score: %w", err)
	}

	return nil
}

func (s *Service) load(ctx context.Context, mode domain.Mode) ([]domain.LeaderboardEntry, error) {
	b, err := s.store.Get(ctx, s.leaderboardKey(mode))
	if stderrors.Is(err, storage.ErrNotFound) {
		return []domain.LeaderboardEntry{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("leaderboard: get scores: %w", err)
	}

	entries, err := decodeTable(b, s.size)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: mode %s: %w", mode, err)
	}

	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	return entries, nil
}

func (s *Service) publish(ctx context.Context, l *domain.Leaderboard) {
	if s.eb == nil {
		return
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})
}

func (s *Service) leaderboardKey(mode domain.Mode) string {
	return s.key("leaderboard_" + string(mode))
}

func (s *Service) highScoreKey(mode domain.Mode) string {
	return s.key("highScore_" + string(mode))
}

func (s *Service) lastGameScoreKey(gameID string) string {
	return s.key("lastGameScore_" + gameID)
}

func (s *Service) key(k string) string {
	if s.prefix == "" {
		return k
	}

	return s.prefix + ":" + k
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return anonymousName
	}

	if r := []rune(name); len(r) > maxNameLength {
		name = string(r[:maxNameLength])
	}

	return name
}
