package leaderboard_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/facematch/internal/domain"
	"github.com/victornm/facematch/internal/errors"
	"github.com/victornm/facematch/internal/event"
	"github.com/victornm/facematch/internal/leaderboard"
	"github.com/victornm/facematch/internal/storage"
	"github.com/victornm/facematch/internal/storage/redis"
)

func TestService_IsHighScore(t *testing.T) {
	type (
		inputs struct {
			existing []int
			score    int
		}

		outputs struct {
			ok bool
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"empty table accepts any score": {
			arrange: func() inputs {
				return inputs{score: 0}
			},
			assert: func(t *testing.T, out outputs) {
				assert.True(t, out.ok)
			},
		},
		"table with a free slot accepts a low score": {
			arrange: func() inputs {
				return inputs{existing: []int{90, 80, 70}, score: 1}
			},
			assert: func(t *testing.T, out outputs) {
				assert.True(t, out.ok)
			},
		},
		"full table rejects a score equal to the lowest": {
			arrange: func() inputs {
				return inputs{existing: []int{100, 95, 90, 85, 80, 75, 70, 65, 60, 50}, score: 50}
			},
			assert: func(t *testing.T, out outputs) {
				assert.False(t, out.ok)
			},
		},
		"full table accepts a score above the lowest": {
			arrange: func() inputs {
				return inputs{existing: []int{100, 95, 90, 85, 80, 75, 70, 65, 60, 50}, score: 51}
			},
			assert: func(t *testing.T, out outputs) {
				assert.True(t, out.ok)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			in := tt.arrange()
			s := makeService(t)
			ctx := context.Background()

			for i, sc := range in.existing {
				_, err := s.AddScore(ctx, leaderboard.AddScoreRequest{
					Mode:  domain.ModeEasy,
					Name:  fmt.Sprintf("p%d", i),
					Score: sc,
				})
				require.NoError(t, err)
			}

			ok, err := s.IsHighScore(ctx, leaderboard.IsHighScoreRequest{
				Mode:  domain.ModeEasy,
				Score: in.score,
			})
			require.NoError(t, err)

			tt.assert(t, outputs{ok: ok})
		})
	}
}

func TestService_AddScoreKeepsTopTenOrdered(t *testing.T) {
	for name, opts := range backends() {
		t.Run(name, func(t *testing.T) {
			s := makeService(t, opts...)
			ctx := context.Background()
			rnd := rand.New(rand.NewPCG(1, 2))

			for i := range 40 {
				l, err := s.AddScore(ctx, leaderboard.AddScoreRequest{
					Mode:  domain.ModeHard,
					Name:  fmt.Sprintf("p%d", i),
					Score: rnd.IntN(20),
				})
				require.NoError(t, err)
				assertRanked(t, l.Entries)

				stored, err := s.GetScores(ctx, leaderboard.GetScoresRequest{Mode: domain.ModeHard})
				require.NoError(t, err)
				require.Equal(t, l.Entries, stored.Entries)
			}
		})
	}
}

func TestService_AddScoreOrdering(t *testing.T) {
	clock := newClock()
	s := makeService(t, withNow(clock.Now))
	ctx := context.Background()

	add := func(name string, score int) {
		_, err := s.AddScore(ctx, leaderboard.AddScoreRequest{Mode: domain.ModeEasy, Name: name, Score: score})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	add("old", 10)
	add("best", 30)
	add("new", 10)
	add("low", 5)

	l, err := s.GetScores(ctx, leaderboard.GetScoresRequest{Mode: domain.ModeEasy})
	require.NoError(t, err)
	assert.Equal(t, []string{"best", "new", "old", "low"}, names(l.Entries))
}

func TestService_AddScoreTieOnSameInstantPrefersNewest(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := makeService(t, withNow(func() time.Time { return now }))
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		_, err := s.AddScore(ctx, leaderboard.AddScoreRequest{Mode: domain.ModeEasy, Name: name, Score: 7})
		require.NoError(t, err)
	}

	l, err := s.GetScores(ctx, leaderboard.GetScoresRequest{Mode: domain.ModeEasy})
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, names(l.Entries))
}

func TestService_AddScoreBelowTheCutIsDropped(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	for i := range 10 {
		_, err := s.AddScore(ctx, leaderboard.AddScoreRequest{Mode: domain.ModeEasy, Name: "p", Score: 50 + i})
		require.NoError(t, err)
	}

	l, err := s.AddScore(ctx, leaderboard.AddScoreRequest{Mode: domain.ModeEasy, Name: "late", Score: 1})
	require.NoError(t, err)
	assert.Len(t, l.Entries, 10)
	assert.NotContains(t, names(l.Entries), "late")
}

func TestService_AddScoreNormalizesName(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	_, err := s.AddScore(ctx, leaderboard.AddScoreRequest{Mode: domain.ModeEasy, Name: "   ", Score: 3})
	require.NoError(t, err)
	_, err = s.AddScore(ctx, leaderboard.AddScoreRequest{Mode: domain.ModeEasy, Name: "a very long player name indeed", Score: 2})
	require.NoError(t, err)

	l, err := s.GetScores(ctx, leaderboard.GetScoresRequest{Mode: domain.ModeEasy})
	require.NoError(t, err)
	assert.Equal(t, []string{"Anonymous", "a very long player n"}, names(l.Entries))
}

func TestService_RejectsInvalidInput(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	_, err := s.AddScore(ctx, leaderboard.AddScoreRequest{Mode: "expert", Name: "x", Score: 1})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = s.AddScore(ctx, leaderboard.AddScoreRequest{Mode: domain.ModeEasy, Name: "x", Score: -1})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = s.GetScores(ctx, leaderboard.GetScoresRequest{Mode: ""})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
}

func TestService_ModesAreIndependent(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	_, err := s.AddScore(ctx, leaderboard.AddScoreRequest{Mode: domain.ModeEasy, Name: "e", Score: 5})
	require.NoError(t, err)

	hard, err := s.GetScores(ctx, leaderboard.GetScoresRequest{Mode: domain.ModeHard})
	require.NoError(t, err)
	assert.Empty(t, hard.Entries)
}

func TestService_ClearScores(t *testing.T) {
	st := storage.NewMemory()
	s := makeService(t, withStorage(st))
	ctx := context.Background()

	_, err := s.AddScore(ctx, leaderboard.AddScoreRequest{Mode: domain.ModeEasy, Name: "e", Score: 5})
	require.NoError(t, err)

	require.NoError(t, s.ClearScores(ctx, leaderboard.ClearScoresRequest{Mode: domain.ModeEasy}))

	l, err := s.GetScores(ctx, leaderboard.GetScoresRequest{Mode: domain.ModeEasy})
	require.NoError(t, err)
	assert.Empty(t, l.Entries)

	raw, err := st.Get(ctx, "leaderboard_easy")
	require.NoError(t, err, "the empty table is persisted")
	assert.JSONEq(t, `{"version":1,"entries":[]}`, string(raw))
}

func TestService_LoadsPersistedData(t *testing.T) {
	tests := map[string]struct {
		raw       string
		wantNames []string
		wantErr   bool
	}{
		"legacy bare array is migrated and re-ranked": {
			raw: `[{"name":"b","score":3,"date":"2024-01-02T00:00:00Z"},
			       {"name":"a","score":9,"date":"2024-01-01T00:00:00Z"}]`,
			wantNames: []string{"a", "b"},
		},
		"current version": {
			raw:       `{"version":1,"entries":[{"name":"a","score":9,"date":"2024-01-01T00:00:00Z"}]}`,
			wantNames: []string{"a"},
		},
		"future version is rejected": {
			raw:     `{"version":2,"entries":[]}`,
			wantErr: true,
		},
		"entry without a name is rejected": {
			raw:     `{"version":1,"entries":[{"name":"","score":9,"date":"2024-01-01T00:00:00Z"}]}`,
			wantErr: true,
		},
		"negative score is rejected": {
			raw:     `{"version":1,"entries":[{"name":"x","score":-4,"date":"2024-01-01T00:00:00Z"}]}`,
			wantErr: true,
		},
		"garbage is rejected": {
			raw:     `not json`,
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			st := storage.NewMemory()
			require.NoError(t, st.Set(context.Background(), "fm:leaderboard_easy", []byte(tt.raw)))

			s := makeService(t, withStorage(st), withPrefix("fm"))
			l, err := s.GetScores(context.Background(), leaderboard.GetScoresRequest{Mode: domain.ModeEasy})
			if tt.wantErr {
				require.ErrorIs(t, err, leaderboard.ErrMalformed)
				assert.True(t, errors.Is(err, errors.CodeDataLoss))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, names(l.Entries))
		})
	}
}

func TestService_HighScore(t *testing.T) {
	for name, opts := range backends() {
		t.Run(name, func(t *testing.T) {
			s := makeService(t, opts...)
			ctx := context.Background()

			hs, err := s.HighScore(ctx, domain.ModeEasy)
			require.NoError(t, err)
			assert.Zero(t, hs)

			got, err := s.RaiseHighScore(ctx, domain.ModeEasy, 12)
			require.NoError(t, err)
			assert.Equal(t, 12, got)

			got, err = s.RaiseHighScore(ctx, domain.ModeEasy, 4)
			require.NoError(t, err)
			assert.Equal(t, 12, got, "a lower score never replaces the high score")

			hs, err = s.HighScore(ctx, domain.ModeEasy)
			require.NoError(t, err)
			assert.Equal(t, 12, hs)

			hs, err = s.HighScore(ctx, domain.ModeHard)
			require.NoError(t, err)
			assert.Zero(t, hs)
		})
	}
}

func TestService_MalformedHighScoreCountsAsZero(t *testing.T) {
	st := storage.NewMemory()
	require.NoError(t, st.Set(context.Background(), "highScore_easy", []byte("NaN")))

	s := makeService(t, withStorage(st))
	hs, err := s.HighScore(context.Background(), domain.ModeEasy)
	require.NoError(t, err)
	assert.Zero(t, hs)
}

func TestService_LastGameScore(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLastGameScore(ctx, "g1", 17))

	n, err := s.LastGameScore(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 17, n)

	n, err = s.LastGameScore(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 17, n, "reading does not consume the score")

	require.NoError(t, s.DeleteLastGameScore(ctx, "g1"))
	_, err = s.LastGameScore(ctx, "g1")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_PublishesLeaderboardUpdated(t *testing.T) {
	eb := event.NewBus()

	var (
		mu        sync.Mutex
		published []domain.EventLeaderboardUpdated
	)
	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		published = append(published, e.(domain.EventLeaderboardUpdated))
		mu.Unlock()
		return nil
	})

	s := makeService(t, withEventBus(eb))
	ctx := context.Background()

	_, err := s.AddScore(ctx, leaderboard.AddScoreRequest{Mode: domain.ModeHard, Name: "h", Score: 5})
	require.NoError(t, err)
	eb.Stop()

	require.NoError(t, s.ClearScores(ctx, leaderboard.ClearScoresRequest{Mode: domain.ModeHard}))
	eb.Stop()

	require.Len(t, published, 2)
	assert.Equal(t, domain.ModeHard, published[0].Leaderboard.Mode)
	assert.Len(t, published[0].Leaderboard.Entries, 1)
	assert.Empty(t, published[1].Leaderboard.Entries)
}

func assertRanked(t *testing.T, entries []domain.LeaderboardEntry) {
	t.Helper()

	require.LessOrEqual(t, len(entries), 10)
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		require.GreaterOrEqual(t, prev.Score, cur.Score, "entries must be sorted by score desc")
		if prev.Score == cur.Score {
			require.False(t, cur.Date.After(prev.Date), "ties must be sorted by date desc")
		}
	}
}

func names(entries []domain.LeaderboardEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func backends() map[string][]options {
	return map[string][]options{
		"memory": nil,
		"redis":  {withRedis()},
	}
}

func makeService(t *testing.T, opts ...options) *leaderboard.Service {
	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Storage:  storage.NewMemory(),
	}

	for _, opt := range opts {
		opt(t, &c)
	}

	return leaderboard.NewService(c)
}

type options func(t *testing.T, c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(_ *testing.T, c *leaderboard.Config) {
		c.EventBus = eb
	}
}

func withStorage(s storage.Store) options {
	return func(_ *testing.T, c *leaderboard.Config) {
		c.Storage = s
	}
}

func withPrefix(p string) options {
	return func(_ *testing.T, c *leaderboard.Config) {
		c.Prefix = p
	}
}

func withNow(now func() time.Time) options {
	return func(_ *testing.T, c *leaderboard.Config) {
		c.Now = now
	}
}

func withRedis() options {
	return func(t *testing.T, c *leaderboard.Config) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		rs := miniredis.RunT(t)
		rc := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs: []string{rs.Addr()},
		})
		t.Cleanup(func() { rc.Close() })
		require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

		c.Storage = redis.New(rc)
		c.Prefix = "test"
	}
}
