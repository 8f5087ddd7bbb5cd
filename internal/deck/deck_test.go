package deck_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/facematch/internal/deck"
	"github.com/victornm/facematch/internal/domain"
)

func TestDeck_Initialize(t *testing.T) {
	tests := map[string]struct {
		candidates []domain.Candidate
		wantErr    bool
	}{
		"empty set is a data error": {
			candidates: nil,
			wantErr:    true,
		},
		"a single candidate cannot form a pair": {
			candidates: []domain.Candidate{person("a", "m")},
			wantErr:    true,
		},
		"duplicate ids are rejected": {
			candidates: []domain.Candidate{person("a", "m"), person("a", "f")},
			wantErr:    true,
		},
		"missing names are rejected": {
			candidates: []domain.Candidate{person("a", "m"), {ID: "b", Gender: "m"}},
			wantErr:    true,
		},
		"valid set": {
			candidates: []domain.Candidate{person("a", "m"), person("b", "m")},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d := deck.New(deck.Config{})
			err := d.Initialize(tt.candidates)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrData)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, len(tt.candidates), d.Total())
			assert.Zero(t, d.Remaining(), "deck stays empty until reset")
		})
	}
}

func TestDeck_ResetIsUniform(t *testing.T) {
	const (
		n      = 5
		rounds = 50000
	)

	d := makeDeck(t, people(n, "m"), 1)

	firsts := make(map[string]int)
	perms := make(map[string]int)
	for range rounds {
		d.Reset()
		require.Equal(t, n, d.Remaining())

		var key string
		for i := 0; d.Remaining() > 0; i++ {
			p, err := d.NextPair()
			require.NoError(t, err)
			if i == 0 {
				firsts[p.Target.ID]++
			}
			key += p.Target.ID
			d.Resolve(p.IsTopCorrect, p)
		}
		perms[key]++
	}

	// Every candidate is first ~1/n of the time.
	expected := float64(rounds) / n
	for id, c := range firsts {
		assert.InDelta(t, expected, float64(c), expected*0.05, "candidate %s first %d times", id, c)
	}

	// All n! permutations show up with roughly equal frequency.
	require.Len(t, perms, 120)
	expected = float64(rounds) / 120
	for k, c := range perms {
		assert.InDelta(t, expected, float64(c), expected*0.25, "permutation %s seen %d times", k, c)
	}
}

func TestDeck_NextPairDecoyMatchesGender(t *testing.T) {
	candidates := append(people(4, "m"), people(4, "f")...)
	d := makeDeck(t, candidates, 7)

	for range 500 {
		d.Reset()
		p, err := d.NextPair()
		require.NoError(t, err)

		assert.Equal(t, p.Target.Gender, p.Decoy.Gender)
		assert.NotEqual(t, p.Target.ID, p.Decoy.ID)
		assert.False(t, p.Fallback)
	}
}

func TestDeck_NextPairFallsBackWhenGenderIsUnique(t *testing.T) {
	// Scenario: A(m), B(m), C(f).
	a, b, c := person("A", "m"), person("B", "m"), person("C", "f")

	var fallbacks []string
	d := deck.New(deck.Config{
		Rand: rand.New(rand.NewPCG(3, 4)),
		OnDecoyFallback: func(target domain.Candidate) {
			fallbacks = append(fallbacks, target.ID)
		},
	})
	require.NoError(t, d.Initialize([]domain.Candidate{a, b, c}))

	seenDecoysForC := make(map[string]bool)
	for range 300 {
		d.Reset()
		p, err := d.NextPair()
		require.NoError(t, err)

		switch p.Target.ID {
		case "A":
			assert.Equal(t, "B", p.Decoy.ID)
			assert.False(t, p.Fallback)
		case "B":
			assert.Equal(t, "A", p.Decoy.ID)
			assert.False(t, p.Fallback)
		case "C":
			assert.Contains(t, []string{"A", "B"}, p.Decoy.ID)
			assert.True(t, p.Fallback)
			seenDecoysForC[p.Decoy.ID] = true
		}
	}

	assert.Len(t, seenDecoysForC, 2, "fallback decoy should be drawn from every other candidate")
	assert.NotEmpty(t, fallbacks)
	for _, id := range fallbacks {
		assert.Equal(t, "C", id)
	}
}

func TestDeck_NextPairOnEmptyDeck(t *testing.T) {
	d := makeDeck(t, people(2, "m"), 1)

	_, err := d.NextPair()
	require.ErrorIs(t, err, domain.ErrDeckExhausted, "deck is empty before reset")
}

func TestDeck_ResolveCorrectShrinksDeck(t *testing.T) {
	d := makeDeck(t, people(3, "m"), 1)
	d.Reset()

	p, err := d.NextPair()
	require.NoError(t, err)

	assert.True(t, d.Resolve(p.IsTopCorrect, p))
	assert.Equal(t, 2, d.Remaining())

	for d.Remaining() > 0 {
		next, err := d.NextPair()
		require.NoError(t, err)
		assert.NotEqual(t, p.Target.ID, next.Target.ID, "answered candidate must not come back")
		d.Resolve(next.IsTopCorrect, next)
	}
}

func TestDeck_ResolveWrongKeepsSize(t *testing.T) {
	d := makeDeck(t, people(4, "m"), 1)
	d.Reset()

	for range 100 {
		p, err := d.NextPair()
		require.NoError(t, err)

		assert.False(t, d.Resolve(!p.IsTopCorrect, p))
		assert.Equal(t, 4, d.Remaining())
	}
}

func TestDeck_WrongAnswersNeverRepeatTwiceInARow(t *testing.T) {
	for _, n := range []int{2, 3, 6} {
		t.Run(fmt.Sprintf("deck of %d", n), func(t *testing.T) {
			d := makeDeck(t, people(n, "m"), uint64(n))
			d.Reset()

			var (
				prev     string
				streak   int
				repeated bool
			)
			for range 2000 {
				p, err := d.NextPair()
				require.NoError(t, err)

				if p.Target.ID == prev {
					streak++
					repeated = true
				} else {
					streak = 0
				}
				require.LessOrEqual(t, streak, 1, "candidate %s shown three times in a row", p.Target.ID)

				prev = p.Target.ID
				d.Resolve(!p.IsTopCorrect, p)
			}

			assert.True(t, repeated, "an immediate single repeat is allowed and should happen")
		})
	}
}

func TestDeck_SingleCandidateLeftRepeatsAndThenExhausts(t *testing.T) {
	d := makeDeck(t, people(2, "m"), 9)
	d.Reset()

	first, err := d.NextPair()
	require.NoError(t, err)
	d.Resolve(first.IsTopCorrect, first)
	require.Equal(t, 1, d.Remaining())

	last, err := d.NextPair()
	require.NoError(t, err)

	// With one candidate left, wrong answers keep showing it.
	for range 5 {
		d.Resolve(!last.IsTopCorrect, last)
		again, err := d.NextPair()
		require.NoError(t, err)
		require.Equal(t, last.Target.ID, again.Target.ID)
		last = again
	}

	assert.True(t, d.Resolve(last.IsTopCorrect, last))
	assert.Zero(t, d.Remaining())

	_, err = d.NextPair()
	assert.ErrorIs(t, err, domain.ErrDeckExhausted)
}

func TestDeck_Labels(t *testing.T) {
	candidates := []domain.Candidate{
		{ID: "1", FirstName: "Ada", LastName: "Lovelace", Gender: "f"},
		{ID: "2", FirstName: "Grace", LastName: "Hopper", Gender: "f"},
	}

	t.Run("easy mode shows first names", func(t *testing.T) {
		d := makeDeck(t, candidates, 1)
		require.NoError(t, d.SetMode(domain.ModeEasy))

		for range 50 {
			d.Reset()
			p, err := d.NextPair()
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"Ada", "Grace"}, []string{p.TopLabel, p.BottomLabel})
		}
	})

	t.Run("hard mode flips between first and last name", func(t *testing.T) {
		d := makeDeck(t, candidates, 1)
		require.NoError(t, d.SetMode(domain.ModeHard))

		seen := make(map[string]bool)
		for range 200 {
			d.Reset()
			p, err := d.NextPair()
			require.NoError(t, err)

			correct := p.BottomLabel
			if p.IsTopCorrect {
				correct = p.TopLabel
			}
			assert.Contains(t, []string{p.Target.FirstName, p.Target.LastName}, correct)
			seen[correct] = true
		}
		assert.Len(t, seen, 4)
	})

	t.Run("unknown mode is rejected", func(t *testing.T) {
		d := makeDeck(t, candidates, 1)
		require.Error(t, d.SetMode("expert"))
		assert.Equal(t, domain.ModeEasy, d.Mode())
	})
}

func TestDeck_SlotIsAFairCoin(t *testing.T) {
	d := makeDeck(t, people(3, "m"), 11)
	d.Reset()

	top := 0
	const rounds = 10000
	for range rounds {
		p, err := d.NextPair()
		require.NoError(t, err)
		if p.IsTopCorrect {
			top++
		}
	}

	assert.InDelta(t, rounds/2, top, rounds*0.03)
}

func makeDeck(t *testing.T, candidates []domain.Candidate, seed uint64) *deck.Deck {
	t.Helper()

	d := deck.New(deck.Config{
		Rand: rand.New(rand.NewPCG(seed, seed*31+7)),
	})
	require.NoError(t, d.Initialize(candidates))
	return d
}

func person(id, gender string) domain.Candidate {
	return domain.Candidate{
		ID:        id,
		FirstName: "First" + id,
		LastName:  "Last" + id,
		Image:     id + ".jpg",
		Gender:    gender,
	}
}

func people(n int, gender string) []domain.Candidate {
	out := make([]domain.Candidate, 0, n)
	for i := range n {
		out = append(out, person(fmt.Sprintf("%s%d", gender, i), gender))
	}
	return out
}
