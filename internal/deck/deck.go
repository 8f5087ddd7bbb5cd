// Package deck implements the Face-Match deck: a shuffled queue of candidates that have not
// yet been answered correctly, and the pairing of each head candidate with a decoy.
//
// Initialize rejects an empty candidate set and also a set of one: a round needs a decoy, and
// a lone candidate has nobody to be paired with.
//
// A Deck is not safe for concurrent use; a game session drives it from its loop.
package deck

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/victornm/facematch/internal/domain"
)

const minCandidates = 2

type Config struct {
	// Rand is the random source for shuffles, decoys and coin flips. Defaults to a randomly
	// seeded PCG source.
	Rand *rand.Rand

	// OnDecoyFallback is called when the target has no same-gender decoy.
	OnDecoyFallback func(target domain.Candidate)
}

type Deck struct {
	rnd        *rand.Rand
	onFallback func(domain.Candidate)

	mode     domain.Mode
	all      []domain.Candidate
	byGender map[string][]int
	deck     []domain.Candidate

	// requeuedAtHead is the ID of the candidate that a wrong answer put straight back at
	// the head, if any.
	requeuedAtHead string
}

func New(c Config) *Deck {
	d := &Deck{
		rnd:        c.Rand,
		onFallback: c.OnDecoyFallback,
		mode:       domain.ModeEasy,
	}

	if d.rnd == nil {
		d.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return d
}

// Initialize loads the candidate universe. The deck stays empty until Reset.
func (d *Deck) Initialize(candidates []domain.Candidate) error {
	if len(candidates) == 0 {
		return domain.DataError("candidate set is empty")
	}

	if len(candidates) < minCandidates {
		return domain.DataError("candidate set needs at least %d candidates, got %d", minCandidates, len(candidates))
	}

	seen := make(map[string]struct{}, len(candidates))
	byGender := make(map[string][]int)
	for i, c := range candidates {
		if c.ID == "" {
			return domain.DataError("candidate %d has no id", i)
		}

		if c.FirstName == "" || c.LastName == "" {
			return domain.DataError("candidate %q has no name", c.ID)
		}

		if _, ok := seen[c.ID]; ok {
			return domain.DataError("duplicate candidate id: %q", c.ID)
		}
		seen[c.ID] = struct{}{}

		byGender[c.Gender] = append(byGender[c.Gender], i)
	}

	d.all = append([]domain.Candidate(nil), candidates...)
	d.byGender = byGender
	d.deck = nil
	d.requeuedAtHead = ""

	return nil
}

func (d *Deck) SetMode(m domain.Mode) error {
	if _, err := domain.ParseMode(string(m)); err != nil {
		return err
	}

	d.mode = m
	return nil
}

func (d *Deck) Mode() domain.Mode { return d.mode }

// Reset refills the deck with a uniform random permutation of all candidates.
func (d *Deck) Reset() {
	d.deck = append(d.deck[:0], d.all...)
	d.requeuedAtHead = ""

	// Fisher-Yates: after step i, deck[i:] is a uniform permutation of what was left.
	for i := len(d.deck) - 1; i > 0; i-- {
		j := d.rnd.IntN(i + 1)
		d.deck[i], d.deck[j] = d.deck[j], d.deck[i]
	}
}

// NextPair builds a round for the head of the deck without removing it.
func (d *Deck) NextPair() (domain.Pair, error) {
	if len(d.deck) == 0 {
		return domain.Pair{}, domain.ErrDeckExhausted
	}

	target := d.deck[0]

	decoy, err := d.decoyFor(target)
	fallback := false
	if err != nil {
		slog.WarnContext(context.Background(), "deck: no decoy shares the target's gender, picking any other candidate",
			"target", target.ID,
			"gender", target.Gender,
		)

		if d.onFallback != nil {
			d.onFallback(target)
		}

		decoy = d.anyOther(target)
		fallback = true
	}

	p := domain.Pair{
		Target:       target,
		Decoy:        decoy,
		IsTopCorrect: d.rnd.IntN(2) == 0,
		Fallback:     fallback,
	}

	targetLabel, decoyLabel := d.Label(target), d.Label(decoy)
	if p.IsTopCorrect {
		p.TopLabel, p.BottomLabel = targetLabel, decoyLabel
	} else {
		p.TopLabel, p.BottomLabel = decoyLabel, targetLabel
	}

	return p, nil
}

// Label returns the name shown for c. In hard mode it is resampled on every call.
func (d *Deck) Label(c domain.Candidate) string {
	if d.mode == domain.ModeHard && d.rnd.IntN(2) == 1 {
		return c.LastName
	}

	return c.FirstName
}

func (d *Deck) decoyFor(target domain.Candidate) (domain.Candidate, error) {
	pool := d.byGender[target.Gender]

	// The target itself is in its own gender pool.
	n := len(pool) - 1
	if n <= 0 {
		return domain.Candidate{}, domain.ErrNoDecoyAvailable
	}

	k := d.rnd.IntN(n)
	for _, idx := range pool {
		c := d.all[idx]
		if c.ID == target.ID {
			continue
		}

		if k == 0 {
			return c, nil
		}
		k--
	}

	return domain.Candidate{}, domain.ErrNoDecoyAvailable
}

func (d *Deck) anyOther(target domain.Candidate) domain.Candidate {
	k := d.rnd.IntN(len(d.all) - 1)
	for _, c := range d.all {
		if c.ID == target.ID {
			continue
		}

		if k == 0 {
			return c
		}
		k--
	}

	// Unreachable: Initialize guarantees at least two distinct candidates.
	return target
}

// Resolve records the answer to p and reports whether it was correct. A correct answer
// removes the head; a wrong one moves it to a random position of the remaining deck.
func (d *Deck) Resolve(wasTopChosen bool, p domain.Pair) bool {
	correct := p.Correct(wasTopChosen)

	if len(d.deck) == 0 {
		return correct
	}

	head := d.deck[0]
	d.deck = d.deck[1:]

	if correct {
		d.requeuedAtHead = ""
		return correct
	}

	lo := 0
	if head.ID == d.requeuedAtHead && len(d.deck) > 0 {
		// Already repeated once in a row: let someone else go first.
		lo = 1
	}

	idx := lo + d.rnd.IntN(len(d.deck)+1-lo)
	d.deck = append(d.deck, domain.Candidate{})
	copy(d.deck[idx+1:], d.deck[idx:])
	d.deck[idx] = head

	if idx == 0 {
		d.requeuedAtHead = head.ID
	} else {
		d.requeuedAtHead = ""
	}

	return correct
}

func (d *Deck) Remaining() int { return len(d.deck) }

func (d *Deck) Total() int { return len(d.all) }
