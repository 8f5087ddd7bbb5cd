package leaderboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/victornm/facematch/internal/domain"
	"github.com/victornm/facematch/internal/errors"
)

// schemaVersion is the version written by encodeTable. Version 0 is the bare JSON array that
// older clients stored.
const schemaVersion = 1

// ErrMalformed is returned when a persisted value fails to decode or validate.
var ErrMalformed = errors.New(errors.CodeDataLoss, errors.WithMessage("malformed leaderboard data"))

type table struct {
	Version int          `json:"version"`
	Entries []tableEntry `json:"entries" validate:"dive"`
}

type tableEntry struct {
	Name  string    `json:"name" validate:"required"`
	Score int       `json:"score" validate:"gte=0"`
	Date  time.Time `json:"date" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func decodeTable(b []byte, size int) ([]domain.LeaderboardEntry, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}

	var t table
	switch b[0] {
	case '[':
		if err := json.Unmarshal(b, &t.Entries); err != nil {
			return nil, malformed(err)
		}
		t.Version = 0
	case '{':
		if err := json.Unmarshal(b, &t); err != nil {
			return nil, malformed(err)
		}
		if t.Version < 1 || t.Version > schemaVersion {
			return nil, malformed(fmt.Errorf("unsupported version %d", t.Version))
		}
	default:
		return nil, malformed(fmt.Errorf("unexpected leading byte %q", b[0]))
	}

	if err := validate.Struct(t); err != nil {
		return nil, malformed(err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(t.Entries))
	for _, e := range t.Entries {
		entries = append(entries, domain.LeaderboardEntry{
			Name:  e.Name,
			Score: e.Score,
			Date:  e.Date,
		})
	}

	// Older writers did not always keep the table ordered or bounded.
	rank(entries)
	if len(entries) > size {
		entries = entries[:size]
	}

	return entries, nil
}

func encodeTable(entries []domain.LeaderboardEntry) ([]byte, error) {
	t := table{
		Version: schemaVersion,
		Entries: make([]tableEntry, 0, len(entries)),
	}

	for _, e := range entries {
		t.Entries = append(t.Entries, tableEntry{
			Name:  e.Name,
			Score: e.Score,
			Date:  e.Date.UTC(),
		})
	}

	return json.Marshal(t)
}

// rank sorts by score desc, then date desc. Equal entries keep their relative order.
func rank(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Date.After(entries[j].Date)
	})
}

func decodeInt(b []byte) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || n < 0 {
		return 0, malformed(fmt.Errorf("invalid integer %q", b))
	}

	return n, nil
}

func encodeInt(n int) []byte {
	return []byte(strconv.Itoa(n))
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
