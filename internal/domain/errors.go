package domain

import (
	stderrors "errors"

	"github.com/victornm/facematch/internal/errors"
)

var (
	// ErrData marks candidate data that cannot start a game.
	ErrData = stderrors.New("data error")

	// ErrDeckExhausted is returned when a pair is requested from an empty deck.
	ErrDeckExhausted = errors.New(errors.CodeOutOfRange, errors.WithMessage("deck exhausted"))

	// ErrNoDecoyAvailable is returned when no candidate shares the target's gender.
	ErrNoDecoyAvailable = errors.New(errors.CodeNotFound, errors.WithMessage("no decoy available"))
)

// DataError builds an InvalidArgument error that matches ErrData.
func DataError(format string, args ...any) error {
	return errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef(format, args...),
		errors.WithCause(ErrData),
	)
}
