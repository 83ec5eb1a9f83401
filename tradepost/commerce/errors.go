package commerce

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkarlovic/tradepost/tradepost/database/repositories"
)

// Error taxonomy for every state-machine operation. Callers classify with
// errors.Is; the request layer collapses ErrNotFound and ErrNotAuthorized
// into one generic forbidden outcome so clients cannot probe for entity
// existence.
var (
	ErrNotFound          = errors.New("entity not found")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrStorage           = errors.New("storage failure")
	ErrTimeout           = errors.New("storage timeout")
)

// Forbidden reports whether err belongs to the collapsed forbidden outcome.
func Forbidden(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotAuthorized)
}

// Transient reports whether retrying the whole operation may succeed.
func Transient(err error) bool {
	return errors.Is(err, ErrStorage) || errors.Is(err, ErrTimeout)
}

// classifyStorage maps a repository error onto the taxonomy.
func classifyStorage(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%v: %w", err, ErrTimeout)
	default:
		return fmt.Errorf("%v: %w", err, ErrStorage)
	}
}
