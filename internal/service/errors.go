package service

import (
	"errors"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
)

// isConflict reports whether err is a conditional update lost to a
// concurrent invocation.
func isConflict(err error) bool {
	var conflict *domain.ErrConflict
	return errors.As(err, &conflict)
}

func isNotFound(err error) bool {
	var notFound *domain.ErrNotFound
	return errors.As(err, &notFound)
}
