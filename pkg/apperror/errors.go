package apperror

import (
	"errors"
	"fmt"
)

// Error categories. Every error produced by the core wraps one of these so
// callers can branch with errors.Is.
var (
	ErrData                = errors.New("data error")
	ErrStrategy            = errors.New("strategy error")
	ErrConcurrency         = errors.New("concurrency error")
	ErrPersistence         = errors.New("persistence error")
	ErrAlreadyRunning      = errors.New("already running")
	ErrInProgress          = errors.New("in progress")
	ErrNotFound            = errors.New("not found")
	ErrNoValidParameters   = errors.New("no valid parameters found")
	ErrTooManyCombinations = errors.New("too many parameter combinations")
)

// Data wraps a formatted message as ErrData.
func Data(format string, args ...interface{}) error {
	return wrap(ErrData, format, args...)
}

// Strategy wraps a formatted message as ErrStrategy.
func Strategy(format string, args ...interface{}) error {
	return wrap(ErrStrategy, format, args...)
}

// Concurrency wraps a formatted message as ErrConcurrency.
func Concurrency(format string, args ...interface{}) error {
	return wrap(ErrConcurrency, format, args...)
}

// Persistence wraps a formatted message as ErrPersistence.
func Persistence(format string, args ...interface{}) error {
	return wrap(ErrPersistence, format, args...)
}

func wrap(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind returns the category sentinel of err, or nil when unclassified.
func Kind(err error) error {
	for _, kind := range []error{
		ErrData, ErrStrategy, ErrConcurrency, ErrPersistence,
		ErrAlreadyRunning, ErrInProgress, ErrNotFound,
		ErrNoValidParameters, ErrTooManyCombinations,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
