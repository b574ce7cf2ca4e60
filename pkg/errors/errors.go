// Package errors defines the sentinel errors shared across csvlink and an
// AppError wrapper that carries a process exit code.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrFileNotFound        = errors.New("file not found")
	ErrInsufficientSources = errors.New("insufficient sources")
	ErrMalformedRow        = errors.New("malformed row")
	ErrInvalidIndexState   = errors.New("invalid index state")
	ErrEmptySelection      = errors.New("empty field selection")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnavailable         = errors.New("dependency unavailable")
	ErrInternal            = errors.New("internal error")
)

// Exit codes follow the BSD sysexits convention.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 64
	ExitDataErr     = 65
	ExitNoInput     = 66
	ExitUnavailable = 69
	ExitSoftware    = 70
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// ExitCode maps err to the status the process should exit with.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.ExitCode != 0 {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrInsufficientSources), errors.Is(err, ErrInvalidInput):
		return ExitUsage
	case errors.Is(err, ErrMalformedRow):
		return ExitDataErr
	case errors.Is(err, ErrFileNotFound):
		return ExitNoInput
	case errors.Is(err, ErrUnavailable):
		return ExitUnavailable
	case errors.Is(err, ErrInvalidIndexState), errors.Is(err, ErrInternal):
		return ExitSoftware
	default:
		return ExitFailure
	}
}

// IsFatal reports whether err must abort a run. An empty field selection only
// guarantees that no rows match.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrEmptySelection)
}
