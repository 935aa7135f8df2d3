package processor

import (
	"errors"
	"fmt"
)

// Outcome classifies how a single Process call ended.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeSkip
	OutcomeRecoverable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkip:
		return "skip"
	case OutcomeRecoverable:
		return "recoverable_error"
	case OutcomeFatal:
		return "fatal_error"
	default:
		return "continue"
	}
}

// Result is returned from Transformer.Process.
type Result struct {
	Outcome Outcome
	Err     error
}

// Continue passes the asset on unchanged in status.
func Continue() Result { return Result{Outcome: OutcomeContinue} }

// Skip drops the asset from the pipeline without reporting a failure.
func Skip() Result { return Result{Outcome: OutcomeSkip} }

// Recoverable reports a failure of this asset only. A nil err gets a placeholder.
func Recoverable(err error) Result {
	if err == nil {
		err = errors.New("unspecified processing error")
	}
	return Result{Outcome: OutcomeRecoverable, Err: err}
}

// Fatal reports a failure the controller should not retry. A nil err gets a placeholder.
func Fatal(err error) Result {
	if err == nil {
		err = errors.New("unspecified fatal error")
	}
	return Result{Outcome: OutcomeFatal, Err: err}
}

// FromError maps a plain error onto a Result, honoring FatalError.
func FromError(err error) Result {
	switch {
	case err == nil:
		return Continue()
	case IsFatal(err):
		return Fatal(err)
	default:
		return Recoverable(err)
	}
}

// FatalError marks an error from Generate or Collect as unrecoverable.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return "fatal processor error"
	}
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatalf builds a FatalError from a format string.
func Fatalf(format string, args ...any) error {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

// IsFatal reports whether err wraps a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
