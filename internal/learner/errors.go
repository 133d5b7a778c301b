package learner

import (
	"errors"
	"fmt"
)

// Error is a learner coordination error: a misconfigured learner, a call in
// the wrong phase, or a strategy that broke its contract.
//
// Oracle errors are not wrapped in Error; they are returned as-is (wrapped
// with context by fmt.Errorf) and abort the run.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Round is the round in which the error occurred (0 before Start).
	Round int

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes learner errors.
type ErrorCode string

const (
	// ErrCodeInvalidConfig indicates New was given an unusable configuration.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// ErrCodeNotCounterexample indicates Refine was given a word on which
	// the hypothesis already agrees with the system.
	ErrCodeNotCounterexample ErrorCode = "NOT_COUNTEREXAMPLE"

	// ErrCodeNoProgress indicates a counterexample handler did not grow the
	// hypothesis.
	ErrCodeNoProgress ErrorCode = "NO_PROGRESS"

	// ErrCodeInvalidSelection indicates a closing strategy did not return
	// one member of each unclosed class.
	ErrCodeInvalidSelection ErrorCode = "INVALID_SELECTION"

	// ErrCodeWrongPhase indicates an operation was called in a phase that
	// does not allow it.
	ErrCodeWrongPhase ErrorCode = "WRONG_PHASE"

	// ErrCodeRoundLimit indicates the configured round limit was reached.
	ErrCodeRoundLimit ErrorCode = "ROUND_LIMIT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Round > 0 {
		msg = fmt.Sprintf("%s (round %d)", msg, e.Round)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, round int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Round: round}
}

func configError(err error) *Error {
	return &Error{Code: ErrCodeInvalidConfig, Message: "invalid learner configuration", Err: err}
}

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsConfigError reports whether err is an INVALID_CONFIG error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool { return CodeOf(err) == ErrCodeInvalidConfig }

// IsNoProgress reports whether err is a NO_PROGRESS error.
func IsNoProgress(err error) bool { return CodeOf(err) == ErrCodeNoProgress }

// IsNotCounterexample reports whether err is a NOT_COUNTEREXAMPLE error.
func IsNotCounterexample(err error) bool { return CodeOf(err) == ErrCodeNotCounterexample }

// IsWrongPhase reports whether err is a WRONG_PHASE error.
func IsWrongPhase(err error) bool { return CodeOf(err) == ErrCodeWrongPhase }
