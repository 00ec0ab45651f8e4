// Package apperr defines the error taxonomy surfaced by the HTTP layer:
// validation problems in the request body and failures while computing a
// result.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Issue is one problem found in the request body.
type Issue struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts := make([]string, 0, len(is.Loc))
		for _, l := range is.Loc {
			parts = append(parts, fmt.Sprint(l))
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", strings.Join(parts, "."), is.Msg))
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Add records an issue.
func (e *ValidationError) Add(msg, typ string, loc ...any) {
	e.Issues = append(e.Issues, Issue{Loc: loc, Msg: msg, Type: typ})
}

// OrNil returns e if any issue was recorded.
func (e *ValidationError) OrNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}

// NewValidation builds a ValidationError holding a single issue.
func NewValidation(msg, typ string, loc ...any) *ValidationError {
	e := &ValidationError{}
	e.Add(msg, typ, loc...)
	return e
}

// ComputationError is a failure while fitting, scoring or describing data.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// Computation wraps err as a ComputationError for op.
func Computation(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ComputationError{Op: op, Err: err}
}

// AsValidation reports whether err is a ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// AsComputation reports whether err is a ComputationError.
func AsComputation(err error) (*ComputationError, bool) {
	var ce *ComputationError
	ok := errors.As(err, &ce)
	return ce, ok
}
