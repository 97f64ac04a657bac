package evaluator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by a Context after Close.
var ErrClosed = errors.New("evaluator: context closed")

// EvalError is an exception thrown while computing one preval value.
type EvalError struct {
	File    string
	Key     string
	Message string
	Err     error
}

func (e *EvalError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("evaluating %s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("evaluating %s [%s]: %s", e.File, e.Key, e.Message)
}

func (e *EvalError) Unwrap() error { return e.Err }

// EvalCycleError reports a preval value whose computation requires itself.
type EvalCycleError struct {
	File  string
	Key   string
	Chain []string
}

func (e *EvalCycleError) Error() string {
	return fmt.Sprintf("evaluation cycle at %s [%s]: %s", e.File, e.Key, strings.Join(e.Chain, " -> "))
}

// IsEvalError reports whether err is or wraps an *EvalError.
func IsEvalError(err error) bool {
	var e *EvalError
	return errors.As(err, &e)
}

// IsEvalCycleError reports whether err is or wraps an *EvalCycleError.
func IsEvalCycleError(err error) bool {
	var e *EvalCycleError
	return errors.As(err, &e)
}
