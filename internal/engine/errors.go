package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/bakecss/internal/ir"
)

// ErrorCode categorizes build errors.
type ErrorCode string

const (
	// ErrCodeResolutionFailed indicates an import specifier could not be
	// resolved or its file could not be read.
	ErrCodeResolutionFailed ErrorCode = "RESOLUTION_FAILED"

	// ErrCodeUnknownExport indicates a file does not export a requested name.
	ErrCodeUnknownExport ErrorCode = "UNKNOWN_EXPORT"

	// ErrCodeEvalCycle indicates a build-time value depends on itself.
	ErrCodeEvalCycle ErrorCode = "EVAL_CYCLE"

	// ErrCodeEvalFailed indicates code threw while computing a value.
	ErrCodeEvalFailed ErrorCode = "EVAL_FAILED"

	// ErrCodeMalformedOutput indicates the parser rejected a file.
	ErrCodeMalformedOutput ErrorCode = "MALFORMED_OUTPUT"

	// ErrCodeQuotaExceeded indicates a request dispatched too many actions.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
)

// BuildError is a user-visible compilation failure.
type BuildError struct {
	Code ErrorCode

	// File is the path the error belongs to.
	File string

	// Loc is the position in File, when known.
	Loc ir.Location

	Message string

	// Frame is a code frame pointing at Loc.
	Frame string

	Err error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	if e.File != "" {
		sb.WriteString(e.File)
		if !e.Loc.IsZero() {
			fmt.Fprintf(&sb, ":%d:%d", e.Loc.Line, e.Loc.Column+1)
		}
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

func (e *BuildError) Unwrap() error { return e.Err }

// NewBuildError wraps err under code for file.
func NewBuildError(code ErrorCode, file string, err error) *BuildError {
	return &BuildError{Code: code, File: file, Message: err.Error(), Err: err}
}

// CodeOf returns the code of the first BuildError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code, true
	}
	return "", false
}

func hasCode(err error, code ErrorCode) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// IsResolutionError returns true if err is a resolution failure.
func IsResolutionError(err error) bool { return hasCode(err, ErrCodeResolutionFailed) }

// IsUnknownExportError returns true if err is an unknown export failure.
func IsUnknownExportError(err error) bool { return hasCode(err, ErrCodeUnknownExport) }

// IsEvalCycleError returns true if err is an evaluation cycle.
func IsEvalCycleError(err error) bool { return hasCode(err, ErrCodeEvalCycle) }

// IsEvalError returns true if err is a sandbox evaluation failure.
func IsEvalError(err error) bool { return hasCode(err, ErrCodeEvalFailed) }

// IsMalformedError returns true if err is a parse failure.
func IsMalformedError(err error) bool { return hasCode(err, ErrCodeMalformedOutput) }

// IsQuotaError returns true if err is an exceeded action budget.
// Matches both BuildError with ErrCodeQuotaExceeded and BudgetExceededError.
func IsQuotaError(err error) bool {
	if hasCode(err, ErrCodeQuotaExceeded) {
		return true
	}
	var be *BudgetExceededError
	return errors.As(err, &be)
}
