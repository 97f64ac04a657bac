package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/bakecss/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Build or test failure (bad source, failed scenarios)
	ExitCommandError = 2 // Command error (invalid paths, bad config, cache database errors)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status  string      `json:"status"`            // "ok" or "error"
	Data    interface{} `json:"data,omitempty"`    // success payload
	Error   *CLIError   `json:"error,omitempty"`   // error details
	TraceID string      `json:"trace_id,omitempty"` // optional trace correlation
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E001", "EVAL_FAILED", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// BuildErrorDetails locates a build error in the source.
type BuildErrorDetails struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Frame  string `json:"frame,omitempty"`
}

// describeError maps err to a response code, message and details, and to
// the exit code the command should return.
func describeError(err error) (code, message string, details *BuildErrorDetails, exit int) {
	var be *engine.BuildError
	var ce *commandError
	switch {
	case errors.As(err, &be):
		d := &BuildErrorDetails{File: be.File, Frame: be.Frame}
		if !be.Loc.IsZero() {
			d.Line, d.Column = be.Loc.Line, be.Loc.Column+1
		}
		return string(be.Code), be.Message, d, ExitFailure
	case engine.IsQuotaError(err):
		return string(engine.ErrCodeQuotaExceeded), err.Error(), nil, ExitFailure
	case errors.As(err, &ce):
		return ce.Code, ce.Err.Error(), nil, ExitCommandError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELLED", err.Error(), nil, ExitCommandError
	}
	return ErrCodeGeneric, err.Error(), nil, ExitCommandError
}

// Fail reports err in the configured format and returns the ExitError the
// command should return.
func (f *OutputFormatter) Fail(action string, err error) error {
	code, message, details, exit := describeError(err)
	if f.Format == "json" {
		var d interface{}
		if details != nil {
			d = details
		}
		_ = f.Error(code, message, d)
		return WrapExitError(exit, fmt.Sprintf("%s: %s", code, message), nil)
	}

	fmt.Fprintf(f.Writer, "✗ %s failed\n\n", action)
	if details != nil && details.File != "" {
		if details.Line > 0 {
			fmt.Fprintf(f.Writer, "%s:%d:%d\n", details.File, details.Line, details.Column)
		} else {
			fmt.Fprintln(f.Writer, details.File)
		}
	}
	fmt.Fprintf(f.Writer, "  %s: %s\n", code, message)
	if details != nil && details.Frame != "" {
		fmt.Fprintf(f.Writer, "\n%s\n", details.Frame)
	}
	return WrapExitError(exit, fmt.Sprintf("%s: %s", code, message), nil)
}
