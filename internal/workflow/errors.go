package workflow

import (
	"context"
	"errors"
	"io/fs"

	"github.com/roach88/bakecss/internal/engine"
	"github.com/roach88/bakecss/internal/evaluator"
	"github.com/roach88/bakecss/internal/jsast"
	"github.com/roach88/bakecss/internal/processor"
	"github.com/roach88/bakecss/internal/resolver"
	"github.com/roach88/bakecss/internal/shaker"
)

// buildError assigns a code to an error raised while processing file.
// Cancellation and errors that already carry a code are returned as is.
func buildError(file string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := engine.CodeOf(err); ok {
		return err
	}

	var (
		syntax  *jsast.SyntaxError
		unknown *shaker.UnknownExportError
		interp  *processor.InterpolationError
		cycle   *evaluator.EvalCycleError
		eval    *evaluator.EvalError
	)
	switch {
	case errors.As(err, &syntax):
		return &engine.BuildError{
			Code:    engine.ErrCodeMalformedOutput,
			File:    syntax.File,
			Loc:     syntax.Loc,
			Message: syntax.Message,
			Err:     err,
		}
	case errors.Is(err, jsast.ErrNoTree):
		return engine.NewBuildError(engine.ErrCodeMalformedOutput, file, err)
	case errors.As(err, &unknown):
		return engine.NewBuildError(engine.ErrCodeUnknownExport, unknown.File, err)
	case errors.As(err, &interp):
		code := engine.ErrCodeEvalFailed
		if errors.As(err, &cycle) {
			code = engine.ErrCodeEvalCycle
		}
		msg := err.Error()
		if interp.Err != nil {
			msg = interp.Err.Error()
		}
		return &engine.BuildError{
			Code:    code,
			File:    interp.File,
			Loc:     interp.Loc,
			Message: msg,
			Frame:   interp.Frame,
			Err:     err,
		}
	case errors.As(err, &cycle):
		return engine.NewBuildError(engine.ErrCodeEvalCycle, cycle.File, err)
	case errors.As(err, &eval):
		return engine.NewBuildError(engine.ErrCodeEvalFailed, eval.File, err)
	case errors.Is(err, resolver.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return engine.NewBuildError(engine.ErrCodeResolutionFailed, file, err)
	}
	return err
}
