package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bakecss/internal/config"
)

// ValidationResult holds config validation results.
type ValidationResult struct {
	Valid  bool            `json:"valid"`
	Errors []string        `json:"errors,omitempty"`
	Config *config.Options `json:"config,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a config file",
		Long: `Validate a YAML or CUE config file without compiling anything.

CUE files are checked against the config schema first. Every invalid
field is reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return outputValidateError(formatter, ErrCodeConfig, err.Error())
	}
	formatter.VerboseLog("Loaded %s: %d rule(s), %d tag(s)", path, len(cfg.Rules), len(cfg.Tags))

	var problems []string
	if err := cfg.Validate(); err != nil {
		problems = splitJoined(err)
	}
	if len(problems) > 0 {
		return outputValidationErrors(formatter, problems)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Config: cfg})
	}
	fmt.Fprintln(formatter.Writer, "✓ Config valid")
	fmt.Fprintf(formatter.Writer, "  mode: %s, preprocessor: %s, unknown exports: %s\n",
		cfg.Mode, cfg.Preprocessor, cfg.UnknownExport)
	return nil
}

// splitJoined flattens an errors.Join result into messages.
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, splitJoined(e)...)
		}
		return out
	}
	return []string{err.Error()}
}

// outputValidateError outputs a single error that stopped validation.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputValidationErrors outputs every problem found in the config.
func outputValidationErrors(formatter *OutputFormatter, problems []string) error {
	if formatter.Format == "json" {
		if err := formatter.Error(ErrCodeConfig, fmt.Sprintf("%d invalid field(s)", len(problems)),
			ValidationResult{Valid: false, Errors: problems}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(problems)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, p := range problems {
		fmt.Fprintf(formatter.Writer, "  %s\n", p)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(problems)))
}
