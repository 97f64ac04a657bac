package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/bakecss/internal/ir"
)

// ShakeOptions holds flags for the shake command.
type ShakeOptions struct {
	*RootOptions
	ProjectOptions
	Only     []string
	CommonJS bool   // print the sandbox (CommonJS) form instead of ESM
	Eval     bool   // evaluate the shaken code and print its exports
	Output   string // output file path
}

// ShakeResult is the JSON payload of the shake command.
type ShakeResult struct {
	File      string              `json:"file"`
	Only      []string            `json:"only"`
	Code      string              `json:"code"`
	Imports   map[string][]string `json:"imports"`
	HasPreval bool                `json:"has_preval"`
	Evaluator string              `json:"evaluator"`
	Values    ir.Object           `json:"values,omitempty"`
}

// NewShakeCommand creates the shake command.
func NewShakeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShakeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shake <file>",
		Short: "Print a file shaken down to some exports",
		Long: `Shake a source file down to the requested exports and print the code
that would be evaluated, without evaluating it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShake(opts, args[0], cmd)
		},
	}

	addProjectFlags(cmd, &opts.ProjectOptions)
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "exports to keep (comma separated)")
	cmd.Flags().BoolVar(&opts.CommonJS, "cjs", false, "print the CommonJS form evaluated by the sandbox")
	cmd.Flags().BoolVar(&opts.Eval, "eval", false, "evaluate the shaken code and print the exported values")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the shaken code to this path")

	return cmd
}

func runShake(opts *ShakeOptions, file string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	p, err := openProject(&opts.ProjectOptions, file)
	if err != nil {
		return formatter.Fail("Shake", err)
	}
	defer p.Close()

	res, err := p.run.Transform(contextOf(cmd), p.file, opts.Only...)
	if err != nil {
		return formatter.Fail("Shake", err)
	}
	formatter.VerboseLog("Shook %s for %s (%d import(s) left)", p.file, res.Only, len(res.Imports))

	code := res.ESM
	if opts.CommonJS {
		code = res.Code
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(code), 0644); err != nil {
			return formatter.Fail("Shake", &commandError{Code: ErrCodeWriteFailed, Err: fmt.Errorf("writing output file: %w", err)})
		}
	}

	var values ir.Object
	if opts.Eval {
		if values, err = p.run.Values(contextOf(cmd), p.file, opts.Only...); err != nil {
			return formatter.Fail("Shake", err)
		}
	}

	if formatter.Format == "json" {
		out := shakeResult(res, code)
		out.Values = values
		return formatter.Success(out)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "✓ Shook %s for %s\n", p.file, res.Only)
		fmt.Fprintf(formatter.Writer, "Wrote code to %s\n", opts.Output)
		return nil
	}
	fmt.Fprint(formatter.Writer, code)
	if opts.Eval {
		data, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return formatter.Fail("Shake", err)
		}
		fmt.Fprintf(formatter.Writer, "\nValues:\n%s\n", data)
	}
	return nil
}

func shakeResult(res *ir.TransformResult, code string) ShakeResult {
	imports := res.Imports
	if imports == nil {
		imports = map[string][]string{}
	}
	return ShakeResult{
		File:      res.File,
		Only:      res.Only.Names(),
		Code:      code,
		Imports:   imports,
		HasPreval: res.HasPreval,
		Evaluator: res.Evaluator,
	}
}
