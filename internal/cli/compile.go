package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bakecss/internal/workflow"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	ProjectOptions
	Only   []string // exports to compile; empty compiles all
	Output string   // rewritten code output path
	OutCSS string   // stylesheet output path
}

// CompilationResult is the JSON payload of a successful compile.
type CompilationResult struct {
	File string `json:"file"`
	*workflow.Result
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Extract the CSS of a source file",
		Long: `Compile a JavaScript source file: evaluate its style templates at build
time, extract the resulting CSS and rewrite the file for runtime.

Only the code the requested exports need is evaluated. Imported modules
are shaken down to the names the file uses.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	addProjectFlags(cmd, &opts.ProjectOptions)
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "exports to compile (comma separated)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the rewritten code to this path")
	cmd.Flags().StringVar(&opts.OutCSS, "out-css", "", "write the extracted CSS to this path")

	return cmd
}

func runCompile(opts *CompileOptions, file string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	p, err := openProject(&opts.ProjectOptions, file)
	if err != nil {
		return formatter.Fail("Compilation", err)
	}
	defer p.Close()

	formatter.VerboseLog("Compiling %s (mode %s, run %s)", p.file, p.cfg.Mode, p.run.ID())

	res, err := p.run.Compile(contextOf(cmd), p.file, opts.Only...)
	if err != nil {
		return formatter.Fail("Compilation", err)
	}
	for _, dep := range res.Dependencies {
		formatter.VerboseLog("Dependency: %s", dep)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(res.Code), 0644); err != nil {
			return formatter.Fail("Compilation", &commandError{Code: ErrCodeWriteFailed, Err: fmt.Errorf("writing output file: %w", err)})
		}
	}
	if opts.OutCSS != "" {
		if err := writeCSS(opts.OutCSS, res); err != nil {
			return formatter.Fail("Compilation", &commandError{Code: ErrCodeWriteFailed, Err: err})
		}
	}

	return outputCompileSuccess(formatter, p.file, res, opts)
}

// writeCSS writes the stylesheet and, when there is one, its source map
// next to it.
func writeCSS(path string, res *workflow.Result) error {
	css := res.CSSText
	if res.SourceMap != "" {
		mapPath := path + ".map"
		if err := os.WriteFile(mapPath, []byte(res.SourceMap), 0644); err != nil {
			return fmt.Errorf("writing source map: %w", err)
		}
		css += fmt.Sprintf("\n/*# sourceMappingURL=%s */\n", filepath.Base(mapPath))
	}
	if err := os.WriteFile(path, []byte(css), 0644); err != nil {
		return fmt.Errorf("writing css file: %w", err)
	}
	return nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, file string, res *workflow.Result, opts *CompileOptions) error {
	if formatter.Format == "json" {
		return formatter.Success(CompilationResult{File: file, Result: res})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s: %d rule(s), %d dependency(ies)\n", file, len(res.Rules), len(res.Dependencies))
	if len(res.Rules) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Rules:")
		for _, rule := range res.Rules {
			fmt.Fprintf(w, "  %s ← %s (line %d)\n", rule.Selector, rule.DisplayName, rule.Start.Line)
		}
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "\nWrote code to %s\n", opts.Output)
	}
	if opts.OutCSS != "" {
		fmt.Fprintf(w, "Wrote CSS to %s\n", opts.OutCSS)
	}
	if opts.Output == "" && opts.OutCSS == "" && res.CSSText != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, res.CSSText)
		if !strings.HasSuffix(res.CSSText, "\n") {
			fmt.Fprintln(w)
		}
	}
	return nil
}

// contextOf returns the command's context, or Background when run
// without one (tests calling Execute directly).
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
