package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ExportsOptions holds flags for the exports command.
type ExportsOptions struct {
	*RootOptions
	ProjectOptions
}

// ExportsResult is the JSON payload of the exports command.
type ExportsResult struct {
	File    string   `json:"file"`
	Exports []string `json:"exports"`
}

// NewExportsCommand creates the exports command.
func NewExportsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exports <file>",
		Short: "List the names a file exports",
		Long: `List the names a file exports, following "export * from" re-exports
through the files they name.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExports(opts, args[0], cmd)
		},
	}

	addProjectFlags(cmd, &opts.ProjectOptions)
	return cmd
}

func runExports(opts *ExportsOptions, file string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	p, err := openProject(&opts.ProjectOptions, file)
	if err != nil {
		return formatter.Fail("Export listing", err)
	}
	defer p.Close()

	names, err := p.run.Exports(contextOf(cmd), p.file)
	if err != nil {
		return formatter.Fail("Export listing", err)
	}
	if names == nil {
		names = []string{}
	}

	if formatter.Format == "json" {
		return formatter.Success(ExportsResult{File: p.file, Exports: names})
	}
	fmt.Fprintf(formatter.Writer, "%s: %d export(s)\n", p.file, len(names))
	for _, name := range names {
		fmt.Fprintf(formatter.Writer, "  %s\n", name)
	}
	return nil
}
