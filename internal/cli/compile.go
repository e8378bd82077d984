package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/queryir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds a compiled definition in both query shapes.
type CompilationResult struct {
	Query          queryir.Query           `json:"query"`
	PanelType      queryir.PanelType       `json:"panelType"`
	CompositeQuery envelope.CompositeQuery `json:"compositeQuery"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <definition.cue|dir>",
		Short: "Compile a CUE query definition",
		Long: `Compile a CUE query definition into a legacy query and its v5 envelopes.

The compiler checks the definition against the query schema, resolves
formula references and parses filter and aggregation text. Errors carry
the CUE position of the offending field.

Examples:
  qb compile ./queries/errors.cue
  qb compile ./queries --format json
  qb compile ./queries/errors.cue -o errors.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	compiled, err := LoadDefinition(path)
	if err != nil {
		return failLoad(formatter, err)
	}

	panel := compiled.Panel
	if panel == "" {
		panel = queryir.PanelTimeSeries
	}
	result := CompilationResult{
		Query:          compiled.Query,
		PanelType:      panel,
		CompositeQuery: envelope.FromQuery(compiled.Query, panel),
	}
	formatter.VerboseLog("Compiled %s: %d envelope(s) for panel %s", path, len(result.CompositeQuery.Queries), panel)

	if opts.Output != "" {
		if err := writeResultFile(opts.Output, result); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d envelope(s) for panel %s\n\n", len(result.CompositeQuery.Queries), panel)
	if err := writeEnvelopeTable(formatter, result.CompositeQuery); err != nil {
		return err
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "\nOutput written to: %s\n", opts.Output)
	}
	return nil
}

func writeResultFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeIndented(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
