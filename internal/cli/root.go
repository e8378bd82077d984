package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/config"
	"github.com/roach88/querybuilder/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Settings returns the loaded configuration, reading it on first use.
// Commands built without the root command (as in tests) get the defaults
// plus any qb.yaml in the working directory.
func (o *RootOptions) Settings() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	o.cfg = cfg
	return cfg, nil
}

// formatter builds the OutputFormatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// NewRootCommand creates the qb command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qb",
		Short: "qb - query builder toolkit",
		Long: `Convert, validate and page through observability queries.

qb turns legacy v3 builder queries into v5 query envelopes, prepares
query_range payloads, parses aggregation and filter expressions, compiles
CUE query definitions and keeps saved views in a local SQLite store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := opts.Settings()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error: loading configuration:", err)
				return WrapExitError(ExitCommandError, "loading configuration", err)
			}
			level := cfg.Log.Level
			if opts.Verbose {
				level = "debug"
			}
			logger.Init(level, cfg.Log.Format, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./qb.yaml)")

	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewPrepareCommand(opts))
	cmd.AddCommand(NewPaginateCommand(opts))
	cmd.AddCommand(NewAggregationsCommand(opts))
	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewSuggestCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewViewsCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}
