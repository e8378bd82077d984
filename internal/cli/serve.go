package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/api"
	"github.com/roach88/querybuilder/internal/logger"
	"github.com/roach88/querybuilder/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	DB      string
	NoStore bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversion API over HTTP",
		Long: `Serve the conversion, pagination and parsing operations as a JSON
API. Saved view routes are served from the views database unless
--no-store is given. The server stops gracefully on SIGINT or SIGTERM.

Examples:
  qb serve
  qb serve --addr :9090 --db /var/lib/qb/views.db
  qb serve --no-store`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "views database path (default from config)")
	cmd.Flags().BoolVar(&opts.NoStore, "no-store", false, "serve without the saved view routes")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.Settings()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	addr := opts.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	serverOpts := api.Options{
		Logger:   logger.WithScope("api").Logger(),
		PageSize: cfg.Pagination.PageSize,
	}
	if !opts.NoStore {
		path := opts.DB
		if path == "" {
			path = cfg.Store.Path
		}
		st, err := store.Open(path, store.WithLogger(logger.WithScope("store").Logger()))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		defer st.Close()
		serverOpts.Store = st
		formatter.VerboseLog("Serving views from %s", path)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.New(serverOpts)
	for _, r := range srv.Routes() {
		formatter.VerboseLog("route %s", r)
	}
	if err := srv.Start(ctx, addr); err != nil {
		return WrapExitError(ExitFailure, "server stopped", err)
	}
	return nil
}
