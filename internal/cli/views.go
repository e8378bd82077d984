package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/logger"
	"github.com/roach88/querybuilder/internal/store"
)

// ViewsOptions holds flags shared by the views subcommands.
type ViewsOptions struct {
	*RootOptions
	DB string
}

// NewViewsCommand creates the views command and its subcommands.
func NewViewsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "views",
		Short: "Manage saved views",
		Long: `Save, list, show and delete saved views.

A saved view is a named v5 composite query kept per source page. Saving
a query a page already holds returns the existing view.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "views database path (default from config)")

	cmd.AddCommand(newViewsSaveCommand(opts))
	cmd.AddCommand(newViewsListCommand(opts))
	cmd.AddCommand(newViewsShowCommand(opts))
	cmd.AddCommand(newViewsDeleteCommand(opts))

	return cmd
}

// openStore opens the views database named by --db or the config.
func (o *ViewsOptions) openStore() (*store.Store, error) {
	path := o.DB
	if path == "" {
		cfg, err := o.Settings()
		if err != nil {
			return nil, err
		}
		path = cfg.Store.Path
	}
	return store.Open(path, store.WithLogger(logger.WithScope("store").Logger()))
}

func (o *ViewsOptions) withStore(cmd *cobra.Command, fn func(*OutputFormatter, *store.Store) error) error {
	formatter := o.formatter(cmd)
	st, err := o.openStore()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()
	return fn(formatter, st)
}

// failStore maps a store error to an exit: a missing view fails the
// command, anything else is a command error.
func failStore(f *OutputFormatter, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitFailure, ErrCodeNotFound, err.Error(), nil)
	}
	if errors.Is(err, store.ErrInvalidCursor) {
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
}

func newViewsSaveCommand(opts *ViewsOptions) *cobra.Command {
	var name, page string

	cmd := &cobra.Command{
		Use:   "save <composite.json|->",
		Short: "Save a v5 composite query as a view",
		Example: `  qb views save composite.json --name "5xx by service" --page logs-explorer
  qb convert legacy.json --format json | jq .data.compositeQuery | qb views save - --name errors --page traces`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(f *OutputFormatter, st *store.Store) error {
				var cq envelope.CompositeQuery
				if err := decodeInput(args[0], cmd.InOrStdin(), &cq); err != nil {
					return failLoad(f, err)
				}
				view, inserted, err := st.SaveView(cmd.Context(), store.NewView{
					Name:       name,
					SourcePage: page,
					Query:      cq,
				})
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
				}

				if f.JSON() {
					return f.Success(map[string]any{"view": view, "inserted": inserted})
				}
				if inserted {
					fmt.Fprintf(f.Writer, "✓ Saved view %s (%s)\n", view.ID, view.Name)
				} else {
					fmt.Fprintf(f.Writer, "✓ Query already saved as view %s (%s)\n", view.ID, view.Name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "view name")
	cmd.Flags().StringVar(&page, "page", "", "source page the view belongs to")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("page")

	return cmd
}

func newViewsListCommand(opts *ViewsOptions) *cobra.Command {
	var page, cursor string
	var limit int

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List saved views, newest first",
		Example:       "  qb views list --page logs-explorer --limit 20",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return opts.formatter(cmd).Fail(ExitCommandError, ErrCodeInvalidArg, "limit must not be negative", nil)
			}
			return opts.withStore(cmd, func(f *OutputFormatter, st *store.Store) error {
				p, err := st.ListViews(cmd.Context(), page, cursor, limit)
				if err != nil {
					return failStore(f, err)
				}
				if f.JSON() {
					return f.Success(p)
				}
				if len(p.Views) == 0 {
					fmt.Fprintln(f.Writer, "No views.")
					return nil
				}
				rows := make([][]string, 0, len(p.Views))
				for _, v := range p.Views {
					rows = append(rows, []string{
						v.ID, v.Name, v.SourcePage,
						fmt.Sprint(len(v.Query.Queries)),
						v.CreatedAt.UTC().Format(time.RFC3339),
					})
				}
				if err := f.Table([]string{"ID", "Name", "Page", "Queries", "Created"}, rows); err != nil {
					return err
				}
				if p.NextCursor != "" {
					fmt.Fprintf(f.Writer, "Next page: --cursor %s\n", p.NextCursor)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "only views of this source page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "cursor from the previous listing")
	cmd.Flags().IntVar(&limit, "limit", 0, "views per listing (default 20, at most 100)")

	return cmd
}

func newViewsShowCommand(opts *ViewsOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show a saved view",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(f *OutputFormatter, st *store.Store) error {
				view, err := st.GetView(cmd.Context(), args[0])
				if err != nil {
					return failStore(f, err)
				}
				if f.JSON() {
					return f.Success(view)
				}
				fmt.Fprintf(f.Writer, "%s  %s  (page %s, %s)\n\n", view.ID, view.Name, view.SourcePage, view.CreatedAt.UTC().Format(time.RFC3339))
				return writeEnvelopeTable(f, view.Query)
			})
		},
	}
}

func newViewsDeleteCommand(opts *ViewsOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a saved view",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(f *OutputFormatter, st *store.Store) error {
				if err := st.DeleteView(cmd.Context(), args[0]); err != nil {
					return failStore(f, err)
				}
				if f.JSON() {
					return f.Success(map[string]string{"deleted": args[0]})
				}
				fmt.Fprintf(f.Writer, "✓ Deleted view %s\n", args[0])
				return nil
			})
		},
	}
}
