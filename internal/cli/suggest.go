package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/logger"
	"github.com/roach88/querybuilder/internal/queryir"
	"github.com/roach88/querybuilder/internal/suggest"
)

// SuggestOptions holds flags for the suggest command.
type SuggestOptions struct {
	*RootOptions
	Catalog  string
	Source   string
	Key      string
	Debounce time.Duration
	Timeout  time.Duration
}

// SuggestResult is the suggest command's output.
type SuggestResult struct {
	Kind       suggest.Kind           `json:"kind"`
	SearchText string                 `json:"searchText"`
	Keys       []queryir.AttributeKey `json:"keys,omitempty"`
	Values     []ir.Value             `json:"values,omitempty"`
	Superseded int                    `json:"superseded"`
}

// NewSuggestCommand creates the suggest command.
func NewSuggestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SuggestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "suggest <keys|values> [search]...",
		Short: "Suggest attribute keys or values from the catalog",
		Long: `Suggest attribute keys or values from a suggestion catalog.

Each search argument is one keystroke state of the search box. Requests
are debounced and only the result of the last search is printed, the
way an editor drops stale suggestions while the user types.

Examples:
  qb suggest keys serv --source logs
  qb suggest values ap --key service.name
  qb suggest keys s se ser --debounce 50ms`,
		Args:          cobra.MinimumNArgs(1),
		ValidArgs:     []string{string(suggest.KindKeys), string(suggest.KindValues)},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggest(opts, suggest.Kind(args[0]), args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "suggestion catalog file (default from config)")
	cmd.Flags().StringVar(&opts.Source, "source", string(queryir.DataSourceLogs), "data source: metrics, logs or traces")
	cmd.Flags().StringVar(&opts.Key, "key", "", "attribute key whose values to suggest")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 0, "wait after the last search (default from config, negative disables)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "give up waiting for suggestions after this long")

	return cmd
}

func runSuggest(opts *SuggestOptions, kind suggest.Kind, searches []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if kind != suggest.KindKeys && kind != suggest.KindValues {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("unknown suggestion kind %q: want keys or values", kind), nil)
	}
	ds := queryir.DataSource(opts.Source)
	if !ds.Valid() {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("unknown data source %q", opts.Source), nil)
	}
	if len(searches) == 0 {
		searches = []string{""}
	}

	cfg, err := opts.Settings()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	path := opts.Catalog
	if path == "" {
		path = cfg.Suggest.Catalog
	}
	if path == "" {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, "no catalog: pass --catalog or set suggest.catalog", nil)
	}
	catalog, err := suggest.LoadCatalog(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
	}

	debounce := opts.Debounce
	if debounce == 0 {
		debounce = cfg.Suggest.Debounce
	}
	ac := suggest.New(catalog, suggest.Options{
		Debounce:  debounce,
		CacheSize: cfg.Suggest.CacheSize,
		Logger:    logger.Get(),
	})
	defer ac.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var last uint64
	for _, search := range searches {
		req := suggest.Request{DataSource: ds, SearchText: search, Key: opts.Key}
		if kind == suggest.KindKeys {
			last = ac.Keys(ctx, req)
		} else {
			last = ac.Values(ctx, req)
		}
		formatter.VerboseLog("Requested %s %q (seq %d)", kind, search, last)
	}

	res, err := awaitResult(ctx, ac, last)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
	}
	if res.Err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "error loading suggestions: "+res.Err.Error(), nil)
	}

	result := SuggestResult{
		Kind:       kind,
		SearchText: res.Request.SearchText,
		Keys:       res.Keys,
		Values:     res.Values,
		Superseded: len(searches) - 1,
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	if res.Empty() {
		fmt.Fprintln(formatter.Writer, "No suggestions.")
		return nil
	}
	if kind == suggest.KindKeys {
		rows := make([][]string, 0, len(res.Keys))
		for _, k := range res.Keys {
			rows = append(rows, []string{k.Key, string(k.DataType), string(k.Type)})
		}
		return formatter.Table([]string{"Key", "Data Type", "Context"}, rows)
	}
	for _, v := range res.Values {
		fmt.Fprintln(formatter.Writer, ir.Text(v))
	}
	return nil
}

// awaitResult waits for the result of request seq, skipping older ones.
func awaitResult(ctx context.Context, ac *suggest.Autocompleter, seq uint64) (suggest.Result, error) {
	for {
		select {
		case res, ok := <-ac.Results():
			if !ok {
				return suggest.Result{}, fmt.Errorf("suggestions closed")
			}
			if res.Seq == seq {
				return res, nil
			}
		case <-ctx.Done():
			return suggest.Result{}, fmt.Errorf("waiting for suggestions: %w", ctx.Err())
		}
	}
}
