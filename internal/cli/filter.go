package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/filter"
	"github.com/roach88/querybuilder/internal/queryir"
	"github.com/roach88/querybuilder/internal/suggest"
)

// FilterOptions holds flags for the filter command.
type FilterOptions struct {
	*RootOptions
	Catalog string
	Source  string
	Keys    []string // name:dataType
}

// FilterResult is the filter command's output.
type FilterResult struct {
	Expression string            `json:"expression"`
	Filter     queryir.TagFilter `json:"filter"`
}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "filter <expression>...",
		Short: "Parse a filter expression into a filter group",
		Long: `Parse a filter expression into the flat AND group queries carry.

Keys are typed from the suggestion catalog of --source and from --key
flags; unknown keys are strings. Operators are gated by key type, so
"status > 400" needs status declared numeric. Later terms on the same key
replace earlier ones. The normalized expression is printed back.

Examples:
  qb filter "service.name = 'api' AND status >= 500" --key status:int64
  qb filter "deployment.environment in ['prod', 'staging']" --catalog keys.yaml --source logs`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "suggestion catalog with typed keys (default from config)")
	cmd.Flags().StringVar(&opts.Source, "source", string(queryir.DataSourceLogs), "data source whose catalog keys apply")
	cmd.Flags().StringArrayVar(&opts.Keys, "key", nil, "typed key as name:dataType, repeatable")

	return cmd
}

func runFilter(opts *FilterOptions, expression string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	keys, err := opts.resolveKeys(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}
	formatter.VerboseLog("Resolving against %d typed key(s)", len(keys))

	f, err := filter.FromExpression(expression, filter.KeysResolver(keys))
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeFilter, err.Error(), nil)
	}
	result := FilterResult{Expression: filter.FormatExpression(f), Filter: f}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, result.Expression)
	rows := make([][]string, 0, len(f.Items))
	for _, item := range f.Items {
		rows = append(rows, []string{item.Key.Key, string(filter.KindOf(item.Key.DataType)), item.Op, filter.FormatItem(item)})
	}
	return formatter.Table([]string{"Key", "Kind", "Op", "Term"}, rows)
}

// resolveKeys collects typed keys: --key flags first, then the catalog.
// KeysResolver keeps the first entry per name, so flags win.
func (o *FilterOptions) resolveKeys(ctx context.Context) ([]queryir.AttributeKey, error) {
	var keys []queryir.AttributeKey
	for _, spec := range o.Keys {
		name, dt, ok := strings.Cut(spec, ":")
		if !ok || name == "" || dt == "" {
			return nil, fmt.Errorf("invalid --key %q: want name:dataType", spec)
		}
		keys = append(keys, queryir.AttributeKey{Key: name, DataType: queryir.DataType(dt)})
	}

	path := o.Catalog
	if path == "" {
		cfg, err := o.Settings()
		if err != nil {
			return nil, err
		}
		path = cfg.Suggest.Catalog
	}
	if path == "" {
		return keys, nil
	}

	catalog, err := suggest.LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	found, err := catalog.Keys(ctx, suggest.Request{DataSource: queryir.DataSource(o.Source)})
	if err != nil {
		return nil, err
	}
	return append(keys, found...), nil
}
