package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/aggregation"
	"github.com/roach88/querybuilder/internal/queryir"
)

// AggregationsOptions holds flags for the aggregations command.
type AggregationsOptions struct {
	*RootOptions
	Alias string
}

// NewAggregationsCommand creates the aggregations command.
func NewAggregationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AggregationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "aggregations <expression>...",
		Short: "Split aggregation text into function calls and aliases",
		Long: `Split aggregation expression text into its function calls.

Each call may carry an alias: "as name", "as 'quoted name'" or
"as \"quoted\"". --alias applies to the calls that have none.
Arguments are joined with spaces, so quoting the expression is optional.

Examples:
  qb aggregations "count() as total, avg(duration_nano)"
  qb aggregations "p99(duration_nano)" --alias latency`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregations(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Alias, "alias", "", "alias for calls without one")

	return cmd
}

func runAggregations(opts *AggregationsOptions, expression string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	aggs := aggregation.ParseAggregations(expression, opts.Alias)
	formatter.VerboseLog("Parsed %d aggregation(s) from %q", len(aggs), expression)

	if formatter.JSON() {
		if aggs == nil {
			aggs = []queryir.ExpressionAggregation{}
		}
		return formatter.Success(aggs)
	}
	rows := make([][]string, 0, len(aggs))
	for _, a := range aggs {
		rows = append(rows, []string{a.Expression, a.Alias})
	}
	return formatter.Table([]string{"Expression", "Alias"}, rows)
}
