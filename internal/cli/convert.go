package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/queryir"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	Panel string // overrides the panelType of the input
	To    string // v5 or legacy
}

// Convert directions.
const (
	ConvertToV5     = "v5"
	ConvertToLegacy = "legacy"
)

// ConvertResult is the convert command's output.
type ConvertResult struct {
	CompositeQuery envelope.CompositeQuery    `json:"compositeQuery"`
	RequestType    envelope.RequestType       `json:"requestType"`
	Problems       []envelope.ValidationError `json:"problems"`
}

// LegacyResult is the output of convert --to legacy.
type LegacyResult struct {
	Query    queryir.Query              `json:"query"`
	Problems []envelope.ValidationError `json:"problems"`
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <composite.json|->",
		Short: "Convert between v3 composite queries and v5 envelopes",
		Long: `Convert a legacy v3 composite query (builderQueries, promQueries,
chQueries maps) into the flat v5 envelope list.

Builder entries carrying a dataSource become queries, the rest formulas.
Problems the backend would reject are reported but do not fail the command.

With --to legacy the input is a v5 composite query ({"queries": [...]})
and the output is the editor's query with builder, promql and
clickhouse_sql sections.

Examples:
  qb convert composite.json
  qb convert - --panel table < composite.json
  qb convert composite.json --format json
  qb convert envelopes.json --to legacy`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Panel, "panel", "", "panel type to convert for (overrides panelType)")
	cmd.Flags().StringVar(&opts.To, "to", ConvertToV5, "target format: v5 or legacy")

	return cmd
}

func runConvert(opts *ConvertOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	switch opts.To {
	case ConvertToV5, "":
	case ConvertToLegacy:
		return runConvertToLegacy(opts, input, cmd, formatter)
	default:
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("unknown target %q; use v5 or legacy", opts.To), nil)
	}

	var lc envelope.LegacyCompositeQuery
	if err := decodeInput(input, cmd.InOrStdin(), &lc); err != nil {
		return failLoad(formatter, err)
	}
	if opts.Panel != "" {
		panel, ok := queryir.ParsePanelType(opts.Panel)
		if !ok {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("unknown panel type %q", opts.Panel), nil)
		}
		lc.PanelType = panel
	}

	cq, err := envelope.CompositeQueryToQueryEnvelope(lc)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidJSON, err.Error(), nil)
	}
	rt := envelope.MapPanelTypeToRequestType(lc.PanelType)
	result := ConvertResult{
		CompositeQuery: cq,
		RequestType:    rt,
		Problems:       envelope.ValidateComposite(cq, rt),
	}
	formatter.VerboseLog("Converted %d envelope(s) for request type %q", len(cq.Queries), rt)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if err := writeEnvelopeTable(formatter, cq); err != nil {
		return err
	}
	writeProblems(formatter, result.Problems)
	return nil
}

// runConvertToLegacy turns v5 envelopes back into the editor's query.
// Problems are checked on the input envelopes for the chosen panel.
func runConvertToLegacy(opts *ConvertOptions, input string, cmd *cobra.Command, formatter *OutputFormatter) error {
	var cq envelope.CompositeQuery
	if err := decodeInput(input, cmd.InOrStdin(), &cq); err != nil {
		return failLoad(formatter, err)
	}
	panel := queryir.PanelTimeSeries
	if opts.Panel != "" {
		p, ok := queryir.ParsePanelType(opts.Panel)
		if !ok {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("unknown panel type %q", opts.Panel), nil)
		}
		panel = p
	}

	result := LegacyResult{
		Query:    envelope.ToQuery(cq),
		Problems: envelope.ValidateComposite(cq, envelope.MapPanelTypeToRequestType(panel)),
	}
	formatter.VerboseLog("Converted %d envelope(s) to a %s query", len(cq.Queries), result.Query.QueryType)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if err := formatter.Table([]string{"Name", "Section", "Definition", "Disabled"}, legacyRows(result.Query)); err != nil {
		return err
	}
	writeProblems(formatter, result.Problems)
	return nil
}

func legacyRows(q queryir.Query) [][]string {
	var rows [][]string
	for _, bq := range q.Builder.QueryData {
		def := string(bq.DataSource)
		if bq.Filter != nil && bq.Filter.Expression != "" {
			def += " where " + bq.Filter.Expression
		}
		rows = append(rows, []string{bq.QueryName, "queryData", def, disabledMark(bq.Disabled)})
	}
	for _, f := range q.Builder.QueryFormulas {
		rows = append(rows, []string{f.QueryName, "queryFormulas", f.Expression, disabledMark(f.Disabled)})
	}
	for _, t := range q.Builder.QueryTraceOperator {
		rows = append(rows, []string{t.QueryName, "queryTraceOperator", t.Expression, disabledMark(t.Disabled)})
	}
	for _, p := range q.PromQL {
		rows = append(rows, []string{p.Name, "promql", p.Query, disabledMark(p.Disabled)})
	}
	for _, c := range q.ClickHouseSQL {
		rows = append(rows, []string{c.Name, "clickhouse_sql", c.Query, disabledMark(c.Disabled)})
	}
	return rows
}

// writeEnvelopeTable lists envelopes one per row.
func writeEnvelopeTable(f *OutputFormatter, cq envelope.CompositeQuery) error {
	rows := make([][]string, 0, len(cq.Queries))
	for _, env := range cq.Queries {
		rows = append(rows, []string{env.Name(), string(env.Type), envelopeSummary(env), disabledMark(env.Disabled())})
	}
	return f.Table([]string{"Name", "Type", "Definition", "Disabled"}, rows)
}

func envelopeSummary(env envelope.QueryEnvelope) string {
	switch s := env.Spec.(type) {
	case envelope.BuilderQuerySpec:
		summary := string(s.Signal)
		for _, expr := range specAggregations(s) {
			summary += " " + expr
		}
		if s.Filter != nil && s.Filter.Expression != "" {
			summary += " where " + s.Filter.Expression
		}
		return summary
	case envelope.FormulaSpec:
		return s.Expression
	case envelope.TraceOperatorSpec:
		return s.Expression
	case envelope.PromQLSpec:
		return s.Query
	case envelope.ClickHouseSpec:
		return s.Query
	}
	return ""
}

func specAggregations(s envelope.BuilderQuerySpec) []string {
	out := make([]string, 0, len(s.Aggregations))
	for _, a := range s.Aggregations {
		switch agg := a.(type) {
		case queryir.ExpressionAggregation:
			out = append(out, agg.Expression)
		case queryir.MetricAggregation:
			out = append(out, fmt.Sprintf("%s(%s(%s))", agg.SpaceAggregation, agg.TimeAggregation, agg.MetricName))
		}
	}
	return out
}

func disabledMark(disabled bool) string {
	if disabled {
		return "yes"
	}
	return ""
}

// writeProblems prints validation problems after a text result.
func writeProblems(f *OutputFormatter, problems []envelope.ValidationError) {
	if len(problems) == 0 {
		fmt.Fprintln(f.Writer, "✓ No problems found")
		return
	}
	fmt.Fprintf(f.Writer, "✗ %d problem(s):\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(f.Writer, "  %s\n", p.Error())
	}
}
