package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/queryir"
)

// PrepareOptions holds flags for the prepare command.
type PrepareOptions struct {
	*RootOptions
	Panel         string
	OriginalPanel string
	Start         int64 // epoch ms
	End           int64 // epoch ms
	Since         time.Duration
	FormatForWeb  bool
	FillGaps      bool
	Variables     map[string]string
	VariableTypes map[string]string
}

// PrepareResult is the prepare command's output.
type PrepareResult struct {
	Request  envelope.QueryRangeRequest `json:"request"`
	Legends  map[string]string          `json:"legends"`
	Warnings []string                   `json:"warnings"`
}

// NewPrepareCommand creates the prepare command.
func NewPrepareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PrepareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prepare <query.json|query.cue|->",
		Short: "Build the v5 query_range payload for a query",
		Long: `Build the v5 query_range payload for a legacy query.

The input is a legacy query as JSON (queryType, builder, promql,
clickhouse_sql) or a CUE query definition. The panel decides the request
type; --end defaults to now and --start to --since before it.

Examples:
  qb prepare query.json --panel graph --since 1h
  qb prepare query.cue --start 1700000000000 --end 1700003600000
  qb prepare query.json --panel table --var env=prod --var-type env=QUERY`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrepare(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Panel, "panel", "", "panel type (default: the definition's panel, else graph)")
	cmd.Flags().StringVar(&opts.OriginalPanel, "original-panel", "", "panel the query was built for")
	cmd.Flags().Int64Var(&opts.Start, "start", 0, "range start in epoch milliseconds")
	cmd.Flags().Int64Var(&opts.End, "end", 0, "range end in epoch milliseconds (default now)")
	cmd.Flags().DurationVar(&opts.Since, "since", 15*time.Minute, "range length when --start is not set")
	cmd.Flags().BoolVar(&opts.FormatForWeb, "format-for-web", false, "ask for table-formatted results")
	cmd.Flags().BoolVar(&opts.FillGaps, "fill-gaps", false, "ask for zero-filled time series")
	cmd.Flags().StringToStringVar(&opts.Variables, "var", nil, "dashboard variable name=value")
	cmd.Flags().StringToStringVar(&opts.VariableTypes, "var-type", nil, "dashboard variable name=type")

	return cmd
}

func runPrepare(opts *PrepareOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	q, panel, err := loadQuery(input, cmd.InOrStdin())
	if err != nil {
		return failLoad(formatter, err)
	}
	if opts.Panel != "" {
		p, ok := queryir.ParsePanelType(opts.Panel)
		if !ok {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("unknown panel type %q", opts.Panel), nil)
		}
		panel = p
	}
	if panel == "" {
		panel = queryir.PanelTimeSeries
	}
	var original queryir.PanelType
	if opts.OriginalPanel != "" {
		p, ok := queryir.ParsePanelType(opts.OriginalPanel)
		if !ok {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("unknown panel type %q", opts.OriginalPanel), nil)
		}
		original = p
	}

	start, end, err := opts.timeRange(time.Now())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}

	variables := make(map[string]any, len(opts.Variables))
	for k, v := range opts.Variables {
		variables[k] = v
	}

	req, legends := envelope.PrepareQueryRange(envelope.PrepareParams{
		Query:             q,
		PanelType:         panel,
		OriginalPanelType: original,
		Start:             start,
		End:               end,
		FormatForWeb:      opts.FormatForWeb,
		FillGaps:          opts.FillGaps,
		Variables:         variables,
		VariableTypes:     opts.VariableTypes,
	})
	result := PrepareResult{
		Request:  req,
		Legends:  legends,
		Warnings: queryir.Validate(q).Warnings,
	}

	for _, w := range result.Warnings {
		formatter.VerboseLog("warning: %s", w)
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	return writeIndented(formatter.Writer, req)
}

// timeRange resolves the flags into a start and end. End defaults to now,
// start to End-Since.
func (o *PrepareOptions) timeRange(now time.Time) (time.Time, time.Time, error) {
	end := now
	if o.End > 0 {
		end = time.UnixMilli(o.End)
	}
	start := end.Add(-o.Since)
	if o.Start > 0 {
		start = time.UnixMilli(o.Start)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %d must be before end %d", start.UnixMilli(), end.UnixMilli())
	}
	return start, end, nil
}

// loadQuery reads a legacy query from JSON, or compiles it from CUE when
// path is a .cue file or a directory. panel is set only for CUE input.
func loadQuery(path string, stdin io.Reader) (queryir.Query, queryir.PanelType, error) {
	if isDefinition(path) {
		res, err := LoadDefinition(path)
		if err != nil {
			return queryir.Query{}, "", err
		}
		return res.Query, res.Panel, nil
	}
	var q queryir.Query
	if err := decodeInput(path, stdin, &q); err != nil {
		return queryir.Query{}, "", err
	}
	return q, "", nil
}

func isDefinition(path string) bool {
	if path == "-" {
		return false
	}
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
