package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/queryir"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	RequestType string
}

// ValidationOutput is the validate command's output.
type ValidationOutput struct {
	Valid       bool                       `json:"valid"`
	RequestType envelope.RequestType       `json:"requestType"`
	Envelopes   int                        `json:"envelopes"`
	Problems    []envelope.ValidationError `json:"problems"`
	Warnings    []string                   `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <composite.json|definition.cue|dir|->",
		Short: "Check a v5 composite query for problems",
		Long: `Check a v5 composite query the way the query service would.

JSON input is a v5 composite query ({"queries": [...]}) checked for
--request-type. A CUE definition is compiled first and checked for the
request type of its panel; schema defaults it relied on are reported as
warnings.

Exit codes:
  0 - No problems
  1 - Problems found
  2 - Input could not be read or compiled

Examples:
  qb validate composite.json --request-type scalar
  qb validate ./queries/errors.cue
  qb validate - < composite.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RequestType, "request-type", string(envelope.RequestTypeTimeSeries), "request type for JSON input")

	return cmd
}

func runValidate(opts *ValidateOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var (
		cq       envelope.CompositeQuery
		rt       envelope.RequestType
		warnings []string
	)
	if isDefinition(input) {
		compiled, err := LoadDefinition(input)
		if err != nil {
			return failLoad(formatter, err)
		}
		panel := compiled.Panel
		if panel == "" {
			panel = queryir.PanelTimeSeries
		}
		cq = envelope.FromQuery(compiled.Query, panel)
		rt = envelope.MapPanelTypeToRequestType(panel)
		warnings = queryir.Validate(compiled.Query).Warnings
	} else {
		if err := decodeInput(input, cmd.InOrStdin(), &cq); err != nil {
			return failLoad(formatter, err)
		}
		rt = envelope.RequestType(opts.RequestType)
		if !validRequestType(rt) {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("unknown request type %q", opts.RequestType), nil)
		}
	}

	out := ValidationOutput{
		RequestType: rt,
		Envelopes:   len(cq.Queries),
		Problems:    envelope.ValidateComposite(cq, rt),
		Warnings:    warnings,
	}
	out.Valid = len(out.Problems) == 0
	formatter.VerboseLog("Checked %d envelope(s) for request type %q", out.Envelopes, rt)

	if !out.Valid {
		msg := fmt.Sprintf("%d problem(s) found", len(out.Problems))
		if formatter.JSON() {
			return formatter.Fail(ExitFailure, ErrCodeProblems, msg, out)
		}
		writeWarnings(formatter, out.Warnings)
		writeProblems(formatter, out.Problems)
		return NewExitError(ExitFailure, msg)
	}

	if formatter.JSON() {
		return formatter.Success(out)
	}
	writeWarnings(formatter, out.Warnings)
	writeProblems(formatter, out.Problems)
	return nil
}

func validRequestType(rt envelope.RequestType) bool {
	switch rt {
	case envelope.RequestTypeTimeSeries, envelope.RequestTypeScalar, envelope.RequestTypeTrace,
		envelope.RequestTypeRaw, envelope.RequestTypeDistribution:
		return true
	}
	return false
}

func writeWarnings(f *OutputFormatter, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(f.Writer, "! %s\n", w)
	}
}
