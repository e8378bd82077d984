package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/filter"
	"github.com/roach88/querybuilder/internal/pagination"
	"github.com/roach88/querybuilder/internal/queryir"
)

// PaginateOptions holds flags for the paginate command.
type PaginateOptions struct {
	*RootOptions
	Cursor   string
	Page     int
	PageSize int
}

// PaginateResult is the paginate command's output.
type PaginateResult struct {
	Mode       pagination.Mode   `json:"mode"`
	Filters    queryir.TagFilter `json:"filters"`
	Expression string            `json:"expression"`
	Offset     *int              `json:"offset,omitempty"`
	Limit      *int              `json:"limit"`
}

// NewPaginateCommand creates the paginate command.
func NewPaginateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PaginateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "paginate <list-query.json|->",
		Short: "Compute filters and offset for a page of a list query",
		Long: `Compute the filters, offset and limit for one page of a list query.

A query ordered by timestamp alone pages by keyset once --cursor (the id
of the last row seen) is given; anything else pages by offset.

Examples:
  qb paginate query.json --page 1
  qb paginate query.json --page 2 --cursor 2hX9... --page-size 50`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPaginate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "id of the last row of the previous page")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "1-based page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "rows per page (default from config)")

	return cmd
}

func runPaginate(opts *PaginateOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var q queryir.BuilderQuery
	if err := decodeInput(input, cmd.InOrStdin(), &q); err != nil {
		return failLoad(formatter, err)
	}

	pageSize := opts.PageSize
	if pageSize == 0 {
		cfg, err := opts.Settings()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		pageSize = cfg.Pagination.PageSize
	}
	if pageSize < 0 || opts.Page < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, "page and page-size must not be negative", nil)
	}

	r := pagination.GetPaginationQueryData(pagination.Params{
		Query:            &q,
		ListItemID:       opts.Cursor,
		OrderByTimestamp: pagination.TimestampOrder(q),
		Page:             opts.Page,
		PageSize:         pageSize,
	})
	result := PaginateResult{
		Mode:       r.Mode,
		Filters:    r.Filters,
		Expression: filter.FormatExpression(r.Filters),
		Offset:     r.Offset,
		Limit:      r.Limit,
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "mode:   %s\n", result.Mode)
	fmt.Fprintf(w, "limit:  %s\n", optionalInt(result.Limit))
	fmt.Fprintf(w, "offset: %s\n", optionalInt(result.Offset))
	fmt.Fprintf(w, "filter: %s\n", result.Expression)
	return nil
}

func optionalInt(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}
