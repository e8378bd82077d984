package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/roach88/querybuilder/internal/aggregation"
	"github.com/roach88/querybuilder/internal/compiler"
	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/filter"
	"github.com/roach88/querybuilder/internal/pagination"
	"github.com/roach88/querybuilder/internal/queryir"
)

// bindAndValidate decodes the body into req and checks its validate tags,
// replying 400 itself on failure. ok is false when a reply was written.
func bindAndValidate(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, Fail(c, http.StatusBadRequest, CodeInvalidJSON, MessageFor(CodeInvalidJSON))
	}
	if err := c.Validate(req); err != nil {
		return false, Fail(c, http.StatusBadRequest, CodeValidationFailed, describeValidation(err))
	}
	return true, nil
}

// parsePanel accepts every spelling ParsePanelType knows and passes any other
// value through; unknown panels map to the unknown request type downstream.
func parsePanel(s string) queryir.PanelType {
	if p, ok := queryir.ParsePanelType(s); ok {
		return p
	}
	return queryir.PanelType(s)
}

type convertResponse struct {
	CompositeQuery envelope.CompositeQuery    `json:"compositeQuery"`
	RequestType    envelope.RequestType       `json:"requestType"`
	Problems       []envelope.ValidationError `json:"problems"`
}

type legacyResponse struct {
	Query    queryir.Query              `json:"query"`
	Problems []envelope.ValidationError `json:"problems"`
}

// convert turns a v3 composite query into the v5 envelope list. With
// ?to=legacy it goes the other way: a v5 composite query becomes the
// editor's query, checked against the panelType query parameter.
func (s *Server) convert(c echo.Context) error {
	switch c.QueryParam("to") {
	case "", "v5":
	case "legacy":
		return s.convertToLegacy(c)
	default:
		return Fail(c, http.StatusBadRequest, CodeValidationFailed, "to must be one of v5, legacy")
	}

	var req envelope.LegacyCompositeQuery
	if err := c.Bind(&req); err != nil {
		return Fail(c, http.StatusBadRequest, CodeInvalidJSON, MessageFor(CodeInvalidJSON))
	}

	cq, err := envelope.CompositeQueryToQueryEnvelope(req)
	if err != nil {
		return Fail(c, http.StatusBadRequest, CodeValidationFailed, err.Error())
	}
	rt := envelope.MapPanelTypeToRequestType(req.PanelType)
	return Success(c, convertResponse{
		CompositeQuery: cq,
		RequestType:    rt,
		Problems:       envelope.ValidateComposite(cq, rt),
	})
}

func (s *Server) convertToLegacy(c echo.Context) error {
	var cq envelope.CompositeQuery
	if err := c.Bind(&cq); err != nil {
		return Fail(c, http.StatusBadRequest, CodeInvalidJSON, MessageFor(CodeInvalidJSON))
	}
	if len(cq.Queries) == 0 {
		return Fail(c, http.StatusBadRequest, CodeValidationFailed, "queries is required")
	}

	panel := queryir.PanelTimeSeries
	if p := c.QueryParam("panelType"); p != "" {
		panel = parsePanel(p)
	}
	return Success(c, legacyResponse{
		Query:    envelope.ToQuery(cq),
		Problems: envelope.ValidateComposite(cq, envelope.MapPanelTypeToRequestType(panel)),
	})
}

type prepareRequest struct {
	Query             queryir.Query     `json:"query"`
	PanelType         string            `json:"panelType" validate:"required"`
	OriginalPanelType string            `json:"originalPanelType"`
	Start             int64             `json:"start" validate:"min=0"`
	End               int64             `json:"end" validate:"gtfield=Start"`
	FormatForWeb      bool              `json:"formatForWeb"`
	FillGaps          bool              `json:"fillGaps"`
	Variables         map[string]any    `json:"variables"`
	VariableTypes     map[string]string `json:"variableTypes"`
}

type prepareResponse struct {
	Request  envelope.QueryRangeRequest `json:"request"`
	Legends  map[string]string          `json:"legends"`
	Warnings []string                   `json:"warnings"`
	Problems []envelope.ValidationError `json:"problems"`
}

// prepare builds the query_range payload for a legacy query. Start and end
// are epoch milliseconds.
func (s *Server) prepare(c echo.Context) error {
	var req prepareRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	panel := parsePanel(req.PanelType)
	var original queryir.PanelType
	if req.OriginalPanelType != "" {
		original = parsePanel(req.OriginalPanelType)
	}

	payload, legends := envelope.PrepareQueryRange(envelope.PrepareParams{
		Query:             req.Query,
		PanelType:         panel,
		OriginalPanelType: original,
		Start:             time.UnixMilli(req.Start),
		End:               time.UnixMilli(req.End),
		FormatForWeb:      req.FormatForWeb,
		FillGaps:          req.FillGaps,
		Variables:         req.Variables,
		VariableTypes:     req.VariableTypes,
	})

	return Success(c, prepareResponse{
		Request:  payload,
		Legends:  legends,
		Warnings: queryir.Validate(req.Query).Warnings,
		Problems: envelope.ValidateComposite(payload.CompositeQuery, payload.RequestType),
	})
}

type validateRequest struct {
	CompositeQuery envelope.CompositeQuery `json:"compositeQuery"`
	RequestType    string                  `json:"requestType" validate:"required"`
}

type validateResponse struct {
	Valid    bool                       `json:"valid"`
	Problems []envelope.ValidationError `json:"problems"`
}

// validate reports what the backend would reject in a v5 composite query.
// Problems are data, not request errors, so the reply is 200 either way.
func (s *Server) validate(c echo.Context) error {
	var req validateRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	problems := envelope.ValidateComposite(req.CompositeQuery, envelope.RequestType(req.RequestType))
	return Success(c, validateResponse{Valid: len(problems) == 0, Problems: problems})
}

type paginateRequest struct {
	Query      *queryir.BuilderQuery `json:"query"`
	ListItemID string                `json:"listItemId"`
	Page       int                   `json:"page" validate:"min=0"`
	PageSize   int                   `json:"pageSize" validate:"min=0,max=10000"`
}

type paginateResponse struct {
	Filters queryir.TagFilter `json:"filters"`
	Offset  *int              `json:"offset,omitempty"`
	Limit   *int              `json:"limit"`
	Mode    pagination.Mode   `json:"mode"`
}

// paginate computes the filters and offset for the requested page of a
// list query. The timestamp ordering is read from the query itself.
func (s *Server) paginate(c echo.Context) error {
	var req paginateRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	params := pagination.Params{
		Query:      req.Query,
		ListItemID: req.ListItemID,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if params.PageSize == 0 {
		params.PageSize = s.pageSize
	}
	if req.Query != nil {
		params.OrderByTimestamp = pagination.TimestampOrder(*req.Query)
	}

	r := pagination.GetPaginationQueryData(params)
	return Success(c, paginateResponse{
		Filters: r.Filters,
		Offset:  r.Offset,
		Limit:   r.Limit,
		Mode:    r.Mode,
	})
}

type aggregationsRequest struct {
	Expression     string `json:"expression" validate:"required"`
	AvailableAlias string `json:"availableAlias"`
}

// aggregations splits aggregation expression text into its calls.
func (s *Server) aggregations(c echo.Context) error {
	var req aggregationsRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	return Success(c, map[string]any{
		"aggregations": aggregation.ParseAggregations(req.Expression, req.AvailableAlias),
	})
}

type filterRequest struct {
	Expression string                 `json:"expression"`
	Keys       []queryir.AttributeKey `json:"keys"`
}

type filterResponse struct {
	Filter     queryir.TagFilter `json:"filter"`
	Expression string            `json:"expression"`
}

// parseFilter parses filter text against the declared keys. Keys not listed
// are treated as strings. The normalized expression is echoed back.
func (s *Server) parseFilter(c echo.Context) error {
	var req filterRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	f, err := filter.FromExpression(req.Expression, filter.KeysResolver(req.Keys))
	if err != nil {
		return Fail(c, http.StatusBadRequest, CodeValidationFailed, err.Error())
	}
	return Success(c, filterResponse{Filter: f, Expression: filter.FormatExpression(f)})
}

type compileRequest struct {
	Source   string `json:"source" validate:"required"`
	Filename string `json:"filename"`
}

type compileResponse struct {
	Query          queryir.Query              `json:"query"`
	PanelType      queryir.PanelType          `json:"panelType"`
	CompositeQuery envelope.CompositeQuery    `json:"compositeQuery"`
	Problems       []envelope.ValidationError `json:"problems"`
}

type compileFailure struct {
	Field string `json:"field"`
}

// compile evaluates a CUE query definition.
func (s *Server) compile(c echo.Context) error {
	var req compileRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	filename := req.Filename
	if filename == "" {
		filename = "query.cue"
	}

	result, err := compiler.CompileString(req.Source, filename)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return FailWithData(c, http.StatusUnprocessableEntity, CodeCompileFailed, ce.Error(), compileFailure{Field: ce.Field})
		}
		return Fail(c, http.StatusUnprocessableEntity, CodeCompileFailed, err.Error())
	}

	cq := envelope.FromQuery(result.Query, result.Panel)
	return Success(c, compileResponse{
		Query:          result.Query,
		PanelType:      result.Panel,
		CompositeQuery: cq,
		Problems:       envelope.ValidateComposite(cq, envelope.MapPanelTypeToRequestType(result.Panel)),
	})
}
