package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/querybuilder/internal/queryir"
)

// Kind is the discriminator tag carried by every envelope entry.
type Kind string

const (
	KindBuilderQuery  Kind = "builder_query"
	KindFormula       Kind = "builder_formula"
	KindTraceOperator Kind = "builder_trace_operator"
	KindPromQL        Kind = "promql"
	KindClickHouseSQL Kind = "clickhouse_sql"
)

// Valid reports whether k is a known envelope kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBuilderQuery, KindFormula, KindTraceOperator, KindPromQL, KindClickHouseSQL:
		return true
	}
	return false
}

// Signal is the v5 name for a data source.
type Signal string

const (
	SignalMetrics Signal = "metrics"
	SignalLogs    Signal = "logs"
	SignalTraces  Signal = "traces"
)

// RequestType tells the backend what result shape to produce.
type RequestType string

const (
	RequestTypeUnknown      RequestType = ""
	RequestTypeTimeSeries   RequestType = "time_series"
	RequestTypeScalar       RequestType = "scalar"
	RequestTypeTrace        RequestType = "trace"
	RequestTypeRaw          RequestType = "raw"
	RequestTypeDistribution RequestType = "distribution"
)

// FieldKey is a v5 telemetry field reference. Unlike the legacy
// AttributeKey it names the field context explicitly.
type FieldKey struct {
	Name          string `json:"name"`
	FieldDataType string `json:"fieldDataType,omitempty"`
	FieldContext  string `json:"fieldContext,omitempty"`
	Signal        Signal `json:"signal,omitempty"`
}

// OrderKey identifies the column an OrderBy sorts on.
type OrderKey struct {
	Name          string `json:"name"`
	FieldDataType string `json:"fieldDataType,omitempty"`
	FieldContext  string `json:"fieldContext,omitempty"`
}

// OrderBy is the v5 sort clause.
type OrderBy struct {
	Key       OrderKey      `json:"key"`
	Direction queryir.Order `json:"direction"`
}

// Filter is a v5 filter expression such as "service.name = 'api'".
type Filter struct {
	Expression string `json:"expression"`
}

// Having is a v5 post-aggregation filter expression.
type Having struct {
	Expression string `json:"expression"`
}

// FunctionArg is a positional (Name empty) or named function argument.
type FunctionArg struct {
	Name  string `json:"name,omitempty"`
	Value any    `json:"value"`
}

// Function is a post-processing function on a query result.
type Function struct {
	Name string        `json:"name"`
	Args []FunctionArg `json:"args,omitempty"`
}

// BaseSpec holds the fields shared by builder queries and trace operators.
type BaseSpec struct {
	StepInterval *int       `json:"stepInterval,omitempty"`
	Disabled     bool       `json:"disabled"`
	Filter       *Filter    `json:"filter,omitempty"`
	GroupBy      []FieldKey `json:"groupBy,omitempty"`
	Limit        *int       `json:"limit,omitempty"`
	Offset       *int       `json:"offset,omitempty"`
	Order        []OrderBy  `json:"order,omitempty"`
	Legend       string     `json:"legend,omitempty"`
	Having       *Having    `json:"having,omitempty"`
	Functions    []Function `json:"functions,omitempty"`
	SelectFields []FieldKey `json:"selectFields,omitempty"`
}

// BuilderQuerySpec is the spec of a builder_query envelope.
type BuilderQuerySpec struct {
	Name   string `json:"name"`
	Signal Signal `json:"signal"`
	Source string `json:"source,omitempty"`
	BaseSpec
	Aggregations queryir.Aggregations `json:"aggregations,omitempty"`
}

// FormulaSpec is the spec of a builder_formula envelope.
type FormulaSpec struct {
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
	Disabled   bool      `json:"disabled"`
	Limit      *int      `json:"limit,omitempty"`
	Legend     string    `json:"legend,omitempty"`
	Order      []OrderBy `json:"order,omitempty"`
	Having     *Having   `json:"having,omitempty"`
}

// TraceOperatorSpec is the spec of a builder_trace_operator envelope.
type TraceOperatorSpec struct {
	Name string `json:"name"`
	BaseSpec
	Expression      string               `json:"expression"`
	ReturnSpansFrom string               `json:"returnSpansFrom,omitempty"`
	Aggregations    queryir.Aggregations `json:"aggregations,omitempty"`
}

// PromQLSpec is the spec of a promql envelope.
type PromQLSpec struct {
	Name     string `json:"name"`
	Query    string `json:"query"`
	Disabled bool   `json:"disabled"`
	Step     *int   `json:"step,omitempty"`
	Legend   string `json:"legend,omitempty"`
	Stats    bool   `json:"stats"`
}

// ClickHouseSpec is the spec of a clickhouse_sql envelope.
type ClickHouseSpec struct {
	Name     string `json:"name"`
	Query    string `json:"query"`
	Disabled bool   `json:"disabled"`
	Legend   string `json:"legend,omitempty"`
}

// QueryEnvelope is one type-tagged entry of a composite query. Spec holds
// the concrete spec struct for Type, never a pointer.
type QueryEnvelope struct {
	Type Kind `json:"type"`
	Spec any  `json:"spec"`
}

// UnmarshalJSON decodes Spec into the struct selected by Type.
func (e *QueryEnvelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type Kind            `json:"type"`
		Spec json.RawMessage `json:"spec"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var (
		spec any
		err  error
	)
	switch raw.Type {
	case KindBuilderQuery:
		spec, err = decodeSpec[BuilderQuerySpec](raw.Spec)
	case KindFormula:
		spec, err = decodeSpec[FormulaSpec](raw.Spec)
	case KindTraceOperator:
		spec, err = decodeSpec[TraceOperatorSpec](raw.Spec)
	case KindPromQL:
		spec, err = decodeSpec[PromQLSpec](raw.Spec)
	case KindClickHouseSQL:
		spec, err = decodeSpec[ClickHouseSpec](raw.Spec)
	default:
		return fmt.Errorf("unknown query envelope type %q", raw.Type)
	}
	if err != nil {
		return fmt.Errorf("%s spec: %w", raw.Type, err)
	}
	e.Type = raw.Type
	e.Spec = spec
	return nil
}

func decodeSpec[T any](data json.RawMessage) (T, error) {
	var spec T
	if len(data) == 0 {
		return spec, nil
	}
	err := json.Unmarshal(data, &spec)
	return spec, err
}

// Name returns the name carried by the envelope's spec.
func (e QueryEnvelope) Name() string {
	switch s := e.Spec.(type) {
	case BuilderQuerySpec:
		return s.Name
	case FormulaSpec:
		return s.Name
	case TraceOperatorSpec:
		return s.Name
	case PromQLSpec:
		return s.Name
	case ClickHouseSpec:
		return s.Name
	}
	return ""
}

// Disabled reports whether the envelope's spec is disabled.
func (e QueryEnvelope) Disabled() bool {
	switch s := e.Spec.(type) {
	case BuilderQuerySpec:
		return s.Disabled
	case FormulaSpec:
		return s.Disabled
	case TraceOperatorSpec:
		return s.Disabled
	case PromQLSpec:
		return s.Disabled
	case ClickHouseSpec:
		return s.Disabled
	}
	return false
}

// CompositeQuery is the flat, type-tagged list form of a Query.
type CompositeQuery struct {
	Queries []QueryEnvelope `json:"queries"`
}

// LegacyCompositeQuery is the nested v3 request shape. BuilderQueries is
// kept raw because an entry's kind is decided by which fields it carries.
type LegacyCompositeQuery struct {
	QueryType         queryir.QueryType                  `json:"queryType"`
	PanelType         queryir.PanelType                  `json:"panelType,omitempty"`
	BuilderQueries    map[string]json.RawMessage         `json:"builderQueries,omitempty"`
	PromQueries       map[string]queryir.PromQuery       `json:"promQueries,omitempty"`
	ClickHouseQueries map[string]queryir.ClickHouseQuery `json:"chQueries,omitempty"`
	FillGaps          bool                               `json:"fillGaps,omitempty"`
	Unit              string                             `json:"unit,omitempty"`
}

// FormatOptions controls server-side result shaping.
type FormatOptions struct {
	FormatTableResultForUI bool `json:"formatTableResultForUI"`
	FillGaps               bool `json:"fillGaps"`
}

// VariableItem is a dashboard variable value sent with a request.
type VariableItem struct {
	Value any    `json:"value"`
	Type  string `json:"type,omitempty"`
}

// QueryRangeRequest is the v5 query_range payload.
type QueryRangeRequest struct {
	SchemaVersion  string                  `json:"schemaVersion"`
	Start          int64                   `json:"start"`
	End            int64                   `json:"end"`
	RequestType    RequestType             `json:"requestType"`
	CompositeQuery CompositeQuery          `json:"compositeQuery"`
	FormatOptions  FormatOptions           `json:"formatOptions"`
	Variables      map[string]VariableItem `json:"variables"`
}
