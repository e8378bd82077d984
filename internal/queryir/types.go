package queryir

// QueryType selects which section of a Query is active.
type QueryType string

const (
	QueryTypeBuilder    QueryType = "builder"
	QueryTypePromQL     QueryType = "promql"
	QueryTypeClickHouse QueryType = "clickhouse_sql"
)

// Valid reports whether t is a known query type.
func (t QueryType) Valid() bool {
	switch t {
	case QueryTypeBuilder, QueryTypePromQL, QueryTypeClickHouse:
		return true
	}
	return false
}

// DataSource is the telemetry signal a builder query reads.
type DataSource string

const (
	DataSourceMetrics DataSource = "metrics"
	DataSourceLogs    DataSource = "logs"
	DataSourceTraces  DataSource = "traces"
)

// Valid reports whether d is one of metrics, logs or traces.
func (d DataSource) Valid() bool {
	switch d {
	case DataSourceMetrics, DataSourceLogs, DataSourceTraces:
		return true
	}
	return false
}

// PanelType is the widget that will render the query result.
// It decides the request type and whether metric results collapse to a scalar.
type PanelType string

const (
	PanelTimeSeries PanelType = "graph"
	PanelBar        PanelType = "bar"
	PanelTable      PanelType = "table"
	PanelPie        PanelType = "pie"
	PanelValue      PanelType = "value"
	PanelTrace      PanelType = "trace"
	PanelList       PanelType = "list"
	PanelHistogram  PanelType = "histogram"
)

// IsScalar reports whether the panel shows one value per series.
// Only these panels may carry a reduceTo on metric aggregations.
func (p PanelType) IsScalar() bool {
	switch p {
	case PanelTable, PanelPie, PanelValue:
		return true
	}
	return false
}

// ParsePanelType accepts both the wire value ("graph") and the constant
// name ("TIME_SERIES") used by dashboards.
func ParsePanelType(s string) (PanelType, bool) {
	switch s {
	case "graph", "TIME_SERIES", "time_series":
		return PanelTimeSeries, true
	case "bar", "BAR":
		return PanelBar, true
	case "table", "TABLE":
		return PanelTable, true
	case "pie", "PIE":
		return PanelPie, true
	case "value", "VALUE":
		return PanelValue, true
	case "trace", "TRACE":
		return PanelTrace, true
	case "list", "LIST":
		return PanelList, true
	case "histogram", "HISTOGRAM":
		return PanelHistogram, true
	}
	return "", false
}

// Order is a sort direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ReduceTo collapses a metric series to a single value for scalar panels.
type ReduceTo string

const (
	ReduceToSum    ReduceTo = "sum"
	ReduceToCount  ReduceTo = "count"
	ReduceToAvg    ReduceTo = "avg"
	ReduceToMin    ReduceTo = "min"
	ReduceToMax    ReduceTo = "max"
	ReduceToLast   ReduceTo = "last"
	ReduceToMedian ReduceTo = "median"
)

// Valid reports whether r is a known reduce operator.
func (r ReduceTo) Valid() bool {
	switch r {
	case ReduceToSum, ReduceToCount, ReduceToAvg, ReduceToMin, ReduceToMax, ReduceToLast, ReduceToMedian:
		return true
	}
	return false
}

// Query is the complete request value shared by every core component.
//
// A Query is never mutated in place. Every edit goes through Clone or one of
// the With* helpers and yields a new value; callers may keep old values as
// undo history.
//
// Exactly one section is active, chosen by QueryType. The other sections are
// carried along so switching tabs does not lose work.
type Query struct {
	ID            string            `json:"id,omitempty"`
	QueryType     QueryType         `json:"queryType"`
	Builder       Builder           `json:"builder"`
	PromQL        []PromQuery       `json:"promql"`
	ClickHouseSQL []ClickHouseQuery `json:"clickhouse_sql"`
	Unit          string            `json:"unit,omitempty"`
}

// Builder holds the three kinds of named builder sub-queries.
type Builder struct {
	QueryData          []BuilderQuery   `json:"queryData"`
	QueryFormulas      []BuilderFormula `json:"queryFormulas"`
	QueryTraceOperator []TraceOperator  `json:"queryTraceOperator"`
}

// BuilderQuery is one named query over a single data source.
//
// Aggregation can be expressed two ways: the legacy operator form
// (AggregateOperator + AggregateAttribute, plus Time/SpaceAggregation for
// metrics) or the structured Aggregations list. The aggregation package
// normalizes both.
type BuilderQuery struct {
	QueryName          string            `json:"queryName"`
	DataSource         DataSource        `json:"dataSource"`
	Source             string            `json:"source,omitempty"`
	AggregateOperator  string            `json:"aggregateOperator"`
	AggregateAttribute AttributeKey      `json:"aggregateAttribute"`
	TimeAggregation    string            `json:"timeAggregation"`
	SpaceAggregation   string            `json:"spaceAggregation"`
	ReduceTo           ReduceTo          `json:"reduceTo"`
	Aggregations       Aggregations      `json:"aggregations"`
	Functions          []QueryFunction   `json:"functions"`
	Filters            TagFilter         `json:"filters"`
	Filter             *FilterExpression `json:"filter,omitempty"`
	Expression         string            `json:"expression"`
	Disabled           bool              `json:"disabled"`
	Having             []Having          `json:"having"`
	Limit              *int              `json:"limit"`
	Offset             int               `json:"offset"`
	PageSize           int               `json:"pageSize"`
	StepInterval       *int              `json:"stepInterval"`
	OrderBy            []OrderBy         `json:"orderBy"`
	GroupBy            []AttributeKey    `json:"groupBy"`
	Legend             string            `json:"legend"`
	SelectColumns      []AttributeKey    `json:"selectColumns"`
}

// BuilderFormula combines other queries arithmetically, e.g. "A / B * 100".
type BuilderFormula struct {
	QueryName  string    `json:"queryName"`
	Expression string    `json:"expression"`
	Disabled   bool      `json:"disabled"`
	Legend     string    `json:"legend"`
	Limit      *int      `json:"limit"`
	OrderBy    []OrderBy `json:"orderBy"`
	Having     []Having  `json:"having"`
}

// TraceOperator combines named trace queries with span-relationship
// operators, e.g. "A => B" or "A && B". It carries the same ordering, limit
// and aggregation fields as a BuilderQuery.
type TraceOperator struct {
	BuilderQuery
	ReturnSpansFrom string `json:"returnSpansFrom,omitempty"`
}

// PromQuery is a raw PromQL query.
type PromQuery struct {
	Name         string `json:"name"`
	Query        string `json:"query"`
	Legend       string `json:"legend"`
	Disabled     bool   `json:"disabled"`
	StepInterval *int   `json:"stepInterval,omitempty"`
}

// ClickHouseQuery is a raw ClickHouse SQL query.
type ClickHouseQuery struct {
	Name     string `json:"name"`
	Query    string `json:"query"`
	Legend   string `json:"legend"`
	Disabled bool   `json:"disabled"`
}

// QueryFunction is a post-processing function applied to a query result
// (timeShift, ewma5, cutOffMin, ...).
type QueryFunction struct {
	Name      string         `json:"name"`
	Args      []any          `json:"args"`
	NamedArgs map[string]any `json:"namedArgs"`
}

// FilterExpression is the free-text filter form used by the envelope schema.
type FilterExpression struct {
	Expression string `json:"expression"`
}

// IntPtr returns a pointer to n. Limit, StepInterval and offsets are optional
// on the wire and use nil for "unset".
func IntPtr(n int) *int {
	return &n
}
