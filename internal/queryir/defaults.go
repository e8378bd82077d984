package queryir

import (
	"fmt"
	"strconv"
	"strings"
)

// Default names for the first sub-query of each kind.
const (
	DefaultQueryName         = "A"
	DefaultFormulaName       = "F1"
	DefaultTraceOperatorName = "T1"
)

// DefaultBuilderQuery returns the complete template for a plain query on ds.
// Every field is populated so downstream code never sees a partial object.
func DefaultBuilderQuery(ds DataSource) BuilderQuery {
	if !ds.Valid() {
		ds = DataSourceMetrics
	}
	q := BuilderQuery{
		QueryName:          DefaultQueryName,
		DataSource:         ds,
		AggregateOperator:  "count",
		AggregateAttribute: AttributeKey{},
		Functions:          []QueryFunction{},
		Filters:            EmptyFilter(),
		Expression:         DefaultQueryName,
		Having:             []Having{},
		OrderBy:            []OrderBy{},
		GroupBy:            []AttributeKey{},
		ReduceTo:           ReduceToAvg,
	}
	switch ds {
	case DataSourceMetrics:
		q.TimeAggregation = "rate"
		q.SpaceAggregation = "sum"
		q.Aggregations = Aggregations{MetricAggregation{
			TimeAggregation:  "rate",
			SpaceAggregation: "sum",
		}}
	default:
		q.Aggregations = Aggregations{CountAggregation()}
	}
	return q
}

// DefaultFormula returns the complete template for a formula.
func DefaultFormula() BuilderFormula {
	return BuilderFormula{
		QueryName:  DefaultFormulaName,
		Expression: "",
		OrderBy:    []OrderBy{},
		Having:     []Having{},
	}
}

// DefaultTraceOperator returns the complete template for a trace operator.
func DefaultTraceOperator() TraceOperator {
	bq := DefaultBuilderQuery(DataSourceTraces)
	bq.QueryName = DefaultTraceOperatorName
	bq.Expression = ""
	return TraceOperator{BuilderQuery: bq}
}

// NewQuery returns a builder Query holding one default query on ds.
func NewQuery(ds DataSource) Query {
	return Query{
		QueryType: QueryTypeBuilder,
		Builder: Builder{
			QueryData:          []BuilderQuery{DefaultBuilderQuery(ds)},
			QueryFormulas:      []BuilderFormula{},
			QueryTraceOperator: []TraceOperator{},
		},
		PromQL:        []PromQuery{{Name: DefaultQueryName, Query: ""}},
		ClickHouseSQL: []ClickHouseQuery{{Name: DefaultQueryName, Query: ""}},
	}
}

// NextQueryName returns the first unused letter name: A, B, ..., Z, AA, AB, ...
func NextQueryName(q Query) string {
	used := q.Names()
	for i := 0; ; i++ {
		name := letterName(i)
		if !used[name] {
			return name
		}
	}
}

// NextFormulaName returns the first unused formula name: F1, F2, ...
func NextFormulaName(q Query) string {
	return nextNumbered(q, "F")
}

// NextTraceOperatorName returns the first unused trace operator name: T1, T2, ...
func NextTraceOperatorName(q Query) string {
	return nextNumbered(q, "T")
}

func nextNumbered(q Query, prefix string) string {
	used := q.Names()
	for i := 1; ; i++ {
		name := prefix + strconv.Itoa(i)
		if !used[name] {
			return name
		}
	}
}

func letterName(i int) string {
	var b strings.Builder
	for {
		b.WriteByte(byte('A' + i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	s := []byte(b.String())
	for l, r := 0, len(s)-1; l < r; l, r = l+1, r-1 {
		s[l], s[r] = s[r], s[l]
	}
	return string(s)
}

// Names returns the set of names used by all builder sub-queries.
func (q Query) Names() map[string]bool {
	used := make(map[string]bool)
	for _, bq := range q.Builder.QueryData {
		used[bq.QueryName] = true
	}
	for _, f := range q.Builder.QueryFormulas {
		used[f.QueryName] = true
	}
	for _, t := range q.Builder.QueryTraceOperator {
		used[t.QueryName] = true
	}
	return used
}

// String summarizes the query for logs.
func (q Query) String() string {
	return fmt.Sprintf("Query{type=%s queries=%d formulas=%d traceOperators=%d promql=%d clickhouse=%d}",
		q.QueryType,
		len(q.Builder.QueryData), len(q.Builder.QueryFormulas), len(q.Builder.QueryTraceOperator),
		len(q.PromQL), len(q.ClickHouseSQL))
}
