package aggregation

import (
	"strconv"

	"github.com/roach88/querybuilder/internal/queryir"
)

// OperatorNoop is the legacy "no aggregation" operator. It maps to count.
const OperatorNoop = "noop"

// LegacyOperator is the pre-expression aggregation form: one operator
// applied to one attribute.
type LegacyOperator struct {
	Operator         string
	Attribute        queryir.AttributeKey
	DataSource       queryir.DataSource
	TimeAggregation  string
	SpaceAggregation string
	Alias            string
	ReduceTo         queryir.ReduceTo
	Temporality      string
}

// FromOperator converts the legacy operator form into descriptors.
// An empty operator yields nil so callers can keep existing aggregations.
func FromOperator(op LegacyOperator) []queryir.Aggregation {
	if op.Operator == "" {
		return nil
	}

	operator := normalizeNoop(op.Operator)

	if op.DataSource != queryir.DataSourceLogs && op.DataSource != queryir.DataSourceTraces {
		return []queryir.Aggregation{queryir.MetricAggregation{
			MetricName:       op.Attribute.Key,
			Temporality:      op.Temporality,
			TimeAggregation:  firstNonEmpty(normalizeNoop(op.TimeAggregation), operator),
			SpaceAggregation: firstNonEmpty(normalizeNoop(op.SpaceAggregation), operator),
			ReduceTo:         op.ReduceTo,
		}}
	}

	expr := operator + "()"
	if op.Attribute.Key != "" {
		expr = operator + "(" + op.Attribute.Key + ")"
	}
	return []queryir.Aggregation{queryir.ExpressionAggregation{Expression: expr, Alias: op.Alias}}
}

// FromBuilderQuery converts the legacy operator fields of q.
func FromBuilderQuery(q queryir.BuilderQuery) []queryir.Aggregation {
	return FromOperator(LegacyOperator{
		Operator:         q.AggregateOperator,
		Attribute:        q.AggregateAttribute,
		DataSource:       q.DataSource,
		TimeAggregation:  q.TimeAggregation,
		SpaceAggregation: q.SpaceAggregation,
		Alias:            q.Legend,
		ReduceTo:         q.ReduceTo,
		Temporality:      q.AggregateAttribute.Temporality,
	})
}

// Expressions returns the expression text of each descriptor, used for
// result column ids ("A.count()") and labels.
func Expressions(aggs []queryir.Aggregation) []string {
	out := make([]string, 0, len(aggs))
	for _, a := range aggs {
		switch v := a.(type) {
		case queryir.ExpressionAggregation:
			out = append(out, v.Expression)
		case queryir.MetricAggregation:
			out = append(out, v.SpaceAggregation+"("+v.MetricName+")")
		}
	}
	return out
}

// Label is a display label and result column id for one aggregation.
type Label struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// QueryLabels lists one label per aggregation across queries. A query with
// several aggregations gets "A.0", "A.1" labels and "A.<expression>" ids;
// a single aggregation is labelled with the query name alone.
func QueryLabels(queries []queryir.BuilderQuery) []Label {
	var labels []Label
	for i := range queries {
		q := &queries[i]
		if q.QueryName == "" || len(q.Aggregations) == 0 {
			continue
		}
		exprs := Expressions(CreateAggregation(q, ""))
		multi := len(exprs) > 1
		for idx, expr := range exprs {
			if !multi {
				labels = append(labels, Label{Label: q.QueryName, Value: q.QueryName})
				continue
			}
			labels = append(labels, Label{
				Label: q.QueryName + "." + strconv.Itoa(idx),
				Value: q.QueryName + "." + expr,
			})
		}
	}
	return labels
}

func normalizeNoop(s string) string {
	if s == OperatorNoop {
		return "count"
	}
	return s
}
