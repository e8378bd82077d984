// Package aggregation normalizes aggregation configuration into typed
// descriptors, independent of which widget produced it.
//
// Metrics use a structured contract (metric name, temporality, time and
// space aggregation). Logs and traces accept free-form expressions such as
// "p99(duration_nano) as latency". Both end up as queryir.Aggregation.
package aggregation

import (
	"regexp"

	"github.com/roach88/querybuilder/internal/queryir"
)

// aggregationPattern matches a function call with an optional alias:
// count(), sum(bytes) as total, avg(x) as 'avg x', p99(d) as "p-99".
var aggregationPattern = regexp.MustCompile(`([a-zA-Z0-9_]+\([^)]*\))(?:\s*as\s+((?:'[^']*'|"[^"]*"|[a-zA-Z0-9_-]+)))?`)

var aliasQuotes = regexp.MustCompile(`^['"]|['"]$`)

// ParseAggregations scans expression for every "func(args) [as alias]"
// token. When a token has no alias of its own, availableAlias is used.
// Text that contains no function call yields an empty slice.
func ParseAggregations(expression, availableAlias string) []queryir.ExpressionAggregation {
	result := []queryir.ExpressionAggregation{}
	for _, m := range aggregationPattern.FindAllStringSubmatch(expression, -1) {
		alias := m[2]
		if alias == "" {
			alias = availableAlias
		}
		if alias != "" {
			alias = aliasQuotes.ReplaceAllString(alias, "")
		}
		result = append(result, queryir.ExpressionAggregation{Expression: m[1], Alias: alias})
	}
	return result
}

// CreateAggregation derives the aggregation descriptors for one query.
//
//   - nil query: no descriptors
//   - metrics: exactly one MetricAggregation; ReduceTo only on scalar panels
//     (TABLE, PIE, VALUE) so time series never collapse to one value
//   - logs/traces: each configured entry is parsed; an entry that parses to
//     nothing becomes count(), and no entries at all yields [count()]
//
// Data sources other than logs and traces are treated as metrics.
func CreateAggregation(q *queryir.BuilderQuery, panel queryir.PanelType) []queryir.Aggregation {
	if q == nil {
		return []queryir.Aggregation{}
	}

	if q.DataSource != queryir.DataSourceLogs && q.DataSource != queryir.DataSourceTraces {
		return []queryir.Aggregation{metricAggregation(q, panel)}
	}

	if len(q.Aggregations) == 0 {
		return []queryir.Aggregation{queryir.CountAggregation()}
	}

	out := make([]queryir.Aggregation, 0, len(q.Aggregations))
	for _, agg := range q.Aggregations {
		expr, alias := expressionOf(agg)
		parsed := ParseAggregations(expr, alias)
		if len(parsed) == 0 {
			out = append(out, queryir.CountAggregation())
			continue
		}
		for _, p := range parsed {
			out = append(out, p)
		}
	}
	return out
}

func metricAggregation(q *queryir.BuilderQuery, panel queryir.PanelType) queryir.MetricAggregation {
	var first queryir.MetricAggregation
	if len(q.Aggregations) > 0 {
		if m, ok := q.Aggregations[0].(queryir.MetricAggregation); ok {
			first = m
		}
	}

	agg := queryir.MetricAggregation{
		MetricName:       firstNonEmpty(first.MetricName, q.AggregateAttribute.Key),
		Temporality:      firstNonEmpty(first.Temporality, q.AggregateAttribute.Temporality),
		TimeAggregation:  firstNonEmpty(first.TimeAggregation, q.TimeAggregation),
		SpaceAggregation: firstNonEmpty(first.SpaceAggregation, q.SpaceAggregation),
	}
	if panel.IsScalar() {
		agg.ReduceTo = queryir.ReduceTo(firstNonEmpty(string(first.ReduceTo), string(q.ReduceTo)))
	}
	return agg
}

// expressionOf returns the expression text of a logs/traces entry. A metric
// descriptor on a logs/traces query carries no expression and so falls back
// to count().
func expressionOf(agg queryir.Aggregation) (string, string) {
	if e, ok := agg.(queryir.ExpressionAggregation); ok {
		return e.Expression, e.Alias
	}
	return "", ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
