package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/queryir"
)

func metricsSpec(name string) BuilderQuerySpec {
	return BuilderQuerySpec{
		Name:   name,
		Signal: SignalMetrics,
		Aggregations: queryir.Aggregations{queryir.MetricAggregation{
			MetricName:       "http_requests_total",
			TimeAggregation:  "rate",
			SpaceAggregation: "sum",
		}},
	}
}

func messages(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

func TestValidateCompositeValid(t *testing.T) {
	bq := queryir.DefaultBuilderQuery(queryir.DataSourceMetrics)
	bq.AggregateAttribute = queryir.AttributeKey{Key: "http_requests_total"}
	q := queryir.NewQuery(queryir.DataSourceMetrics)
	q.Builder.QueryData = []queryir.BuilderQuery{bq}
	q = q.AddFormula(queryir.BuilderFormula{QueryName: "F1", Expression: "A * 100"})

	errs := ValidateComposite(FromQuery(q, queryir.PanelTimeSeries), RequestTypeTimeSeries)
	require.NotNil(t, errs)
	assert.Empty(t, errs)
}

func TestValidateCompositeEmpty(t *testing.T) {
	errs := ValidateComposite(CompositeQuery{}, RequestTypeTimeSeries)
	assert.Equal(t, []string{"composite query: at least one query is required"}, messages(errs))
}

func TestValidateCompositeErrors(t *testing.T) {
	limit := MaxQueryLimit + 1

	tests := []struct {
		name  string
		query CompositeQuery
		rt    RequestType
		want  []string
	}{
		{
			name: "duplicate names",
			query: CompositeQuery{Queries: []QueryEnvelope{
				{Type: KindBuilderQuery, Spec: metricsSpec("A")},
				{Type: KindBuilderQuery, Spec: metricsSpec("A")},
			}},
			rt:   RequestTypeTimeSeries,
			want: []string{"query 'A': duplicate name, first used at position 1"},
		},
		{
			name: "missing name",
			query: CompositeQuery{Queries: []QueryEnvelope{
				{Type: KindBuilderQuery, Spec: metricsSpec("")},
			}},
			rt:   RequestTypeTimeSeries,
			want: []string{"metric query at position 1: name is required"},
		},
		{
			name: "formula references unknown query",
			query: CompositeQuery{Queries: []QueryEnvelope{
				{Type: KindBuilderQuery, Spec: metricsSpec("A")},
				{Type: KindFormula, Spec: FormulaSpec{Name: "F1", Expression: "A / B"}},
			}},
			rt:   RequestTypeTimeSeries,
			want: []string{`formula 'F1': expression references unknown query "B"`},
		},
		{
			name: "missing aggregation and metric name",
			query: CompositeQuery{Queries: []QueryEnvelope{
				{Type: KindBuilderQuery, Spec: BuilderQuerySpec{Name: "A", Signal: SignalLogs}},
				{Type: KindBuilderQuery, Spec: BuilderQuerySpec{
					Name:         "B",
					Signal:       SignalMetrics,
					Aggregations: queryir.Aggregations{queryir.MetricAggregation{ReduceTo: "p42"}},
				}},
			}},
			rt: RequestTypeScalar,
			want: []string{
				"query 'A': at least one aggregation is required",
				"query 'B': metric name is required for aggregation #1",
				`query 'B': invalid reduceTo "p42" for aggregation #1`,
			},
		},
		{
			name: "raw requests skip aggregation checks",
			query: CompositeQuery{Queries: []QueryEnvelope{
				{Type: KindBuilderQuery, Spec: BuilderQuerySpec{Name: "A", Signal: SignalLogs}},
			}},
			rt:   RequestTypeRaw,
			want: []string{},
		},
		{
			name: "duplicate alias",
			query: CompositeQuery{Queries: []QueryEnvelope{
				{Type: KindBuilderQuery, Spec: BuilderQuerySpec{
					Name:   "A",
					Signal: SignalTraces,
					Aggregations: queryir.Aggregations{
						queryir.ExpressionAggregation{Expression: "count()", Alias: "n"},
						queryir.ExpressionAggregation{Expression: "sum(bytes)", Alias: "n"},
					},
				}},
			}},
			rt:   RequestTypeTimeSeries,
			want: []string{`query 'A': duplicate aggregation alias "n"`},
		},
		{
			name: "limit order and function",
			query: CompositeQuery{Queries: []QueryEnvelope{
				{Type: KindBuilderQuery, Spec: func() BuilderQuerySpec {
					s := metricsSpec("A")
					s.Limit = &limit
					s.Order = []OrderBy{{Key: OrderKey{Name: "value"}, Direction: "up"}}
					s.Functions = []Function{{Name: "timeShift"}, {Name: "smooth"}}
					return s
				}()},
			}},
			rt: RequestTypeTimeSeries,
			want: []string{
				"query 'A': limit 10001 exceeds maximum allowed value of 10000",
				`query 'A': invalid direction "up" for order by clause #1; valid directions are asc, desc`,
				`query 'A': invalid function name "smooth" at function #2`,
			},
		},
		{
			name: "invalid signal",
			query: CompositeQuery{Queries: []QueryEnvelope{
				{Type: KindBuilderQuery, Spec: func() BuilderQuerySpec {
					s := metricsSpec("A")
					s.Signal = "events"
					return s
				}()},
			}},
			rt:   RequestTypeTimeSeries,
			want: []string{`query 'A': invalid signal "events"; valid signals are metrics, traces, logs`},
		},
		{
			name: "empty promql and clickhouse",
			query: CompositeQuery{Queries: []QueryEnvelope{
				{Type: KindPromQL, Spec: PromQLSpec{Name: "A"}},
				{Type: KindClickHouseSQL, Spec: ClickHouseSpec{Name: "B", Query: "  "}},
			}},
			rt: RequestTypeTimeSeries,
			want: []string{
				"PromQL query 'A': query is required",
				"ClickHouse query 'B': query is required",
			},
		},
		{
			name: "all disabled",
			query: CompositeQuery{Queries: []QueryEnvelope{
				{Type: KindPromQL, Spec: PromQLSpec{Name: "A", Query: "up", Disabled: true}},
			}},
			rt:   RequestTypeTimeSeries,
			want: []string{"composite query: all queries are disabled"},
		},
		{
			name: "trace operator without expression",
			query: CompositeQuery{Queries: []QueryEnvelope{
				{Type: KindBuilderQuery, Spec: BuilderQuerySpec{Name: "A", Signal: SignalTraces}},
				{Type: KindTraceOperator, Spec: TraceOperatorSpec{Name: "T1"}},
			}},
			rt:   RequestTypeTrace,
			want: []string{"trace operator 'T1': expression is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, messages(ValidateComposite(tt.query, tt.rt)))
		})
	}
}

func TestValidateCompositeInvalidPromQL(t *testing.T) {
	cq := CompositeQuery{Queries: []QueryEnvelope{
		{Type: KindPromQL, Spec: PromQLSpec{Name: "A", Query: "sum(rate(http_requests_total[5m])"}},
	}}

	errs := ValidateComposite(cq, RequestTypeTimeSeries)
	require.Len(t, errs, 1)
	assert.Equal(t, "PromQL query 'A'", errs[0].Name)
	assert.Contains(t, errs[0].Message, "invalid PromQL")
}

func TestCheckPromQL(t *testing.T) {
	valid := []string{
		"up",
		`sum by (service) (rate(http_requests_total{service="$service"}[5m]))`,
		"rate(http_requests_total[$__rate_interval])",
		"histogram_quantile(0.99, sum(rate(latency_bucket[${interval}])) by (le))",
	}
	for _, q := range valid {
		assert.NoError(t, CheckPromQL(q), q)
	}

	invalid := []string{
		"sum(rate(",
		"up{",
		"rate(x[$__rate_interval]",
	}
	for _, q := range invalid {
		assert.Error(t, CheckPromQL(q), q)
	}
}
