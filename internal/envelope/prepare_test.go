package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

var (
	testStart = time.Unix(1700000000, 0)
	testEnd   = testStart.Add(time.Hour)
)

func TestPrepareQueryRangeListPanel(t *testing.T) {
	bq := queryir.DefaultBuilderQuery(queryir.DataSourceLogs)
	bq.Filters = queryir.TagFilter{Op: "AND", Items: []queryir.TagFilterItem{{
		Key:   queryir.AttributeKey{Key: "service.name", DataType: queryir.DataTypeString, Type: queryir.FieldContextResource},
		Op:    "=",
		Value: ir.String("api"),
	}}}
	bq.OrderBy = []queryir.OrderBy{{ColumnName: "timestamp", Order: queryir.OrderDesc}}
	bq.PageSize = 50
	bq.Offset = 20
	bq.SelectColumns = []queryir.AttributeKey{
		{Key: "body", DataType: queryir.DataTypeString, Type: queryir.FieldContextLog},
		{Key: "serviceName", DataType: queryir.DataTypeString, Type: queryir.FieldContextTag},
		{Key: ""},
	}

	q := queryir.NewQuery(queryir.DataSourceLogs)
	q.Builder.QueryData = []queryir.BuilderQuery{bq}
	q.Builder.QueryTraceOperator = []queryir.TraceOperator{queryir.DefaultTraceOperator()}

	req, legends := PrepareQueryRange(PrepareParams{
		Query:         q,
		PanelType:     queryir.PanelList,
		Start:         testStart,
		End:           testEnd,
		Variables:     map[string]any{"env": "prod"},
		VariableTypes: map[string]string{"env": "QUERY"},
	})

	got, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"schemaVersion": "v1",
		"start": 1700000000000,
		"end": 1700003600000,
		"requestType": "raw",
		"compositeQuery": {"queries": [
			{"type": "builder_query", "spec": {
				"name": "A", "signal": "logs", "disabled": false,
				"filter": {"expression": "service.name = 'api'"},
				"limit": 50,
				"offset": 20,
				"order": [{"key": {"name": "timestamp"}, "direction": "desc"}],
				"selectFields": [
					{"name": "body", "fieldDataType": "string", "fieldContext": "log"},
					{"name": "serviceName", "fieldDataType": "string"}
				]
			}}
		]},
		"formatOptions": {"formatTableResultForUI": false, "fillGaps": false},
		"variables": {"env": {"value": "prod", "type": "query"}}
	}`, string(got))
	assert.Equal(t, map[string]string{"A": ""}, legends)
}

func TestPrepareQueryRangeTablePanel(t *testing.T) {
	bq := queryir.DefaultBuilderQuery(queryir.DataSourceMetrics)
	bq.AggregateAttribute = queryir.AttributeKey{Key: "system_cpu_usage"}
	bq.Legend = "{{host.name}}"
	bq.Offset = 100

	q := queryir.NewQuery(queryir.DataSourceMetrics)
	q.Builder.QueryData = []queryir.BuilderQuery{bq}
	q = q.AddFormula(queryir.BuilderFormula{QueryName: "F1", Expression: "A * 100", Legend: "pct", Limit: queryir.IntPtr(0)})

	req, legends := PrepareQueryRange(PrepareParams{
		Query:     q,
		PanelType: queryir.PanelTable,
		Start:     testStart,
		End:       testEnd,
		FillGaps:  true,
	})

	assert.Equal(t, RequestTypeScalar, req.RequestType)
	assert.True(t, req.FormatOptions.FormatTableResultForUI)
	assert.True(t, req.FormatOptions.FillGaps)
	assert.Empty(t, req.Variables)

	require.Len(t, req.CompositeQuery.Queries, 2)
	spec := req.CompositeQuery.Queries[0].Spec.(BuilderQuerySpec)
	assert.Nil(t, spec.Offset, "offset is only sent for raw and trace requests")
	assert.Nil(t, spec.Limit)
	assert.Equal(t, queryir.Aggregations{queryir.MetricAggregation{
		MetricName:       "system_cpu_usage",
		TimeAggregation:  "rate",
		SpaceAggregation: "sum",
		ReduceTo:         queryir.ReduceToAvg,
	}}, spec.Aggregations)

	formula := req.CompositeQuery.Queries[1].Spec.(FormulaSpec)
	assert.Nil(t, formula.Limit, "a zero limit means unset")

	assert.Equal(t, map[string]string{"A": "{{host.name}}", "F1": "pct"}, legends)
}

func TestPrepareQueryRangeTableResultFormatting(t *testing.T) {
	q := queryir.NewQuery(queryir.DataSourceLogs)

	tests := []struct {
		name   string
		params PrepareParams
		want   bool
	}{
		{"graph", PrepareParams{PanelType: queryir.PanelTimeSeries}, false},
		{"table", PrepareParams{PanelType: queryir.PanelTable}, true},
		{"table shown as graph", PrepareParams{PanelType: queryir.PanelTimeSeries, OriginalPanelType: queryir.PanelTable}, true},
		{"graph shown as table", PrepareParams{PanelType: queryir.PanelTable, OriginalPanelType: queryir.PanelTimeSeries}, false},
		{"web", PrepareParams{PanelType: queryir.PanelValue, FormatForWeb: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.Query = q
			req, _ := PrepareQueryRange(tt.params)
			assert.Equal(t, tt.want, req.FormatOptions.FormatTableResultForUI)
		})
	}
}

func TestPrepareQueryRangePromQL(t *testing.T) {
	q := queryir.Query{
		QueryType: queryir.QueryTypePromQL,
		PromQL: []queryir.PromQuery{
			{Name: "A", Query: "sum(rate(http_requests_total[5m])) by (service)", Legend: "{{service}}"},
			{Name: "B", Query: ""},
		},
	}

	req, legends := PrepareQueryRange(PrepareParams{Query: q, PanelType: queryir.PanelTimeSeries, Start: testStart, End: testEnd})

	got, err := json.Marshal(req.CompositeQuery)
	require.NoError(t, err)
	assert.JSONEq(t, `{"queries": [
		{"type": "promql", "spec": {
			"name": "A",
			"query": "sum(rate(http_requests_total[5m])) by (service)",
			"disabled": false,
			"legend": "{{service}}",
			"stats": false
		}}
	]}`, string(got))
	assert.Equal(t, map[string]string{"A": "{{service}}"}, legends)
}
