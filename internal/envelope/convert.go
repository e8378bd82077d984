package envelope

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/querybuilder/internal/aggregation"
	"github.com/roach88/querybuilder/internal/filter"
	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

// SignalFor maps a data source to its v5 signal.
func SignalFor(ds queryir.DataSource) Signal {
	switch ds {
	case queryir.DataSourceTraces:
		return SignalTraces
	case queryir.DataSourceLogs:
		return SignalLogs
	}
	return SignalMetrics
}

// DataSourceFor maps a v5 signal to a data source. Anything other than
// traces or logs is metrics.
func DataSourceFor(s Signal) queryir.DataSource {
	switch s {
	case SignalTraces:
		return queryir.DataSourceTraces
	case SignalLogs:
		return queryir.DataSourceLogs
	}
	return queryir.DataSourceMetrics
}

// Legacy -> v5

// BuilderQueryToSpec converts a legacy builder query to its v5 spec.
// Aggregations are omitted for raw requests.
func BuilderQueryToSpec(q queryir.BuilderQuery, rt RequestType, panel queryir.PanelType) BuilderQuerySpec {
	spec := BuilderQuerySpec{
		Name:     q.QueryName,
		Signal:   SignalFor(q.DataSource),
		BaseSpec: baseSpec(q, rt, panel),
	}
	spec.Functions = functionsToSpec(q.Functions)
	spec.Filter = filterToSpec(q)
	if spec.Signal == SignalMetrics {
		spec.Source = q.Source
	}
	if rt != RequestTypeRaw {
		spec.Aggregations = aggregation.CreateAggregation(&q, panel)
	}
	return spec
}

// FormulaToSpec converts a legacy formula to its v5 spec.
func FormulaToSpec(f queryir.BuilderFormula) FormulaSpec {
	spec := FormulaSpec{
		Name:       f.QueryName,
		Expression: f.Expression,
		Disabled:   f.Disabled,
		Legend:     f.Legend,
		Order:      orderToSpec(f.OrderBy),
		Having:     havingToSpec(f.Having),
	}
	if f.Limit != nil && *f.Limit != 0 {
		spec.Limit = queryir.IntPtr(*f.Limit)
	}
	return spec
}

// TraceOperatorToSpec converts a legacy trace operator to its v5 spec.
// Trace operators carry no filter or functions of their own.
func TraceOperatorToSpec(t queryir.TraceOperator, rt RequestType, panel queryir.PanelType) TraceOperatorSpec {
	spec := TraceOperatorSpec{
		Name:            t.QueryName,
		BaseSpec:        baseSpec(t.BuilderQuery, rt, panel),
		Expression:      t.Expression,
		ReturnSpansFrom: t.ReturnSpansFrom,
	}
	if rt != RequestTypeRaw {
		bq := t.BuilderQuery
		spec.Aggregations = aggregation.CreateAggregation(&bq, panel)
	}
	return spec
}

func baseSpec(q queryir.BuilderQuery, rt RequestType, panel queryir.PanelType) BaseSpec {
	b := BaseSpec{
		Disabled:     q.Disabled,
		GroupBy:      fieldKeysToSpec(q.GroupBy),
		Limit:        limitFor(q.Limit, q.PageSize, panel),
		Order:        orderToSpec(q.OrderBy),
		Legend:       q.Legend,
		Having:       havingToSpec(q.Having),
		SelectFields: selectFieldsToSpec(q.SelectColumns),
	}
	if q.StepInterval != nil && *q.StepInterval != 0 {
		b.StepInterval = queryir.IntPtr(*q.StepInterval)
	}
	if rt == RequestTypeRaw || rt == RequestTypeTrace {
		b.Offset = queryir.IntPtr(q.Offset)
	}
	return b
}

// limitFor falls back to the page size for table and list panels.
func limitFor(limit *int, pageSize int, panel queryir.PanelType) *int {
	if limit != nil && *limit != 0 {
		return queryir.IntPtr(*limit)
	}
	if (panel == queryir.PanelTable || panel == queryir.PanelList) && pageSize != 0 {
		return queryir.IntPtr(pageSize)
	}
	return nil
}

// filterToSpec prefers an explicit expression and otherwise renders the
// tag filter. The result is never nil.
func filterToSpec(q queryir.BuilderQuery) *Filter {
	if q.Filter != nil && q.Filter.Expression != "" {
		return &Filter{Expression: q.Filter.Expression}
	}
	if q.Filters.Len() > 0 {
		return &Filter{Expression: filter.FormatExpression(q.Filters)}
	}
	return &Filter{Expression: ""}
}

func fieldKeysToSpec(keys []queryir.AttributeKey) []FieldKey {
	if len(keys) == 0 {
		return nil
	}
	out := make([]FieldKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, FieldKey{
			Name:          k.Key,
			FieldDataType: string(k.DataType),
			FieldContext:  string(k.Type),
		})
	}
	return out
}

// deprecatedFields are intrinsic or derived trace columns that must not be
// sent with a field context.
var deprecatedFields = map[string]bool{
	"traceID": true, "spanID": true, "parentSpanID": true, "spanKind": true,
	"durationNano": true, "statusCode": true, "statusMessage": true, "statusCodeString": true,
	"responseStatusCode": true, "externalHttpUrl": true, "httpUrl": true,
	"externalHttpMethod": true, "httpMethod": true, "httpHost": true,
	"dbName": true, "dbOperation": true, "hasError": true, "isRemote": true,
	"serviceName": true, "httpRoute": true, "msgSystem": true, "msgOperation": true,
	"dbSystem": true, "rpcSystem": true, "rpcService": true, "rpcMethod": true,
	"peerService": true,
}

func selectFieldsToSpec(cols []queryir.AttributeKey) []FieldKey {
	var out []FieldKey
	for _, c := range cols {
		if c.Key == "" {
			continue
		}
		fk := FieldKey{Name: c.Key, FieldDataType: string(c.DataType)}
		if !deprecatedFields[c.Key] && c.Key != "name" {
			fk.FieldContext = string(c.Type)
		}
		out = append(out, fk)
	}
	return out
}

func orderToSpec(orders []queryir.OrderBy) []OrderBy {
	if len(orders) == 0 {
		return nil
	}
	out := make([]OrderBy, 0, len(orders))
	for _, o := range orders {
		k := o.Key()
		out = append(out, OrderBy{
			Key:       OrderKey{Name: k.Key, FieldDataType: string(k.DataType), FieldContext: string(k.Type)},
			Direction: o.Order,
		})
	}
	return out
}

func havingToSpec(items []queryir.Having) *Having {
	if len(items) == 0 {
		return nil
	}
	parts := make([]string, 0, len(items))
	for _, h := range items {
		parts = append(parts, h.Expression())
	}
	return &Having{Expression: strings.Join(parts, " AND ")}
}

func functionsToSpec(fns []queryir.QueryFunction) []Function {
	if len(fns) == 0 {
		return nil
	}
	out := make([]Function, 0, len(fns))
	for _, fn := range fns {
		f := Function{Name: NormalizeFunctionName(fn.Name)}
		if len(fn.NamedArgs) == 0 {
			for _, a := range fn.Args {
				f.Args = append(f.Args, FunctionArg{Value: a})
			}
		} else {
			names := make([]string, 0, len(fn.NamedArgs))
			for name := range fn.NamedArgs {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				f.Args = append(f.Args, FunctionArg{Name: name, Value: fn.NamedArgs[name]})
			}
		}
		out = append(out, f)
	}
	return out
}

// v5 -> legacy

// ConvertBuilderQueryToIBuilderQuery converts a v5 builder query spec to the
// legacy shape, starting from the default template for its signal.
// Group-by keys get their composed "name--dataType--fieldContext" id.
func ConvertBuilderQueryToIBuilderQuery(spec BuilderQuerySpec) queryir.BuilderQuery {
	ds := DataSourceFor(spec.Signal)
	q := queryir.DefaultBuilderQuery(ds)
	if spec.Name != "" {
		q.QueryName = spec.Name
		q.Expression = spec.Name
	}
	q.Source = spec.Source
	applyBaseSpec(&q, spec.BaseSpec)
	q.Functions = functionsFromSpec(spec.Functions)

	if len(spec.Aggregations) > 0 {
		q.Aggregations = slices.Clone(spec.Aggregations)
		applyLegacyAggregation(&q, spec.Aggregations[0])
	}
	return q
}

// ConvertQueryBuilderFormulaToIBuilderFormula converts a v5 formula spec to
// the legacy shape.
func ConvertQueryBuilderFormulaToIBuilderFormula(spec FormulaSpec) queryir.BuilderFormula {
	f := queryir.DefaultFormula()
	if spec.Name != "" {
		f.QueryName = spec.Name
	}
	f.Expression = spec.Expression
	f.Disabled = spec.Disabled
	f.Legend = spec.Legend
	if spec.Limit != nil {
		f.Limit = queryir.IntPtr(*spec.Limit)
	}
	f.OrderBy = orderFromSpec(spec.Order)
	f.Having = havingFromSpec(spec.Having)
	return f
}

// ConvertTraceOperatorToITraceOperator converts a v5 trace operator spec to
// the legacy shape.
func ConvertTraceOperatorToITraceOperator(spec TraceOperatorSpec) queryir.TraceOperator {
	t := queryir.DefaultTraceOperator()
	if spec.Name != "" {
		t.QueryName = spec.Name
	}
	applyBaseSpec(&t.BuilderQuery, spec.BaseSpec)
	t.Expression = spec.Expression
	t.ReturnSpansFrom = spec.ReturnSpansFrom
	if len(spec.Aggregations) > 0 {
		t.Aggregations = slices.Clone(spec.Aggregations)
		applyLegacyAggregation(&t.BuilderQuery, spec.Aggregations[0])
	}
	return t
}

func applyBaseSpec(q *queryir.BuilderQuery, b BaseSpec) {
	if b.StepInterval != nil {
		q.StepInterval = queryir.IntPtr(*b.StepInterval)
	}
	q.Disabled = b.Disabled
	if b.Filter != nil && b.Filter.Expression != "" {
		q.Filter = &queryir.FilterExpression{Expression: b.Filter.Expression}
	}
	q.GroupBy = fieldKeysFromSpec(b.GroupBy)
	if b.Limit != nil {
		q.Limit = queryir.IntPtr(*b.Limit)
	}
	if b.Offset != nil {
		q.Offset = *b.Offset
	}
	q.OrderBy = orderFromSpec(b.Order)
	q.Legend = b.Legend
	q.Having = havingFromSpec(b.Having)
	if len(b.SelectFields) > 0 {
		q.SelectColumns = make([]queryir.AttributeKey, 0, len(b.SelectFields))
		for _, f := range b.SelectFields {
			q.SelectColumns = append(q.SelectColumns, attributeKey(f))
		}
	}
}

// applyLegacyAggregation mirrors the first aggregation into the legacy
// operator fields.
func applyLegacyAggregation(q *queryir.BuilderQuery, first queryir.Aggregation) {
	switch a := first.(type) {
	case queryir.MetricAggregation:
		q.AggregateAttribute = queryir.AttributeKey{
			Key:         a.MetricName,
			Type:        queryir.FieldContextMetric,
			Temporality: a.Temporality,
		}
		if a.TimeAggregation != "" {
			q.TimeAggregation = a.TimeAggregation
		}
		if a.SpaceAggregation != "" {
			q.SpaceAggregation = a.SpaceAggregation
			q.AggregateOperator = a.SpaceAggregation
		}
		if a.ReduceTo != "" {
			q.ReduceTo = a.ReduceTo
		}
	case queryir.ExpressionAggregation:
		op, rest, ok := strings.Cut(a.Expression, "(")
		if !ok {
			return
		}
		q.AggregateOperator = op
		q.AggregateAttribute = queryir.AttributeKey{Key: strings.TrimSpace(strings.TrimSuffix(rest, ")"))}
	}
}

func attributeKey(f FieldKey) queryir.AttributeKey {
	return queryir.AttributeKey{
		Key:      f.Name,
		DataType: queryir.DataType(f.FieldDataType),
		Type:     queryir.FieldContext(f.FieldContext),
	}
}

func fieldKeysFromSpec(keys []FieldKey) []queryir.AttributeKey {
	out := make([]queryir.AttributeKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, attributeKey(k).WithComposedID())
	}
	return out
}

func orderFromSpec(orders []OrderBy) []queryir.OrderBy {
	out := make([]queryir.OrderBy, 0, len(orders))
	for _, o := range orders {
		out = append(out, queryir.OrderBy{ColumnName: orderColumn(o.Key), Order: o.Direction})
	}
	return out
}

// orderColumn composes a typed order key the way group-by ids are composed.
// An untyped key keeps its bare name.
func orderColumn(k OrderKey) string {
	if k.FieldDataType == "" && k.FieldContext == "" {
		return k.Name
	}
	return queryir.ComposedKeyID(k.Name, queryir.DataType(k.FieldDataType), queryir.FieldContext(k.FieldContext))
}

func functionsFromSpec(fns []Function) []queryir.QueryFunction {
	out := make([]queryir.QueryFunction, 0, len(fns))
	for _, f := range fns {
		qf := queryir.QueryFunction{Name: f.Name}
		for _, a := range f.Args {
			if a.Name == "" {
				qf.Args = append(qf.Args, a.Value)
				continue
			}
			if qf.NamedArgs == nil {
				qf.NamedArgs = make(map[string]any)
			}
			qf.NamedArgs[a.Name] = a.Value
		}
		out = append(out, qf)
	}
	return out
}

// havingClause matches "column op value" as rendered by Having.Expression.
var havingClause = regexp.MustCompile(`(?i)^\s*(.+?)\s+(>=|<=|!=|=|>|<|not in|in)\s+(.+?)\s*$`)

var andSeparator = regexp.MustCompile(`(?i)\s+and\s+`)

// havingFromSpec parses a having expression back into clauses. Clauses
// that are not "column op value" are dropped.
func havingFromSpec(h *Having) []queryir.Having {
	out := []queryir.Having{}
	if h == nil || strings.TrimSpace(h.Expression) == "" {
		return out
	}
	for _, clause := range andSeparator.Split(h.Expression, -1) {
		m := havingClause.FindStringSubmatch(clause)
		if m == nil {
			continue
		}
		out = append(out, queryir.Having{
			ColumnName: m[1],
			Op:         strings.ToUpper(m[2]),
			Value:      havingValue(m[3]),
		})
	}
	return out
}

func havingValue(s string) ir.Value {
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if inner == "" {
			return ir.List{}
		}
		parts := strings.Split(inner, ",")
		out := make(ir.List, 0, len(parts))
		for _, p := range parts {
			out = append(out, havingValue(strings.TrimSpace(p)))
		}
		return out
	}
	if f, ok := queryir.ParseNumber(s); ok {
		return ir.Number(f)
	}
	return ir.String(strings.Trim(s, `'"`))
}

// Whole queries

// FromQuery converts the active section of a legacy Query into a composite
// query. Builder entries come out as queries, then formulas, then trace
// operators; trace operators with a blank expression are dropped.
// PromQL and ClickHouse entries with empty query text are dropped.
func FromQuery(q queryir.Query, panel queryir.PanelType) CompositeQuery {
	rt := MapPanelTypeToRequestType(panel)
	queries := []QueryEnvelope{}

	switch q.QueryType {
	case queryir.QueryTypeBuilder:
		for _, bq := range q.Builder.QueryData {
			queries = append(queries, QueryEnvelope{Type: KindBuilderQuery, Spec: BuilderQueryToSpec(bq, rt, panel)})
		}
		for _, f := range q.Builder.QueryFormulas {
			queries = append(queries, QueryEnvelope{Type: KindFormula, Spec: FormulaToSpec(f)})
		}
		for _, t := range q.Builder.QueryTraceOperator {
			if strings.TrimSpace(t.Expression) == "" {
				continue
			}
			queries = append(queries, QueryEnvelope{Type: KindTraceOperator, Spec: TraceOperatorToSpec(t, rt, panel)})
		}
	case queryir.QueryTypePromQL:
		for _, p := range dedupePromQL(q.PromQL) {
			queries = append(queries, QueryEnvelope{Type: KindPromQL, Spec: promQLToSpec(p)})
		}
	case queryir.QueryTypeClickHouse:
		for _, c := range dedupeClickHouse(q.ClickHouseSQL) {
			queries = append(queries, QueryEnvelope{Type: KindClickHouseSQL, Spec: clickHouseToSpec(c)})
		}
	}
	return CompositeQuery{Queries: queries}
}

func promQLToSpec(p queryir.PromQuery) PromQLSpec {
	spec := PromQLSpec{Name: p.Name, Query: p.Query, Disabled: p.Disabled, Legend: p.Legend}
	if p.StepInterval != nil {
		spec.Step = queryir.IntPtr(*p.StepInterval)
	}
	return spec
}

func clickHouseToSpec(c queryir.ClickHouseQuery) ClickHouseSpec {
	return ClickHouseSpec{Name: c.Name, Query: c.Query, Disabled: c.Disabled, Legend: c.Legend}
}

// dedupePromQL keeps non-empty queries, later entries replacing earlier
// ones of the same name in place.
func dedupePromQL(in []queryir.PromQuery) []queryir.PromQuery {
	out := []queryir.PromQuery{}
	index := make(map[string]int)
	for _, p := range in {
		if p.Query == "" {
			continue
		}
		if i, ok := index[p.Name]; ok {
			out[i] = p
			continue
		}
		index[p.Name] = len(out)
		out = append(out, p)
	}
	return out
}

func dedupeClickHouse(in []queryir.ClickHouseQuery) []queryir.ClickHouseQuery {
	out := []queryir.ClickHouseQuery{}
	index := make(map[string]int)
	for _, c := range in {
		if c.Query == "" {
			continue
		}
		if i, ok := index[c.Name]; ok {
			out[i] = c
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

// ToQuery converts a composite query back to a legacy Query. The query type
// is builder when any builder entry is present, otherwise promql, otherwise
// clickhouse_sql.
func ToQuery(cq CompositeQuery) queryir.Query {
	q := queryir.Query{
		QueryType: queryir.QueryTypeBuilder,
		Builder: queryir.Builder{
			QueryData:          []queryir.BuilderQuery{},
			QueryFormulas:      []queryir.BuilderFormula{},
			QueryTraceOperator: []queryir.TraceOperator{},
		},
		PromQL:        []queryir.PromQuery{},
		ClickHouseSQL: []queryir.ClickHouseQuery{},
	}

	for _, env := range cq.Queries {
		switch s := env.Spec.(type) {
		case BuilderQuerySpec:
			q.Builder.QueryData = append(q.Builder.QueryData, ConvertBuilderQueryToIBuilderQuery(s))
		case FormulaSpec:
			q.Builder.QueryFormulas = append(q.Builder.QueryFormulas, ConvertQueryBuilderFormulaToIBuilderFormula(s))
		case TraceOperatorSpec:
			q.Builder.QueryTraceOperator = append(q.Builder.QueryTraceOperator, ConvertTraceOperatorToITraceOperator(s))
		case PromQLSpec:
			p := queryir.PromQuery{Name: s.Name, Query: s.Query, Legend: s.Legend, Disabled: s.Disabled}
			if s.Step != nil {
				p.StepInterval = queryir.IntPtr(*s.Step)
			}
			q.PromQL = append(q.PromQL, p)
		case ClickHouseSpec:
			q.ClickHouseSQL = append(q.ClickHouseSQL, queryir.ClickHouseQuery{
				Name: s.Name, Query: s.Query, Legend: s.Legend, Disabled: s.Disabled,
			})
		}
	}

	hasBuilder := len(q.Builder.QueryData)+len(q.Builder.QueryFormulas)+len(q.Builder.QueryTraceOperator) > 0
	switch {
	case hasBuilder:
	case len(q.PromQL) > 0:
		q.QueryType = queryir.QueryTypePromQL
	case len(q.ClickHouseSQL) > 0:
		q.QueryType = queryir.QueryTypeClickHouse
	}
	return q
}
