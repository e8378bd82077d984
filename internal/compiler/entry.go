package compiler

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/querybuilder/internal/aggregation"
	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/filter"
	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

// Entry kinds.
const (
	kindQuery         = "query"
	kindFormula       = "formula"
	kindTraceOperator = "trace_operator"
)

// entrySpec mirrors #Entry. having and functions carry mixed-type values
// and are read separately.
type entrySpec struct {
	Kind             string   `json:"kind"`
	DataSource       string   `json:"dataSource"`
	Expression       string   `json:"expression"`
	Aggregations     []string `json:"aggregations"`
	Metric           string   `json:"metric"`
	Temporality      string   `json:"temporality"`
	TimeAggregation  string   `json:"timeAggregation"`
	SpaceAggregation string   `json:"spaceAggregation"`
	ReduceTo         string   `json:"reduceTo"`
	Filter           string   `json:"filter"`
	GroupBy          []string `json:"groupBy"`
	OrderBy          []struct {
		Column string `json:"column"`
		Order  string `json:"order"`
	} `json:"orderBy"`
	Limit           *int   `json:"limit"`
	StepInterval    *int   `json:"stepInterval"`
	Legend          string `json:"legend"`
	Disabled        bool   `json:"disabled"`
	ReturnSpansFrom string `json:"returnSpansFrom"`
}

type entryCompiler struct {
	keys []queryir.AttributeKey
}

// compileBuilder compiles the query section into b. Entries are emitted in
// name order within each kind.
func (c *entryCompiler) compileBuilder(section cue.Value, b *queryir.Builder) error {
	if !section.Exists() {
		return nil
	}
	iter, err := section.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	values := make(map[string]cue.Value)
	var names []string
	for iter.Next() {
		names = append(names, iter.Label())
		values[iter.Label()] = iter.Value()
	}

	for _, name := range envelope.SortNames(names) {
		v := values[name]
		var e entrySpec
		if err := v.Decode(&e); err != nil {
			return formatCUEError(err)
		}

		kind, err := inferKind(e)
		if err != nil {
			return &CompileError{Field: "query." + name, Message: err.Error(), Pos: v.Pos()}
		}
		switch kind {
		case kindQuery:
			bq, err := c.compileQuery(name, v, e)
			if err != nil {
				return err
			}
			b.QueryData = append(b.QueryData, bq)
		case kindFormula:
			f, err := compileFormula(name, v, e)
			if err != nil {
				return err
			}
			b.QueryFormulas = append(b.QueryFormulas, f)
		case kindTraceOperator:
			t, err := c.compileTraceOperator(name, v, e)
			if err != nil {
				return err
			}
			b.QueryTraceOperator = append(b.QueryTraceOperator, t)
		}
	}
	return nil
}

// inferKind uses an explicit kind when given. Otherwise an entry with a data
// source is a query and an entry with an expression is a formula. Trace
// operators always declare their kind; the entry name is never consulted.
func inferKind(e entrySpec) (string, error) {
	switch {
	case e.Kind != "":
		return e.Kind, nil
	case e.DataSource != "":
		return kindQuery, nil
	case e.Expression != "":
		return kindFormula, nil
	}
	return "", errors.New("set dataSource for a query or expression for a formula")
}

func (c *entryCompiler) compileQuery(name string, v cue.Value, e entrySpec) (queryir.BuilderQuery, error) {
	if e.DataSource == "" {
		return queryir.BuilderQuery{}, fieldError(name, "dataSource", v, "dataSource is required for queries")
	}
	ds := queryir.DataSource(e.DataSource)
	bq := queryir.DefaultBuilderQuery(ds)
	bq.QueryName, bq.Expression = name, name

	if ds == queryir.DataSourceMetrics {
		if err := applyMetric(name, v, e, &bq); err != nil {
			return queryir.BuilderQuery{}, err
		}
	} else if err := applyExpressions(name, v, e, &bq); err != nil {
		return queryir.BuilderQuery{}, err
	}

	if e.Filter != "" {
		f, err := filter.FromExpression(e.Filter, c.resolver())
		if err != nil {
			return queryir.BuilderQuery{}, fieldError(name, "filter", v, err.Error())
		}
		bq.Filters = f
	}

	fns, err := compileFunctions(name, v)
	if err != nil {
		return queryir.BuilderQuery{}, err
	}
	bq.Functions = fns

	if err := c.applyCommon(name, v, e, &bq); err != nil {
		return queryir.BuilderQuery{}, err
	}
	return bq, nil
}

func (c *entryCompiler) compileTraceOperator(name string, v cue.Value, e entrySpec) (queryir.TraceOperator, error) {
	if strings.TrimSpace(e.Expression) == "" {
		return queryir.TraceOperator{}, fieldError(name, "expression", v, "expression is required for trace operators")
	}
	if e.DataSource != "" && e.DataSource != string(queryir.DataSourceTraces) {
		return queryir.TraceOperator{}, fieldError(name, "dataSource", v, "trace operators read traces")
	}
	t := queryir.DefaultTraceOperator()
	t.QueryName = name
	t.Expression = e.Expression
	t.ReturnSpansFrom = e.ReturnSpansFrom

	if err := applyExpressions(name, v, e, &t.BuilderQuery); err != nil {
		return queryir.TraceOperator{}, err
	}
	if err := c.applyCommon(name, v, e, &t.BuilderQuery); err != nil {
		return queryir.TraceOperator{}, err
	}
	return t, nil
}

func compileFormula(name string, v cue.Value, e entrySpec) (queryir.BuilderFormula, error) {
	if strings.TrimSpace(e.Expression) == "" {
		return queryir.BuilderFormula{}, fieldError(name, "expression", v, "expression is required for formulas")
	}
	f := queryir.DefaultFormula()
	f.QueryName = name
	f.Expression = e.Expression
	f.Legend = e.Legend
	f.Disabled = e.Disabled
	f.Limit = e.Limit
	f.OrderBy = orderBy(e)

	having, err := compileHaving(name, v)
	if err != nil {
		return queryir.BuilderFormula{}, err
	}
	f.Having = having
	return f, nil
}

func applyMetric(name string, v cue.Value, e entrySpec, bq *queryir.BuilderQuery) error {
	if len(e.Aggregations) > 0 {
		return fieldError(name, "aggregations", v, "metrics queries use metric, timeAggregation and spaceAggregation")
	}
	if e.Metric == "" {
		return fieldError(name, "metric", v, "metric is required for metrics queries")
	}
	bq.AggregateAttribute = queryir.AttributeKey{
		Key:         e.Metric,
		DataType:    queryir.DataTypeFloat64,
		Type:        queryir.FieldContextMetric,
		Temporality: e.Temporality,
	}
	if e.TimeAggregation != "" {
		bq.TimeAggregation = e.TimeAggregation
	}
	if e.SpaceAggregation != "" {
		bq.SpaceAggregation = e.SpaceAggregation
	}
	if e.ReduceTo != "" {
		bq.ReduceTo = queryir.ReduceTo(e.ReduceTo)
	}
	bq.Aggregations = queryir.Aggregations{queryir.MetricAggregation{
		MetricName:       e.Metric,
		Temporality:      e.Temporality,
		TimeAggregation:  bq.TimeAggregation,
		SpaceAggregation: bq.SpaceAggregation,
	}}
	return nil
}

func applyExpressions(name string, v cue.Value, e entrySpec, bq *queryir.BuilderQuery) error {
	if e.Metric != "" || e.TimeAggregation != "" || e.SpaceAggregation != "" {
		return fieldError(name, "metric", v, "metric fields apply only to metrics queries")
	}
	if len(e.Aggregations) == 0 {
		return nil
	}
	aggs := make(queryir.Aggregations, 0, len(e.Aggregations))
	for _, text := range e.Aggregations {
		parsed := aggregation.ParseAggregations(text, "")
		if len(parsed) == 0 {
			return fieldError(name, "aggregations", v, fmt.Sprintf("no aggregation function in %q", text))
		}
		for _, p := range parsed {
			aggs = append(aggs, p)
		}
	}
	bq.Aggregations = aggs
	return nil
}

// applyCommon sets the fields every query and trace operator shares.
func (c *entryCompiler) applyCommon(name string, v cue.Value, e entrySpec, bq *queryir.BuilderQuery) error {
	for _, g := range e.GroupBy {
		bq.GroupBy = append(bq.GroupBy, c.key(g))
	}
	bq.OrderBy = orderBy(e)
	bq.Limit = e.Limit
	bq.StepInterval = e.StepInterval
	bq.Legend = e.Legend
	bq.Disabled = e.Disabled

	having, err := compileHaving(name, v)
	if err != nil {
		return err
	}
	bq.Having = having
	return nil
}

func orderBy(e entrySpec) []queryir.OrderBy {
	out := make([]queryir.OrderBy, 0, len(e.OrderBy))
	for _, o := range e.OrderBy {
		out = append(out, queryir.OrderBy{ColumnName: o.Column, Order: queryir.Order(o.Order)})
	}
	return out
}

func compileHaving(name string, v cue.Value) ([]queryir.Having, error) {
	out := []queryir.Having{}
	hv := v.LookupPath(cue.ParsePath("having"))
	if !hv.Exists() {
		return out, nil
	}
	iter, err := hv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		item := iter.Value()
		column, _ := item.LookupPath(cue.ParsePath("column")).String()
		op, _ := item.LookupPath(cue.ParsePath("op")).String()
		value, err := scalarOrList(item.LookupPath(cue.ParsePath("value")))
		if err != nil {
			return nil, fieldError(name, "having", item, err.Error())
		}
		out = append(out, queryir.Having{ColumnName: column, Op: op, Value: value})
	}
	return out, nil
}

func compileFunctions(name string, v cue.Value) ([]queryir.QueryFunction, error) {
	out := []queryir.QueryFunction{}
	fv := v.LookupPath(cue.ParsePath("functions"))
	if !fv.Exists() {
		return out, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		item := iter.Value()
		raw, _ := item.LookupPath(cue.ParsePath("name")).String()
		fnName := envelope.NormalizeFunctionName(raw)
		if !envelope.IsKnownFunction(fnName) {
			return nil, fieldError(name, "functions", item, fmt.Sprintf("unknown function %q", raw))
		}
		fn := queryir.QueryFunction{Name: fnName, Args: []any{}, NamedArgs: map[string]any{}}
		if args := item.LookupPath(cue.ParsePath("args")); args.Exists() {
			list, err := scalarOrList(args)
			if err != nil {
				return nil, fieldError(name, "functions", item, err.Error())
			}
			for _, a := range list.(ir.List) {
				fn.Args = append(fn.Args, argValue(a))
			}
		}
		out = append(out, fn)
	}
	return out, nil
}

// scalarOrList reads a number, a string or a list of them.
func scalarOrList(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		return ir.String(s), err
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		return ir.Number(f), err
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		out := ir.List{}
		for iter.Next() {
			elem, err := scalarOrList(iter.Value())
			if err != nil {
				return nil, err
			}
			if _, nested := elem.(ir.List); nested {
				return nil, errors.New("nested lists are not allowed")
			}
			out = append(out, elem)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value of kind %v", v.Kind())
}

func argValue(v ir.Value) any {
	switch val := v.(type) {
	case ir.Number:
		return float64(val)
	case ir.String:
		return string(val)
	}
	return nil
}

func (c *entryCompiler) resolver() filter.KeyResolver {
	return filter.KeysResolver(c.keys)
}

// key resolves a group-by name against the declared keys. Undeclared names
// become string attributes.
func (c *entryCompiler) key(name string) queryir.AttributeKey {
	if k, ok := c.resolver()(name); ok {
		return k.WithComposedID()
	}
	return queryir.AttributeKey{Key: name, DataType: queryir.DataTypeString}.WithComposedID()
}

func fieldError(name, field string, v cue.Value, msg string) *CompileError {
	pos := v.Pos()
	if fv := v.LookupPath(cue.ParsePath(field)); fv.Exists() {
		pos = fv.Pos()
	}
	return &CompileError{Field: "query." + name + "." + field, Message: msg, Pos: pos}
}
