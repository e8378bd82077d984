package queryir

import "slices"

// Clone returns a deep copy of q. Edits on the copy never reach q.
func (q Query) Clone() Query {
	out := q
	out.Builder = Builder{
		QueryData:          make([]BuilderQuery, len(q.Builder.QueryData)),
		QueryFormulas:      make([]BuilderFormula, len(q.Builder.QueryFormulas)),
		QueryTraceOperator: make([]TraceOperator, len(q.Builder.QueryTraceOperator)),
	}
	for i, bq := range q.Builder.QueryData {
		out.Builder.QueryData[i] = bq.Clone()
	}
	for i, f := range q.Builder.QueryFormulas {
		out.Builder.QueryFormulas[i] = f.Clone()
	}
	for i, t := range q.Builder.QueryTraceOperator {
		out.Builder.QueryTraceOperator[i] = t.Clone()
	}
	out.PromQL = slices.Clone(q.PromQL)
	if out.PromQL == nil {
		out.PromQL = []PromQuery{}
	}
	for i, p := range out.PromQL {
		out.PromQL[i].StepInterval = cloneInt(p.StepInterval)
	}
	out.ClickHouseSQL = slices.Clone(q.ClickHouseSQL)
	if out.ClickHouseSQL == nil {
		out.ClickHouseSQL = []ClickHouseQuery{}
	}
	return out
}

// Clone returns a deep copy of b.
func (b BuilderQuery) Clone() BuilderQuery {
	out := b
	out.Aggregations = slices.Clone(b.Aggregations)
	out.Functions = make([]QueryFunction, len(b.Functions))
	for i, fn := range b.Functions {
		out.Functions[i] = QueryFunction{
			Name:      fn.Name,
			Args:      slices.Clone(fn.Args),
			NamedArgs: cloneMap(fn.NamedArgs),
		}
	}
	out.Filters = b.Filters.Clone()
	if b.Filter != nil {
		f := *b.Filter
		out.Filter = &f
	}
	out.Having = cloneHaving(b.Having)
	out.Limit = cloneInt(b.Limit)
	out.StepInterval = cloneInt(b.StepInterval)
	out.OrderBy = cloneOrderBy(b.OrderBy)
	out.GroupBy = cloneKeys(b.GroupBy)
	if b.SelectColumns != nil {
		out.SelectColumns = slices.Clone(b.SelectColumns)
	}
	return out
}

// Clone returns a deep copy of f.
func (f BuilderFormula) Clone() BuilderFormula {
	out := f
	out.Limit = cloneInt(f.Limit)
	out.OrderBy = cloneOrderBy(f.OrderBy)
	if f.Having != nil {
		out.Having = cloneHaving(f.Having)
	}
	return out
}

// Clone returns a deep copy of t.
func (t TraceOperator) Clone() TraceOperator {
	return TraceOperator{BuilderQuery: t.BuilderQuery.Clone(), ReturnSpansFrom: t.ReturnSpansFrom}
}

// FindBuilderQuery returns the plain query named name.
func (q Query) FindBuilderQuery(name string) (BuilderQuery, bool) {
	for _, bq := range q.Builder.QueryData {
		if bq.QueryName == name {
			return bq, true
		}
	}
	return BuilderQuery{}, false
}

// WithQueryType returns a copy of q with the active section switched.
func (q Query) WithQueryType(t QueryType) Query {
	out := q.Clone()
	out.QueryType = t
	return out
}

// WithBuilderQuery returns a copy of q where the query named name has been
// replaced by update(old). Unknown names return an unchanged copy.
func (q Query) WithBuilderQuery(name string, update func(BuilderQuery) BuilderQuery) Query {
	out := q.Clone()
	for i, bq := range out.Builder.QueryData {
		if bq.QueryName == name {
			out.Builder.QueryData[i] = update(bq)
			break
		}
	}
	return out
}

// WithFormula returns a copy of q where the formula named name has been
// replaced by update(old).
func (q Query) WithFormula(name string, update func(BuilderFormula) BuilderFormula) Query {
	out := q.Clone()
	for i, f := range out.Builder.QueryFormulas {
		if f.QueryName == name {
			out.Builder.QueryFormulas[i] = update(f)
			break
		}
	}
	return out
}

// AddBuilderQuery returns a copy of q with bq appended.
func (q Query) AddBuilderQuery(bq BuilderQuery) Query {
	out := q.Clone()
	out.Builder.QueryData = append(out.Builder.QueryData, bq.Clone())
	return out
}

// AddFormula returns a copy of q with f appended.
func (q Query) AddFormula(f BuilderFormula) Query {
	out := q.Clone()
	out.Builder.QueryFormulas = append(out.Builder.QueryFormulas, f.Clone())
	return out
}

// AddTraceOperator returns a copy of q with t appended.
func (q Query) AddTraceOperator(t TraceOperator) Query {
	out := q.Clone()
	out.Builder.QueryTraceOperator = append(out.Builder.QueryTraceOperator, t.Clone())
	return out
}

// RemoveQuery returns a copy of q without the builder sub-query named name,
// whichever kind it is.
func (q Query) RemoveQuery(name string) Query {
	out := q.Clone()
	out.Builder.QueryData = slices.DeleteFunc(out.Builder.QueryData, func(bq BuilderQuery) bool {
		return bq.QueryName == name
	})
	out.Builder.QueryFormulas = slices.DeleteFunc(out.Builder.QueryFormulas, func(f BuilderFormula) bool {
		return f.QueryName == name
	})
	out.Builder.QueryTraceOperator = slices.DeleteFunc(out.Builder.QueryTraceOperator, func(t TraceOperator) bool {
		return t.QueryName == name
	})
	return out
}

// WithDataSource returns b reset to the default template for ds, keeping
// its name, expression and disabled flag. Filters and aggregations are not
// portable across data sources.
func (b BuilderQuery) WithDataSource(ds DataSource) BuilderQuery {
	out := DefaultBuilderQuery(ds)
	out.QueryName = b.QueryName
	out.Expression = b.Expression
	out.Disabled = b.Disabled
	return out
}

// WithFilters returns a copy of b with its filter group replaced.
func (b BuilderQuery) WithFilters(f TagFilter) BuilderQuery {
	out := b.Clone()
	out.Filters = f.Clone()
	return out
}

// WithGroupBy returns a copy of b grouped by keys.
func (b BuilderQuery) WithGroupBy(keys ...AttributeKey) BuilderQuery {
	out := b.Clone()
	out.GroupBy = cloneKeys(keys)
	return out
}

// WithOrderBy returns a copy of b ordered by orders.
func (b BuilderQuery) WithOrderBy(orders ...OrderBy) BuilderQuery {
	out := b.Clone()
	out.OrderBy = cloneOrderBy(orders)
	return out
}

// WithAggregations returns a copy of b with the structured aggregations replaced.
func (b BuilderQuery) WithAggregations(aggs ...Aggregation) BuilderQuery {
	out := b.Clone()
	out.Aggregations = slices.Clone(Aggregations(aggs))
	return out
}

// WithLimit returns a copy of b with limit set; nil clears it.
func (b BuilderQuery) WithLimit(limit *int) BuilderQuery {
	out := b.Clone()
	out.Limit = cloneInt(limit)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneOrderBy(in []OrderBy) []OrderBy {
	out := slices.Clone(in)
	if out == nil {
		return []OrderBy{}
	}
	return out
}

func cloneKeys(in []AttributeKey) []AttributeKey {
	out := slices.Clone(in)
	if out == nil {
		return []AttributeKey{}
	}
	return out
}

func cloneHaving(in []Having) []Having {
	out := make([]Having, len(in))
	for i, h := range in {
		out[i] = Having{ColumnName: h.ColumnName, Op: h.Op, Value: cloneValue(h.Value)}
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
