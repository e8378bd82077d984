package session

import (
	"fmt"

	"github.com/roach88/querybuilder/internal/aggregation"
	"github.com/roach88/querybuilder/internal/filter"
	"github.com/roach88/querybuilder/internal/pagination"
	"github.com/roach88/querybuilder/internal/queryir"
)

// Action is a single edit of the current query. The set of actions is
// closed; Reduce handles each one.
type Action interface {
	action()
}

// Replace swaps in a whole query, e.g. a loaded saved view.
type Replace struct{ Query queryir.Query }

// SetQueryType switches the active section.
type SetQueryType struct{ Type queryir.QueryType }

// AddQuery appends a default query on DataSource under the next free name.
type AddQuery struct{ DataSource queryir.DataSource }

// AddFormula appends a formula under the next free F<n> name.
type AddFormula struct{ Expression string }

// AddTraceOperator appends a trace operator under the next free T<n> name.
type AddTraceOperator struct{ Expression string }

// RemoveQuery drops the builder sub-query Name, whatever its kind.
type RemoveQuery struct{ Name string }

// SetDataSource resets query Name to the template for DataSource.
type SetDataSource struct {
	Name       string
	DataSource queryir.DataSource
}

// UpsertFilter applies Item to query Name's filters, replacing any term on
// the same key. Selecting a suggestion dispatches this.
type UpsertFilter struct {
	Name string
	Item queryir.TagFilterItem
}

// RemoveFilter drops every term on Key from query Name.
type RemoveFilter struct {
	Name string
	Key  string
}

// SetFilterText replaces query Name's filters with the parsed Text. Keys
// declares the attribute types used for operator gating.
type SetFilterText struct {
	Name string
	Text string
	Keys []queryir.AttributeKey
}

// SetAggregations parses Expression into query Name's aggregations.
type SetAggregations struct {
	Name       string
	Expression string
}

// SetGroupBy replaces query Name's group-by keys.
type SetGroupBy struct {
	Name string
	Keys []queryir.AttributeKey
}

// SetOrderBy replaces query Name's ordering.
type SetOrderBy struct {
	Name   string
	Orders []queryir.OrderBy
}

// SetLimit sets query Name's limit; nil clears it.
type SetLimit struct {
	Name  string
	Limit *int
}

// Paginate moves query Name to Page, using ListItemID as the keyset cursor
// when its ordering allows.
type Paginate struct {
	Name       string
	Page       int
	PageSize   int
	ListItemID string
}

// ToggleDisabled flips the disabled flag of query or formula Name.
type ToggleDisabled struct{ Name string }

// Undo restores the query before the last applied action.
type Undo struct{}

func (Replace) action()          {}
func (SetQueryType) action()     {}
func (AddQuery) action()         {}
func (AddFormula) action()       {}
func (AddTraceOperator) action() {}
func (RemoveQuery) action()      {}
func (SetDataSource) action()    {}
func (UpsertFilter) action()     {}
func (RemoveFilter) action()     {}
func (SetFilterText) action()    {}
func (SetAggregations) action()  {}
func (SetGroupBy) action()       {}
func (SetOrderBy) action()       {}
func (SetLimit) action()         {}
func (Paginate) action()         {}
func (ToggleDisabled) action()   {}
func (Undo) action()             {}

// Reduce applies a to q and returns the new query. q is never modified.
// On error the returned query is q unchanged.
//
// Undo is not handled here; it needs history and only Session has that.
func Reduce(q queryir.Query, a Action) (queryir.Query, error) {
	switch a := a.(type) {
	case Replace:
		if !a.Query.QueryType.Valid() {
			return q, fmt.Errorf("replace: invalid query type %q", a.Query.QueryType)
		}
		return a.Query.Clone(), nil

	case SetQueryType:
		if !a.Type.Valid() {
			return q, fmt.Errorf("invalid query type %q", a.Type)
		}
		return q.WithQueryType(a.Type), nil

	case AddQuery:
		bq := queryir.DefaultBuilderQuery(a.DataSource)
		name := queryir.NextQueryName(q)
		bq.QueryName, bq.Expression = name, name
		return q.AddBuilderQuery(bq), nil

	case AddFormula:
		f := queryir.DefaultFormula()
		f.QueryName = queryir.NextFormulaName(q)
		f.Expression = a.Expression
		return q.AddFormula(f), nil

	case AddTraceOperator:
		t := queryir.DefaultTraceOperator()
		t.QueryName = queryir.NextTraceOperatorName(q)
		t.Expression = a.Expression
		return q.AddTraceOperator(t), nil

	case RemoveQuery:
		if !q.Names()[a.Name] {
			return q, unknownQuery(a.Name)
		}
		return q.RemoveQuery(a.Name), nil

	case SetDataSource:
		if !a.DataSource.Valid() {
			return q, fmt.Errorf("invalid data source %q", a.DataSource)
		}
		return withQuery(q, a.Name, func(bq queryir.BuilderQuery) (queryir.BuilderQuery, error) {
			return bq.WithDataSource(a.DataSource), nil
		})

	case UpsertFilter:
		if err := filter.Check(a.Item); err != nil {
			return q, err
		}
		return withQuery(q, a.Name, func(bq queryir.BuilderQuery) (queryir.BuilderQuery, error) {
			return bq.WithFilters(filter.Upsert(bq.Filters, a.Item)), nil
		})

	case RemoveFilter:
		return withQuery(q, a.Name, func(bq queryir.BuilderQuery) (queryir.BuilderQuery, error) {
			return bq.WithFilters(filter.Remove(bq.Filters, a.Key)), nil
		})

	case SetFilterText:
		return withQuery(q, a.Name, func(bq queryir.BuilderQuery) (queryir.BuilderQuery, error) {
			f, err := filter.FromExpression(a.Text, filter.KeysResolver(a.Keys))
			if err != nil {
				return bq, err
			}
			return bq.WithFilters(f), nil
		})

	case SetAggregations:
		return withQuery(q, a.Name, func(bq queryir.BuilderQuery) (queryir.BuilderQuery, error) {
			parsed := aggregation.ParseAggregations(a.Expression, "")
			aggs := make([]queryir.Aggregation, 0, len(parsed))
			for _, p := range parsed {
				aggs = append(aggs, p)
			}
			if len(aggs) == 0 {
				aggs = append(aggs, queryir.CountAggregation())
			}
			return bq.WithAggregations(aggs...), nil
		})

	case SetGroupBy:
		return withQuery(q, a.Name, func(bq queryir.BuilderQuery) (queryir.BuilderQuery, error) {
			return bq.WithGroupBy(a.Keys...), nil
		})

	case SetOrderBy:
		return withQuery(q, a.Name, func(bq queryir.BuilderQuery) (queryir.BuilderQuery, error) {
			for _, o := range a.Orders {
				if o.Order != queryir.OrderAsc && o.Order != queryir.OrderDesc {
					return bq, fmt.Errorf("invalid order %q on %q", o.Order, o.ColumnName)
				}
			}
			return bq.WithOrderBy(a.Orders...), nil
		})

	case SetLimit:
		if a.Limit != nil && *a.Limit < 0 {
			return q, fmt.Errorf("limit must be non-negative, got %d", *a.Limit)
		}
		return withQuery(q, a.Name, func(bq queryir.BuilderQuery) (queryir.BuilderQuery, error) {
			return bq.WithLimit(a.Limit), nil
		})

	case Paginate:
		return withQuery(q, a.Name, func(bq queryir.BuilderQuery) (queryir.BuilderQuery, error) {
			r := pagination.GetPaginationQueryData(pagination.Params{
				Query:            &bq,
				ListItemID:       a.ListItemID,
				OrderByTimestamp: pagination.TimestampOrder(bq),
				Page:             a.Page,
				PageSize:         a.PageSize,
			})
			return pagination.Apply(bq, r), nil
		})

	case ToggleDisabled:
		if _, ok := q.FindBuilderQuery(a.Name); ok {
			return q.WithBuilderQuery(a.Name, func(bq queryir.BuilderQuery) queryir.BuilderQuery {
				bq.Disabled = !bq.Disabled
				return bq
			}), nil
		}
		for _, f := range q.Builder.QueryFormulas {
			if f.QueryName == a.Name {
				return q.WithFormula(a.Name, func(f queryir.BuilderFormula) queryir.BuilderFormula {
					f.Disabled = !f.Disabled
					return f
				}), nil
			}
		}
		return q, unknownQuery(a.Name)
	}
	return q, fmt.Errorf("unsupported action %T", a)
}

func withQuery(q queryir.Query, name string, update func(queryir.BuilderQuery) (queryir.BuilderQuery, error)) (queryir.Query, error) {
	bq, ok := q.FindBuilderQuery(name)
	if !ok {
		return q, unknownQuery(name)
	}
	updated, err := update(bq.Clone())
	if err != nil {
		return q, err
	}
	return q.WithBuilderQuery(name, func(queryir.BuilderQuery) queryir.BuilderQuery { return updated }), nil
}

func unknownQuery(name string) error {
	return fmt.Errorf("no query named %q", name)
}
