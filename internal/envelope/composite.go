package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/querybuilder/internal/aggregation"
	"github.com/roach88/querybuilder/internal/queryir"
)

// CompositeQueryToQueryEnvelope converts a nested v3 composite query into
// the flat envelope list.
//
// builderQueries entries carrying a dataSource field are regular queries;
// the rest are formulas. The result lists regular queries, then formulas,
// then PromQL, then ClickHouse entries, each group ordered by name. Only the
// envelope list is returned; none of the v3 maps survive.
//
// Regular entries without an aggregations list have it derived from their
// aggregateOperator/aggregateAttribute pair.
func CompositeQueryToQueryEnvelope(lc LegacyCompositeQuery) (CompositeQuery, error) {
	rt := MapPanelTypeToRequestType(lc.PanelType)

	regular := []QueryEnvelope{}
	formulas := []QueryEnvelope{}
	for _, name := range SortNames(keys(lc.BuilderQueries)) {
		raw := lc.BuilderQueries[name]

		var fields map[string]json.RawMessage
		if err := mergeInto(raw, &fields); err != nil {
			return CompositeQuery{}, fmt.Errorf("builder query %q: %w", name, err)
		}

		if _, ok := fields["dataSource"]; !ok {
			f := queryir.DefaultFormula()
			f.QueryName = name
			if err := mergeInto(raw, &f); err != nil {
				return CompositeQuery{}, fmt.Errorf("formula %q: %w", name, err)
			}
			if f.QueryName == "" {
				f.QueryName = name
			}
			formulas = append(formulas, QueryEnvelope{Type: KindFormula, Spec: FormulaToSpec(f)})
			continue
		}

		q, err := decodeLegacyQuery(name, raw, fields)
		if err != nil {
			return CompositeQuery{}, err
		}
		regular = append(regular, QueryEnvelope{Type: KindBuilderQuery, Spec: BuilderQueryToSpec(q, rt, lc.PanelType)})
	}

	queries := append(regular, formulas...)
	for _, name := range SortNames(keys(lc.PromQueries)) {
		p := lc.PromQueries[name]
		if p.Name == "" {
			p.Name = name
		}
		queries = append(queries, QueryEnvelope{Type: KindPromQL, Spec: promQLToSpec(p)})
	}
	for _, name := range SortNames(keys(lc.ClickHouseQueries)) {
		c := lc.ClickHouseQueries[name]
		if c.Name == "" {
			c.Name = name
		}
		queries = append(queries, QueryEnvelope{Type: KindClickHouseSQL, Spec: clickHouseToSpec(c)})
	}
	return CompositeQuery{Queries: queries}, nil
}

func decodeLegacyQuery(name string, raw json.RawMessage, fields map[string]json.RawMessage) (queryir.BuilderQuery, error) {
	ds, err := entryDataSource(raw)
	if err != nil {
		return queryir.BuilderQuery{}, fmt.Errorf("query %q: %w", name, err)
	}
	q := queryir.DefaultBuilderQuery(ds)
	q.QueryName = name
	q.Expression = name
	if _, ok := fields["aggregations"]; !ok {
		q.Aggregations = nil
	}
	if err := mergeInto(raw, &q); err != nil {
		return queryir.BuilderQuery{}, fmt.Errorf("query %q: %w", name, err)
	}
	if q.QueryName == "" {
		q.QueryName = name
	}
	if len(q.Aggregations) == 0 {
		q.Aggregations = aggregation.FromBuilderQuery(q)
	}
	return q, nil
}
