package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/roach88/querybuilder/internal/queryir"
)

// Naming conventions used by data saved before entries carried a kind tag.
var (
	legacyFormulaName       = regexp.MustCompile(`^F\d+$`)
	legacyTraceOperatorName = regexp.MustCompile(`^T\d+$`)
)

// MigrateLegacyKinds derives a kind tag for every entry of untagged legacy
// data from its name: F<n> is a formula, T<n> a trace operator, anything
// else a plain query. Run it once when importing old data and store the
// result; TransformQueryBuilderDataModel never looks at names.
func MigrateLegacyKinds(entries map[string]json.RawMessage) map[string]Kind {
	kinds := make(map[string]Kind, len(entries))
	for name := range entries {
		switch {
		case legacyFormulaName.MatchString(name):
			kinds[name] = KindFormula
		case legacyTraceOperatorName.MatchString(name):
			kinds[name] = KindTraceOperator
		default:
			kinds[name] = KindBuilderQuery
		}
	}
	return kinds
}

// TransformQueryBuilderDataModel partitions a flat name -> entry map into
// queries, formulas and trace operators using the kinds tag map. Entries
// with no tag are plain queries. Every entry is decoded over the complete
// default template for its kind, so fields it omits keep their defaults.
//
// Output is ordered by name (see SortNames). Feeding the output back
// through Flatten and this function yields the same Builder.
func TransformQueryBuilderDataModel(entries map[string]json.RawMessage, kinds map[string]Kind) (queryir.Builder, error) {
	out := queryir.Builder{
		QueryData:          []queryir.BuilderQuery{},
		QueryFormulas:      []queryir.BuilderFormula{},
		QueryTraceOperator: []queryir.TraceOperator{},
	}

	for _, name := range SortNames(keys(entries)) {
		raw := entries[name]
		switch kinds[name] {
		case KindFormula:
			f := queryir.DefaultFormula()
			f.QueryName = name
			if err := mergeInto(raw, &f); err != nil {
				return queryir.Builder{}, fmt.Errorf("formula %q: %w", name, err)
			}
			if f.QueryName == "" {
				f.QueryName = name
			}
			out.QueryFormulas = append(out.QueryFormulas, f)

		case KindTraceOperator:
			t := queryir.DefaultTraceOperator()
			t.QueryName = name
			if err := mergeInto(raw, &t); err != nil {
				return queryir.Builder{}, fmt.Errorf("trace operator %q: %w", name, err)
			}
			if t.QueryName == "" {
				t.QueryName = name
			}
			out.QueryTraceOperator = append(out.QueryTraceOperator, t)

		default:
			ds, err := entryDataSource(raw)
			if err != nil {
				return queryir.Builder{}, fmt.Errorf("query %q: %w", name, err)
			}
			q := queryir.DefaultBuilderQuery(ds)
			q.QueryName = name
			q.Expression = name
			if err := mergeInto(raw, &q); err != nil {
				return queryir.Builder{}, fmt.Errorf("query %q: %w", name, err)
			}
			if q.QueryName == "" {
				q.QueryName = name
			}
			if !q.DataSource.Valid() {
				q.DataSource = queryir.DataSourceMetrics
			}
			out.QueryData = append(out.QueryData, q)
		}
	}
	return out, nil
}

// Flatten is the inverse of TransformQueryBuilderDataModel: it returns the
// name -> entry map together with the kind of every entry.
func Flatten(b queryir.Builder) (map[string]json.RawMessage, map[string]Kind, error) {
	entries := make(map[string]json.RawMessage)
	kinds := make(map[string]Kind)

	add := func(name string, kind Kind, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%s %q: %w", kind, name, err)
		}
		entries[name] = data
		kinds[name] = kind
		return nil
	}

	for _, q := range b.QueryData {
		if err := add(q.QueryName, KindBuilderQuery, q); err != nil {
			return nil, nil, err
		}
	}
	for _, f := range b.QueryFormulas {
		if err := add(f.QueryName, KindFormula, f); err != nil {
			return nil, nil, err
		}
	}
	for _, t := range b.QueryTraceOperator {
		if err := add(t.QueryName, KindTraceOperator, t); err != nil {
			return nil, nil, err
		}
	}
	return entries, kinds, nil
}

func mergeInto(raw json.RawMessage, target any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, target)
}

// entryDataSource reads just the dataSource field of an entry.
func entryDataSource(raw json.RawMessage) (queryir.DataSource, error) {
	var head struct {
		DataSource queryir.DataSource `json:"dataSource"`
	}
	if err := mergeInto(raw, &head); err != nil {
		return "", err
	}
	return head.DataSource, nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// SortNames orders query names shortest first, then lexically, so that
// A..Z precede AA and F2 precedes F10.
func SortNames(names []string) []string {
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}
